package models

import (
	"fmt"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// OutcomeKind tags which variant a FetchOutcome holds
type OutcomeKind int

const (
	OutcomeSuccess        OutcomeKind = iota // Document is set
	OutcomeHTTPError                         // StatusCode is set (non-2xx)
	OutcomeTransportError                    // Message is set (DNS, connect, TLS, timeout)
)

// String implements fmt.Stringer for logging
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportError:
		return "transport_error"
	}
	return "unknown"
}

// FetchOutcome is the result of fetching one URL. Exactly one variant applies,
// selected by Kind.
type FetchOutcome struct {
	Kind       OutcomeKind
	Document   *goquery.Document
	StatusCode int
	Message    string
	Err        error // Underlying error for TransportError, for logging/categorization
}

// Success builds a successful outcome carrying the parsed document
func Success(doc *goquery.Document, statusCode int) FetchOutcome {
	return FetchOutcome{Kind: OutcomeSuccess, Document: doc, StatusCode: statusCode}
}

// HTTPError builds an outcome for a non-2xx response
func HTTPError(statusCode int) FetchOutcome {
	return FetchOutcome{Kind: OutcomeHTTPError, StatusCode: statusCode}
}

// TransportError builds an outcome for a failure before any usable response
func TransportError(err error) FetchOutcome {
	msg := "unknown transport error"
	if err != nil {
		msg = err.Error()
	}
	return FetchOutcome{Kind: OutcomeTransportError, Message: msg, Err: err}
}

// OK reports whether the outcome is a success
func (o FetchOutcome) OK() bool { return o.Kind == OutcomeSuccess }

// String implements fmt.Stringer for logging
func (o FetchOutcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("success (%d)", o.StatusCode)
	case OutcomeHTTPError:
		return "http error " + strconv.Itoa(o.StatusCode)
	default:
		return "transport error: " + o.Message
	}
}
