package models

import "time"

// SeedStatus represents the processing status of a seed URL in the state store
type SeedStatus string

const (
	SeedStatusUnset    SeedStatus = ""          // Zero value = unset/unknown
	SeedStatusPending  SeedStatus = "pending"   // Seed dispatched but not finished
	SeedStatusSuccess  SeedStatus = "success"   // Seed written to the result sink
	SeedStatusFailure  SeedStatus = "failure"   // Seed written to the failed sink
	SeedStatusNotFound SeedStatus = "not_found" // Seed not in database
	SeedStatusDBError  SeedStatus = "db_error"  // Database error occurred
)

// String implements fmt.Stringer for logging
func (s SeedStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s SeedStatus) IsValid() bool {
	switch s {
	case SeedStatusPending, SeedStatusSuccess, SeedStatusFailure:
		return true
	}
	return false
}

// IsTerminal reports whether a seed with this status needs no further processing
func (s SeedStatus) IsTerminal() bool {
	return s == SeedStatusSuccess || s == SeedStatusFailure
}

// SeedDBEntry stores the outcome of processing a seed URL in the database
type SeedDBEntry struct {
	Status      SeedStatus `json:"status"`
	Reason      string     `json:"reason,omitempty"`       // Failed-sink code (on failure)
	ErrorType   string     `json:"error_type,omitempty"`   // Error category (on transport failure)
	ProcessedAt time.Time  `json:"processed_at,omitempty"` // Timestamp of successful processing
	LastAttempt time.Time  `json:"last_attempt"`           // Timestamp of the last processing attempt
}
