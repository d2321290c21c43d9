package sink

import (
	"errors"
	"sync"

	"contact-scraper/pkg/models"
)

// MemorySink keeps every row in memory. Safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	results []models.ResultRow
	failed  []models.FailedRow
}

// NewMemorySink creates an empty MemorySink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// WriteResult records an accepted row
func (m *MemorySink) WriteResult(row models.ResultRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, row)
	return nil
}

// WriteFailed records a rejected row
func (m *MemorySink) WriteFailed(row models.FailedRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, row)
	return nil
}

// Close is a no-op
func (m *MemorySink) Close() error { return nil }

// Results returns a copy of the accepted rows
func (m *MemorySink) Results() []models.ResultRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ResultRow(nil), m.results...)
}

// Failed returns a copy of the rejected rows
func (m *MemorySink) Failed() []models.FailedRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.FailedRow(nil), m.failed...)
}

// multiSink fans every row out to several sinks
type multiSink []Sink

// Multi returns a Sink writing to every given sink in order
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (ms multiSink) WriteResult(row models.ResultRow) error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.WriteResult(row))
	}
	return errors.Join(errs...)
}

func (ms multiSink) WriteFailed(row models.FailedRow) error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.WriteFailed(row))
	}
	return errors.Join(errs...)
}

func (ms multiSink) Close() error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
