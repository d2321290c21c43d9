package storage

import (
	"context"
	"time"

	"contact-scraper/pkg/models"
)

// SeedStore tracks per-seed processing state so an interrupted run can resume
type SeedStore interface {
	// MarkSeedPending records a seed as dispatched.
	// Returns true if the seed was newly added, false if it already existed
	MarkSeedPending(seedKey string) (bool, error)

	// CheckSeedStatus retrieves the status and details of a seed.
	// Missing seeds report SeedStatusNotFound with a nil entry and nil error
	CheckSeedStatus(seedKey string) (status models.SeedStatus, entry *models.SeedDBEntry, err error)

	// UpdateSeedStatus stores the outcome of a seed
	UpdateSeedStatus(seedKey string, entry *models.SeedDBEntry) error

	// IncompleteSeeds lists seeds left pending by an earlier run
	IncompleteSeeds(ctx context.Context) ([]string, error)

	// Count returns the number of seeds in the store
	Count() (int, error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database connection
	Close() error
}
