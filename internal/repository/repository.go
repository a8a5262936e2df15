// Package repository persists gather-round history (spec.md §4.10): one
// record per completed front-end gather round, independent of the DOT file
// C6 emits.
package repository

import "context"

// GatherRoundRepository defines the interface for gather-round history
// operations.
type GatherRoundRepository interface {
	// Create records the start of a new gather round and assigns its ID.
	Create(ctx context.Context, round *GatherRound) error

	// Finish updates a round with its terminal status and output details.
	Finish(ctx context.Context, id int64, update GatherRoundUpdate) error

	// GetByID retrieves a single round by ID.
	GetByID(ctx context.Context, id int64) (*GatherRound, error)

	// ListRecent retrieves the most recent rounds, newest first.
	ListRecent(ctx context.Context, limit int) ([]*GatherRound, error)
}

// GatherRoundUpdate carries the fields set when a round finishes.
type GatherRoundUpdate struct {
	RespondingCount int
	WidthWords      int
	OutputPath      string
	Status          string
}
