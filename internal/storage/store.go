package storage

import (
	"context"

	"chiasma/internal/model"
)

// Store defines persistence operations for runs, their per-individual
// records, and reusable founder populations.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, runID string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveRecords(ctx context.Context, runID string, records []model.IndividualRecord) error
	GetRecords(ctx context.Context, runID string) ([]model.IndividualRecord, bool, error)
	SaveFounders(ctx context.Context, snapshot model.FounderSnapshot) error
	GetFounders(ctx context.Context, id string) (model.FounderSnapshot, bool, error)
}
