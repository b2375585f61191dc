package repository

import (
	"context"

	"go-roi-inspector/pkg/models"
)

// RunRepository stores the derived statistics of batch runs
type RunRepository interface {
	// SaveRun stores a run, assigning an id and creation time when missing
	SaveRun(ctx context.Context, run *models.BatchRun) error

	// GetRun retrieves a stored run with all of its rows
	GetRun(ctx context.Context, id string) (*models.BatchRun, error)

	// ListRuns returns the newest runs first, without rows
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)

	// Close releases the underlying database
	Close() error
}
