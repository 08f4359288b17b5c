package repository

import (
	"context"

	"github.com/and161185/cv-keeper/internal/model"
)

// ProjectionRepository is the read-optimized CV store.
type ProjectionRepository interface {
	// Get loads a projection by CV id (errs.ErrNotFound if absent).
	Get(ctx context.Context, cvID string) (*model.Projection, error)
	// Save inserts or replaces a projection.
	Save(ctx context.Context, p model.Projection) error
	// Delete removes a projection; deleting a missing row is not an error.
	Delete(ctx context.Context, cvID string) error
	// ListByOwner returns the owner's CVs, most recently updated first.
	ListByOwner(ctx context.Context, userID string) ([]model.Summary, error)
}
