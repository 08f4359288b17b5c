package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
)

// ProjectionRepo implements ProjectionRepository using PostgreSQL.
type ProjectionRepo struct{ db *DB }

// NewProjectionRepo constructs a projection repository.
func NewProjectionRepo(db *DB) *ProjectionRepo { return &ProjectionRepo{db: db} }

// Get loads the projection row of a CV.
func (r *ProjectionRepo) Get(ctx context.Context, cvID string) (*model.Projection, error) {
	const q = `
SELECT cv_id, user_id, title, template_id, blocks, version, updated_at
FROM cv_projections WHERE cv_id=$1`
	var (
		p      model.Projection
		blocks []byte
	)
	err := r.db.Pool.QueryRow(ctx, q, cvID).
		Scan(&p.CVID, &p.UserID, &p.Title, &p.TemplateID, &blocks, &p.Version, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	p.Blocks = []model.Block{}
	if len(blocks) > 0 {
		if err := json.Unmarshal(blocks, &p.Blocks); err != nil {
			return nil, fmt.Errorf("projection %s blocks: %w", cvID, err)
		}
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// Save upserts the projection row.
func (r *ProjectionRepo) Save(ctx context.Context, p model.Projection) error {
	const q = `
INSERT INTO cv_projections (cv_id, user_id, title, template_id, blocks, version, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (cv_id) DO UPDATE SET
  user_id=EXCLUDED.user_id, title=EXCLUDED.title, template_id=EXCLUDED.template_id,
  blocks=EXCLUDED.blocks, version=EXCLUDED.version, updated_at=EXCLUDED.updated_at`
	blocks, err := marshalBlocks(p.Blocks)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, q, p.CVID, p.UserID, p.Title, p.TemplateID, blocks, p.Version, p.UpdatedAt)
	return err
}

// Delete removes the projection row; a missing row is not an error.
func (r *ProjectionRepo) Delete(ctx context.Context, cvID string) error {
	const q = `DELETE FROM cv_projections WHERE cv_id=$1`
	_, err := r.db.Pool.Exec(ctx, q, cvID)
	return err
}

// ListByOwner returns summaries of the owner's CVs, newest first.
func (r *ProjectionRepo) ListByOwner(ctx context.Context, userID string) ([]model.Summary, error) {
	const q = `
SELECT cv_id, title, template_id, updated_at
FROM cv_projections WHERE user_id=$1
ORDER BY updated_at DESC, cv_id ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Summary, 0)
	for rows.Next() {
		var s model.Summary
		if err := rows.Scan(&s.CVID, &s.Title, &s.TemplateID, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.UpdatedAt = s.UpdatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func marshalBlocks(b []model.Block) ([]byte, error) {
	if b == nil {
		b = []model.Block{}
	}
	return json.Marshal(b)
}
