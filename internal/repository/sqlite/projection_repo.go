package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
)

// ProjectionRepo implements ProjectionRepository on SQLite.
type ProjectionRepo struct{ db *DB }

// NewProjectionRepo constructs a projection repository.
func NewProjectionRepo(db *DB) *ProjectionRepo { return &ProjectionRepo{db: db} }

// Get loads the projection row of a CV.
func (r *ProjectionRepo) Get(ctx context.Context, cvID string) (*model.Projection, error) {
	var (
		p         model.Projection
		blocks    string
		updatedAt int64
	)
	err := r.db.SQL.QueryRowContext(ctx, `
SELECT cv_id, user_id, title, template_id, blocks, version, updated_at
FROM cv_projections WHERE cv_id = ?`, cvID,
	).Scan(&p.CVID, &p.UserID, &p.Title, &p.TemplateID, &blocks, &p.Version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get projection: %w", err)
	}
	p.Blocks = []model.Block{}
	if err := json.Unmarshal([]byte(blocks), &p.Blocks); err != nil {
		return nil, fmt.Errorf("projection %s blocks: %w", cvID, err)
	}
	p.UpdatedAt = fromNanos(updatedAt)
	return &p, nil
}

// Save upserts the projection row.
func (r *ProjectionRepo) Save(ctx context.Context, p model.Projection) error {
	if p.Blocks == nil {
		p.Blocks = []model.Block{}
	}
	blocks, err := json.Marshal(p.Blocks)
	if err != nil {
		return err
	}
	_, err = r.db.SQL.ExecContext(ctx, `
INSERT INTO cv_projections (cv_id, user_id, title, template_id, blocks, version, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (cv_id) DO UPDATE SET
	user_id = excluded.user_id,
	title = excluded.title,
	template_id = excluded.template_id,
	blocks = excluded.blocks,
	version = excluded.version,
	updated_at = excluded.updated_at`,
		p.CVID, p.UserID, p.Title, p.TemplateID, string(blocks), p.Version, toNanos(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save projection: %w", err)
	}
	return nil
}

// Delete removes the projection row; a missing row is not an error.
func (r *ProjectionRepo) Delete(ctx context.Context, cvID string) error {
	if _, err := r.db.SQL.ExecContext(ctx, `DELETE FROM cv_projections WHERE cv_id = ?`, cvID); err != nil {
		return fmt.Errorf("delete projection: %w", err)
	}
	return nil
}

// ListByOwner returns summaries of the owner's CVs, newest first.
func (r *ProjectionRepo) ListByOwner(ctx context.Context, userID string) ([]model.Summary, error) {
	rows, err := r.db.SQL.QueryContext(ctx, `
SELECT cv_id, title, template_id, updated_at
FROM cv_projections WHERE user_id = ?
ORDER BY updated_at DESC, cv_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projections: %w", err)
	}
	defer rows.Close()

	out := make([]model.Summary, 0)
	for rows.Next() {
		var (
			s  model.Summary
			ts int64
		)
		if err := rows.Scan(&s.CVID, &s.Title, &s.TemplateID, &ts); err != nil {
			return nil, err
		}
		s.UpdatedAt = fromNanos(ts)
		out = append(out, s)
	}
	return out, rows.Err()
}
