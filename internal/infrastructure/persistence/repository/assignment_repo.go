package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/domain/entity"
)

// AssignmentRepository implements port.AssignmentRepository.
// The assignments table has case_id as primary key, so at most one claim row
// exists per case; takeover of an expired claim is an upsert on that key.
type AssignmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB, logger *zap.Logger) port.AssignmentRepository {
	return &AssignmentRepository{db: db, logger: logger}
}

// Get retrieves the claim row of a case, if any
func (r *AssignmentRepository) Get(ctx context.Context, caseID int64) (*entity.Assignment, error) {
	query := `
		SELECT case_id, reviewer_id, tier, claimed_at
		FROM assignments
		WHERE case_id = ?
	`

	var a entity.Assignment
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, caseID).Scan(
		&a.CaseID, &a.ReviewerID, &a.Tier, &a.ClaimedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get assignment", zap.Int64("case_id", caseID), zap.Error(err))
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

// Upsert writes the claim row for a case, replacing any previous holder
func (r *AssignmentRepository) Upsert(ctx context.Context, a *entity.Assignment) error {
	query := `
		INSERT INTO assignments (case_id, reviewer_id, tier, claimed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			reviewer_id = excluded.reviewer_id,
			tier = excluded.tier,
			claimed_at = excluded.claimed_at
	`

	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		a.CaseID, a.ReviewerID, a.Tier, a.ClaimedAt,
	); err != nil {
		r.logger.Error("Failed to upsert assignment",
			zap.Int64("case_id", a.CaseID), zap.String("reviewer_id", a.ReviewerID), zap.Error(err))
		return fmt.Errorf("failed to upsert assignment: %w", err)
	}
	return nil
}

// Touch refreshes the claim timestamp for the current holder
func (r *AssignmentRepository) Touch(ctx context.Context, caseID int64, reviewerID string, at time.Time) error {
	query := `
		UPDATE assignments SET claimed_at = ?
		WHERE case_id = ? AND reviewer_id = ?
	`

	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, at, caseID, reviewerID); err != nil {
		r.logger.Error("Failed to touch assignment",
			zap.Int64("case_id", caseID), zap.String("reviewer_id", reviewerID), zap.Error(err))
		return fmt.Errorf("failed to touch assignment: %w", err)
	}
	return nil
}

// Delete removes the claim row of a case. Deleting a missing row is a no-op.
func (r *AssignmentRepository) Delete(ctx context.Context, caseID int64) error {
	if _, err := getExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM assignments WHERE case_id = ?`, caseID,
	); err != nil {
		r.logger.Error("Failed to delete assignment", zap.Int64("case_id", caseID), zap.Error(err))
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return nil
}

// ListByReviewer retrieves all claim rows held by one reviewer
func (r *AssignmentRepository) ListByReviewer(ctx context.Context, reviewerID string) ([]*entity.Assignment, error) {
	query := `
		SELECT case_id, reviewer_id, tier, claimed_at
		FROM assignments
		WHERE reviewer_id = ?
		ORDER BY claimed_at ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, reviewerID)
	if err != nil {
		r.logger.Error("Failed to list assignments", zap.String("reviewer_id", reviewerID), zap.Error(err))
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*entity.Assignment
	for rows.Next() {
		var a entity.Assignment
		if err := rows.Scan(&a.CaseID, &a.ReviewerID, &a.Tier, &a.ClaimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}

// Verify interface compliance
var _ port.AssignmentRepository = (*AssignmentRepository)(nil)
