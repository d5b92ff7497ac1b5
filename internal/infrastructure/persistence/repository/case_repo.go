package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/domain/entity"
)

// CaseRepository implements port.CaseRepository
type CaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *sql.DB, logger *zap.Logger) port.CaseRepository {
	return &CaseRepository{db: db, logger: logger}
}

const caseColumns = `id, public_id, patient_ref, branch_ref, funder_ref, creator_id,
	current_version, state, difficult_access, created_at, updated_at`

// Create inserts a new case row
func (r *CaseRepository) Create(ctx context.Context, c *entity.Case) error {
	query := `
		INSERT INTO cases (
			public_id, patient_ref, branch_ref, funder_ref, creator_id,
			current_version, state, difficult_access, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		c.PublicID,
		c.PatientRef,
		c.BranchRef,
		c.FunderRef,
		c.CreatorID,
		c.CurrentVersion,
		c.State,
		c.DifficultAccess,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create case", zap.Error(err))
		return fmt.Errorf("failed to create case: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	c.ID = id
	return nil
}

func (r *CaseRepository) scanCase(row interface{ Scan(...interface{}) error }) (*entity.Case, error) {
	var c entity.Case
	err := row.Scan(
		&c.ID,
		&c.PublicID,
		&c.PatientRef,
		&c.BranchRef,
		&c.FunderRef,
		&c.CreatorID,
		&c.CurrentVersion,
		&c.State,
		&c.DifficultAccess,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID retrieves a case by ID
func (r *CaseRepository) GetByID(ctx context.Context, id int64) (*entity.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = ?`

	c, err := r.scanCase(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get case by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

// GetByPublicID retrieves a case by its public identifier
func (r *CaseRepository) GetByPublicID(ctx context.Context, publicID string) (*entity.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE public_id = ?`

	c, err := r.scanCase(getExecutor(ctx, r.db).QueryRowContext(ctx, query, publicID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get case by public ID", zap.String("public_id", publicID), zap.Error(err))
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

// UpdateState performs the compare-and-set state transition. The guard on
// state and current_version is what serializes concurrent writers per case.
func (r *CaseRepository) UpdateState(ctx context.Context, id int64, expectVersion int, fromState, toState string) (bool, error) {
	query := `
		UPDATE cases SET state = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND current_version = ? AND state = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, toState, id, expectVersion, fromState)
	if err != nil {
		r.logger.Error("Failed to update case state", zap.Int64("id", id), zap.String("to_state", toState), zap.Error(err))
		return false, fmt.Errorf("failed to update state: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// AdvanceVersion performs the compare-and-set version fork
func (r *CaseRepository) AdvanceVersion(ctx context.Context, id int64, expectVersion int, newState string) (bool, error) {
	query := `
		UPDATE cases SET current_version = current_version + 1, state = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND current_version = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, newState, id, expectVersion)
	if err != nil {
		r.logger.Error("Failed to advance case version", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to advance version: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// ListByState retrieves cases in a given state ordered by creation time
func (r *CaseRepository) ListByState(ctx context.Context, state string, limit, offset int) ([]*entity.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE state = ?
		ORDER BY created_at ASC
		LIMIT ? OFFSET ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, state, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list cases by state", zap.String("state", state), zap.Error(err))
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListByIDs retrieves cases by id
func (r *CaseRepository) ListByIDs(ctx context.Context, ids []int64) ([]*entity.Case, error) {
	if len(ids) == 0 {
		return []*entity.Case{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id IN (` + placeholders + `)`

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list cases by ids", zap.Error(err))
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *CaseRepository) collect(rows *sql.Rows) ([]*entity.Case, error) {
	var cases []*entity.Case
	for rows.Next() {
		c, err := r.scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// Verify interface compliance
var _ port.CaseRepository = (*CaseRepository)(nil)
