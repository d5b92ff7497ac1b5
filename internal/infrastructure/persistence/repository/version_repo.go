package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/domain/entity"
)

// VersionRepository implements port.VersionRepository
type VersionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *sql.DB, logger *zap.Logger) port.VersionRepository {
	return &VersionRepository{db: db, logger: logger}
}

// Create inserts a version snapshot together with its line items
func (r *VersionRepository) Create(ctx context.Context, v *entity.CaseVersion, items []entity.CaseItem) error {
	exec := getExecutor(ctx, r.db)

	query := `
		INSERT INTO case_versions (case_id, version, cost_cents, bill_cents, margin_cents, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	if _, err := exec.ExecContext(ctx, query,
		v.CaseID, v.Version, v.CostCents, v.BillCents, v.MarginCents,
	); err != nil {
		r.logger.Error("Failed to create case version",
			zap.Int64("case_id", v.CaseID), zap.Int("version", v.Version), zap.Error(err))
		return fmt.Errorf("failed to create version: %w", err)
	}

	return r.insertItems(ctx, v.CaseID, v.Version, items)
}

// Get retrieves one version snapshot
func (r *VersionRepository) Get(ctx context.Context, caseID int64, version int) (*entity.CaseVersion, error) {
	query := `
		SELECT case_id, version, cost_cents, bill_cents, margin_cents, created_at
		FROM case_versions
		WHERE case_id = ? AND version = ?
	`

	var v entity.CaseVersion
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, caseID, version).Scan(
		&v.CaseID, &v.Version, &v.CostCents, &v.BillCents, &v.MarginCents, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get case version",
			zap.Int64("case_id", caseID), zap.Int("version", version), zap.Error(err))
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return &v, nil
}

// GetItems retrieves the line items of one version
func (r *VersionRepository) GetItems(ctx context.Context, caseID int64, version int) ([]*entity.CaseItem, error) {
	query := `
		SELECT id, case_id, version, kind, description, quantity, unit_price_cents
		FROM case_items
		WHERE case_id = ? AND version = ?
		ORDER BY id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, caseID, version)
	if err != nil {
		r.logger.Error("Failed to get case items",
			zap.Int64("case_id", caseID), zap.Int("version", version), zap.Error(err))
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	var items []*entity.CaseItem
	for rows.Next() {
		var it entity.CaseItem
		if err := rows.Scan(
			&it.ID, &it.CaseID, &it.Version, &it.Kind,
			&it.Description, &it.Quantity, &it.UnitPriceCents,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// List retrieves all version snapshots of a case, oldest first
func (r *VersionRepository) List(ctx context.Context, caseID int64) ([]*entity.CaseVersion, error) {
	query := `
		SELECT case_id, version, cost_cents, bill_cents, margin_cents, created_at
		FROM case_versions
		WHERE case_id = ?
		ORDER BY version ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, caseID)
	if err != nil {
		r.logger.Error("Failed to list case versions", zap.Int64("case_id", caseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*entity.CaseVersion
	for rows.Next() {
		var v entity.CaseVersion
		if err := rows.Scan(
			&v.CaseID, &v.Version, &v.CostCents, &v.BillCents, &v.MarginCents, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// UpdateTotals overwrites the financial figures of a version in place.
// Only the current version of a draft case is ever updated this way.
func (r *VersionRepository) UpdateTotals(ctx context.Context, caseID int64, version int, totals entity.Totals) error {
	query := `
		UPDATE case_versions SET cost_cents = ?, bill_cents = ?, margin_cents = ?
		WHERE case_id = ? AND version = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		totals.CostCents, totals.BillCents, totals.MarginCents, caseID, version,
	)
	if err != nil {
		r.logger.Error("Failed to update version totals",
			zap.Int64("case_id", caseID), zap.Int("version", version), zap.Error(err))
		return fmt.Errorf("failed to update totals: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("version %d of case %d not found", version, caseID)
	}
	return nil
}

// ReplaceItems swaps the full item list of a version
func (r *VersionRepository) ReplaceItems(ctx context.Context, caseID int64, version int, items []entity.CaseItem) error {
	exec := getExecutor(ctx, r.db)

	if _, err := exec.ExecContext(ctx,
		`DELETE FROM case_items WHERE case_id = ? AND version = ?`, caseID, version,
	); err != nil {
		r.logger.Error("Failed to delete case items",
			zap.Int64("case_id", caseID), zap.Int("version", version), zap.Error(err))
		return fmt.Errorf("failed to delete items: %w", err)
	}

	return r.insertItems(ctx, caseID, version, items)
}

func (r *VersionRepository) insertItems(ctx context.Context, caseID int64, version int, items []entity.CaseItem) error {
	if len(items) == 0 {
		return nil
	}

	exec := getExecutor(ctx, r.db)
	query := `
		INSERT INTO case_items (case_id, version, kind, description, quantity, unit_price_cents)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, it := range items {
		if _, err := exec.ExecContext(ctx, query,
			caseID, version, it.Kind, it.Description, it.Quantity, it.UnitPriceCents,
		); err != nil {
			r.logger.Error("Failed to insert case item",
				zap.Int64("case_id", caseID), zap.Int("version", version), zap.Error(err))
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}
	return nil
}

// Verify interface compliance
var _ port.VersionRepository = (*VersionRepository)(nil)
