package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/domain/entity"
)

// AuditRepository implements port.AuditRepository. Rows are append-only: there
// is no update or delete path, by contract.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append writes one audit event
func (r *AuditRepository) Append(ctx context.Context, e *entity.AuditEvent) error {
	query := `
		INSERT INTO audit_events (case_id, version, prev_state, new_state, actor_id, actor_role, action, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		e.CaseID, e.Version, e.PrevState, e.NewState, e.ActorID, e.ActorRole, e.Action, e.Comment,
	)
	if err != nil {
		r.logger.Error("Failed to append audit event",
			zap.Int64("case_id", e.CaseID), zap.String("action", e.Action), zap.Error(err))
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// ListByCaseID retrieves the full audit trail of a case, oldest first
func (r *AuditRepository) ListByCaseID(ctx context.Context, caseID int64) ([]*entity.AuditEvent, error) {
	query := `
		SELECT id, case_id, version, prev_state, new_state, actor_id, actor_role, action, comment, created_at
		FROM audit_events
		WHERE case_id = ?
		ORDER BY id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, caseID)
	if err != nil {
		r.logger.Error("Failed to list audit events", zap.Int64("case_id", caseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*entity.AuditEvent
	for rows.Next() {
		var e entity.AuditEvent
		if err := rows.Scan(
			&e.ID, &e.CaseID, &e.Version, &e.PrevState, &e.NewState,
			&e.ActorID, &e.ActorRole, &e.Action, &e.Comment, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
