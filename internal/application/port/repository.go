package port

import (
	"context"
	"time"

	"github.com/medikos/caseflow/internal/domain/entity"
)

// CaseRepository defines persistence operations for Case rows.
// State and version updates are compare-and-set so that concurrent writers for
// the same case id serialize instead of interleaving (single-writer-per-case).
type CaseRepository interface {
	Create(ctx context.Context, c *entity.Case) error
	GetByID(ctx context.Context, id int64) (*entity.Case, error)
	GetByPublicID(ctx context.Context, publicID string) (*entity.Case, error)

	// UpdateState transitions state only if the row still matches the expected
	// state and current version. Returns false when the guard did not match.
	UpdateState(ctx context.Context, id int64, expectVersion int, fromState, toState string) (bool, error)

	// AdvanceVersion bumps current_version to expectVersion+1 and resets state,
	// only if current_version still equals expectVersion. Returns false when a
	// concurrent fork already advanced it.
	AdvanceVersion(ctx context.Context, id int64, expectVersion int, newState string) (bool, error)

	ListByState(ctx context.Context, state string, limit, offset int) ([]*entity.Case, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*entity.Case, error)
}

// VersionRepository defines persistence operations for CaseVersion snapshots
// and their line items. Superseded versions are never written again.
type VersionRepository interface {
	Create(ctx context.Context, v *entity.CaseVersion, items []entity.CaseItem) error
	Get(ctx context.Context, caseID int64, version int) (*entity.CaseVersion, error)
	GetItems(ctx context.Context, caseID int64, version int) ([]*entity.CaseItem, error)
	List(ctx context.Context, caseID int64) ([]*entity.CaseVersion, error)
	UpdateTotals(ctx context.Context, caseID int64, version int, totals entity.Totals) error
	ReplaceItems(ctx context.Context, caseID int64, version int, items []entity.CaseItem) error
}

// AssignmentRepository defines persistence operations for exclusive claims.
// One row per case id at most; expiry is decided by callers, not here.
type AssignmentRepository interface {
	Get(ctx context.Context, caseID int64) (*entity.Assignment, error)
	Upsert(ctx context.Context, a *entity.Assignment) error
	Touch(ctx context.Context, caseID int64, reviewerID string, at time.Time) error
	Delete(ctx context.Context, caseID int64) error
	ListByReviewer(ctx context.Context, reviewerID string) ([]*entity.Assignment, error)
}

// AuditRepository defines append-only persistence for AuditEvent rows
type AuditRepository interface {
	Append(ctx context.Context, e *entity.AuditEvent) error
	ListByCaseID(ctx context.Context, caseID int64) ([]*entity.AuditEvent, error)
}

// NotificationRepository defines persistence operations for Notification rows.
// A recipient key is either a user id or a tier pool key.
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	ListUnread(ctx context.Context, recipients []string, limit int) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, recipients []string) (int, error)

	// MarkRead marks the given notifications read for the given recipients.
	// Re-marking an already-read notification is a no-op.
	MarkRead(ctx context.Context, ids []int64, recipients []string) error
	MarkAllRead(ctx context.Context, recipients []string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
