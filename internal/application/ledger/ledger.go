// Package ledger implements the exclusive-assignment ledger. It guarantees at
// most one active reviewer per case under a first-claim-wins discipline, and
// tolerates abandoned claims by treating them as expired at the next claim
// attempt rather than running a background sweeper.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/domain/entity"
	"github.com/medikos/caseflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Ledger tracks which reviewer currently holds exclusive claim over a case
type Ledger struct {
	repo    port.AssignmentRepository
	timeout time.Duration
	now     func() time.Time
	logger  Logger
}

// Option configures the ledger
type Option func(*Ledger)

// WithClock overrides the time source, used by tests to simulate expiry
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithLogger sets a logger for the ledger
func WithLogger(logger Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates a ledger with the given inactivity timeout
func New(repo port.AssignmentRepository, timeout time.Duration, opts ...Option) *Ledger {
	l := &Ledger{
		repo:    repo,
		timeout: timeout,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Claim acquires the exclusive assignment for a case. It succeeds when no
// assignment exists, when the existing one has expired, or when the reviewer
// already holds the case (a re-claim refreshes the timestamp). A live claim
// held by someone else loses the race with ErrAlreadyClaimed.
func (l *Ledger) Claim(ctx context.Context, caseID int64, reviewerID string, tier int) error {
	existing, err := l.repo.Get(ctx, caseID)
	if err != nil {
		return fmt.Errorf("get assignment: %w", err)
	}

	if existing != nil && existing.ReviewerID == reviewerID {
		// Holder re-claim: refresh the timestamp, the row stays as is
		if err := l.Touch(ctx, caseID, reviewerID); err != nil {
			return fmt.Errorf("touch assignment: %w", err)
		}
		return nil
	}

	if existing != nil && !existing.ExpiredAt(l.now(), l.timeout) {
		return fmt.Errorf("%w: held by %s", workflow.ErrAlreadyClaimed, existing.ReviewerID)
	}

	a := &entity.Assignment{
		CaseID:     caseID,
		ReviewerID: reviewerID,
		Tier:       tier,
		ClaimedAt:  l.now(),
	}

	if err := l.repo.Upsert(ctx, a); err != nil {
		return fmt.Errorf("upsert assignment: %w", err)
	}

	if l.logger != nil {
		l.logger.Info("Case claimed", "case_id", caseID, "reviewer_id", reviewerID, "tier", tier)
	}

	return nil
}

// Touch refreshes the claim timestamp so active work cannot expire under the
// holder. Any action by the holder should pass through here.
func (l *Ledger) Touch(ctx context.Context, caseID int64, reviewerID string) error {
	return l.repo.Touch(ctx, caseID, reviewerID, l.now())
}

// Release frees the case back to no-assignment. Invoked for every terminal or
// routing action and for voluntary release; releasing an unclaimed case is a
// no-op.
func (l *Ledger) Release(ctx context.Context, caseID int64) error {
	if err := l.repo.Delete(ctx, caseID); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}

	if l.logger != nil {
		l.logger.Info("Case released", "case_id", caseID)
	}

	return nil
}

// ClaimedBy returns the reviewer's live assignments, filtering out any that
// have already expired.
func (l *Ledger) ClaimedBy(ctx context.Context, reviewerID string) ([]*entity.Assignment, error) {
	assignments, err := l.repo.ListByReviewer(ctx, reviewerID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	live := make([]*entity.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if !a.ExpiredAt(now, l.timeout) {
			live = append(live, a)
		}
	}
	return live, nil
}

// Holder returns the live assignment for a case, or nil when the case is
// unclaimed or the claim has expired.
func (l *Ledger) Holder(ctx context.Context, caseID int64) (*entity.Assignment, error) {
	a, err := l.repo.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.ExpiredAt(l.now(), l.timeout) {
		return nil, nil
	}
	return a, nil
}
