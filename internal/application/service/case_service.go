package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medikos/caseflow/internal/application/dispatcher"
	"github.com/medikos/caseflow/internal/application/ledger"
	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/domain/entity"
	"github.com/medikos/caseflow/internal/domain/event"
	"github.com/medikos/caseflow/internal/domain/workflow"
	"github.com/medikos/caseflow/internal/notification"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CreateCaseInput carries the fields of a new draft case
type CreateCaseInput struct {
	PatientRef      string
	BranchRef       string
	FunderRef       string
	CreatorID       string
	DifficultAccess bool
	Totals          entity.Totals
	Items           []entity.CaseItem
}

// ActionInput carries one inbound workflow action
type ActionInput struct {
	CaseID        int64
	Actor         string
	Role          workflow.Role
	Version       int    // expected current version; 0 targets whatever is current
	Justification string // comment or reason, required by some transitions
	DestTier      int    // RETURN destination
}

// ActionResult reports the case's state and version after an accepted action
type ActionResult struct {
	CaseID  int64          `json:"case_id"`
	State   workflow.State `json:"state"`
	Version int            `json:"version"`
}

// CaseService is the workflow orchestrator: one method per inbound action.
// Every accepted transition commits state update, assignment mutation, audit
// append, and notification rows in a single transaction; the live push rides
// on an async event after commit.
type CaseService interface {
	CreateCase(ctx context.Context, in CreateCaseInput) (*entity.Case, error)

	Submit(ctx context.Context, in ActionInput) (*ActionResult, error)
	Claim(ctx context.Context, in ActionInput) (*ActionResult, error)
	Release(ctx context.Context, in ActionInput) (*ActionResult, error)
	Approve(ctx context.Context, in ActionInput) (*ActionResult, error)
	ApproveConditional(ctx context.Context, in ActionInput) (*ActionResult, error)
	Reject(ctx context.Context, in ActionInput) (*ActionResult, error)
	Derive(ctx context.Context, in ActionInput) (*ActionResult, error)
	Escalate(ctx context.Context, in ActionInput) (*ActionResult, error)
	Observe(ctx context.Context, in ActionInput) (*ActionResult, error)
	Return(ctx context.Context, in ActionInput) (*ActionResult, error)
}

type caseServiceImpl struct {
	caseRepo    port.CaseRepository
	versionRepo port.VersionRepository
	auditRepo   port.AuditRepository
	notifRepo   port.NotificationRepository
	ledger      *ledger.Ledger
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	policy      workflow.Policy
	logger      Logger
}

// NewCaseService creates the workflow orchestrator
func NewCaseService(
	caseRepo port.CaseRepository,
	versionRepo port.VersionRepository,
	auditRepo port.AuditRepository,
	notifRepo port.NotificationRepository,
	lg *ledger.Ledger,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	policy workflow.Policy,
	logger Logger,
) CaseService {
	return &caseServiceImpl{
		caseRepo:    caseRepo,
		versionRepo: versionRepo,
		auditRepo:   auditRepo,
		notifRepo:   notifRepo,
		ledger:      lg,
		txManager:   txManager,
		dispatcher:  d,
		policy:      policy,
		logger:      logger,
	}
}

// CreateCase creates a new case in DRAFT at version 1
func (s *caseServiceImpl) CreateCase(ctx context.Context, in CreateCaseInput) (*entity.Case, error) {
	now := time.Now()
	c := &entity.Case{
		PublicID:        uuid.NewString(),
		PatientRef:      in.PatientRef,
		BranchRef:       in.BranchRef,
		FunderRef:       in.FunderRef,
		CreatorID:       in.CreatorID,
		CurrentVersion:  1,
		State:           workflow.StateDraft.String(),
		DifficultAccess: in.DifficultAccess,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.caseRepo.Create(txCtx, c); err != nil {
			return fmt.Errorf("create case: %w", err)
		}

		version := &entity.CaseVersion{
			CaseID:      c.ID,
			Version:     1,
			CostCents:   in.Totals.CostCents,
			BillCents:   in.Totals.BillCents,
			MarginCents: in.Totals.MarginCents,
			CreatedAt:   now,
		}
		if err := s.versionRepo.Create(txCtx, version, in.Items); err != nil {
			return fmt.Errorf("create version: %w", err)
		}

		audit := &entity.AuditEvent{
			CaseID:    c.ID,
			Version:   1,
			PrevState: "",
			NewState:  workflow.StateDraft.String(),
			ActorID:   in.CreatorID,
			ActorRole: workflow.RoleCreator.String(),
			Action:    "CREATE",
			CreatedAt: now,
		}
		if err := s.auditRepo.Append(txCtx, audit); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		return nil
	})

	if err != nil {
		s.logger.Error("Failed to create case", "error", err, "creator_id", in.CreatorID)
		return nil, err
	}

	s.logger.Info("Case created", "case_id", c.ID, "public_id", c.PublicID)
	return c, nil
}

func (s *caseServiceImpl) Submit(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return s.transition(ctx, workflow.ActionSubmit, in)
}

func (s *caseServiceImpl) Claim(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return s.transition(ctx, workflow.ActionClaim, in)
}

func (s *caseServiceImpl) Release(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return s.transition(ctx, workflow.ActionRelease, in)
}

func (s *caseServiceImpl) Approve(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return s.transition(ctx, workflow.ActionApprove, in)
}

func (s *caseServiceImpl) ApproveConditional(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return s.transition(ctx, workflow.ActionApproveCond, in)
}

func (s *caseServiceImpl) Reject(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return s.transition(ctx, workflow.ActionReject, in)
}

func (s *caseServiceImpl) Derive(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return s.transition(ctx, workflow.ActionDerive, in)
}

func (s *caseServiceImpl) Escalate(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return s.transition(ctx, workflow.ActionEscalate, in)
}

func (s *caseServiceImpl) Observe(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return s.transition(ctx, workflow.ActionObserve, in)
}

func (s *caseServiceImpl) Return(ctx context.Context, in ActionInput) (*ActionResult, error) {
	return s.transition(ctx, workflow.ActionReturn, in)
}

// transition runs the shared orchestration path: validate against the pure
// transition table, consult the assignment ledger, and commit all effects
// atomically. A rejection at any step leaves everything unchanged.
func (s *caseServiceImpl) transition(ctx context.Context, action workflow.Action, in ActionInput) (*ActionResult, error) {
	c, err := s.caseRepo.GetByID(ctx, in.CaseID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: id %d", ErrCaseNotFound, in.CaseID)
	}

	if in.Version != 0 && in.Version != c.CurrentVersion {
		return nil, fmt.Errorf("%w: have %d, current is %d", workflow.ErrStaleVersion, in.Version, c.CurrentVersion)
	}

	prevState := workflow.State(c.State)
	out, err := workflow.Decide(workflow.Request{
		State:         prevState,
		Role:          in.Role,
		Action:        action,
		Justification: in.Justification,
		DestTier:      in.DestTier,
	}, s.policy)
	if err != nil {
		return nil, err
	}

	// Review actions are off limits to the case's own creator, whatever role
	// they present. Submit stays open (it carries no claim effect).
	if out.Claim != workflow.ClaimNone && in.Actor == c.CreatorID {
		return nil, fmt.Errorf("%w: %s cannot review their own case", workflow.ErrInvalidTransition, in.Actor)
	}

	// Actions that complete or hand off a review must come from the live
	// holder; an expired claim no longer vetoes anyone (grace semantics, the
	// write below resolves the race).
	if out.Claim == workflow.ClaimRelease {
		holder, err := s.ledger.Holder(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("check holder: %w", err)
		}
		if holder != nil && holder.ReviewerID != in.Actor {
			return nil, fmt.Errorf("%w: held by %s", workflow.ErrAlreadyClaimed, holder.ReviewerID)
		}
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		switch out.Claim {
		case workflow.ClaimAcquire:
			if err := s.ledger.Claim(txCtx, c.ID, in.Actor, in.Role.ReviewTier()); err != nil {
				return err
			}
		case workflow.ClaimRelease:
			if err := s.ledger.Release(txCtx, c.ID); err != nil {
				return err
			}
		}

		ok, err := s.caseRepo.UpdateState(txCtx, c.ID, c.CurrentVersion, c.State, out.Next.String())
		if err != nil {
			return fmt.Errorf("update state: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: case %d changed concurrently", workflow.ErrStaleVersion, c.ID)
		}

		audit := &entity.AuditEvent{
			CaseID:    c.ID,
			Version:   c.CurrentVersion,
			PrevState: prevState.String(),
			NewState:  out.Next.String(),
			ActorID:   in.Actor,
			ActorRole: in.Role.String(),
			Action:    action.String(),
			Comment:   in.Justification,
			CreatedAt: time.Now(),
		}
		if err := s.auditRepo.Append(txCtx, audit); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		for _, recipient := range notification.Resolve(action, c.CreatorID, in.DestTier) {
			n := &entity.Notification{
				Recipient: recipient,
				CaseID:    c.ID,
				Version:   c.CurrentVersion,
				Category:  notification.Category(action),
				Message:   notification.Message(action, c.PublicID, in.Justification),
				CreatedAt: time.Now(),
			}
			if err := s.notifRepo.Create(txCtx, n); err != nil {
				return fmt.Errorf("create notification: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	s.logger.Info("Case transitioned",
		"case_id", c.ID,
		"action", action.String(),
		"prev_state", prevState.String(),
		"new_state", out.Next.String(),
		"actor", in.Actor,
	)

	if s.dispatcher != nil {
		// Correlate on the public id so every event of one case shares a chain
		evt := event.NewEventWithCorrelation(event.TypeCaseTransitioned, c.ID, c.CurrentVersion, map[string]interface{}{
			"action":     action.String(),
			"prev_state": prevState.String(),
			"new_state":  out.Next.String(),
		}, c.PublicID)
		evt = evt.WithPayload("recipients", notification.Resolve(action, c.CreatorID, in.DestTier))
		s.dispatcher.DispatchAsync(ctx, evt)
	}

	return &ActionResult{CaseID: c.ID, State: out.Next, Version: c.CurrentVersion}, nil
}
