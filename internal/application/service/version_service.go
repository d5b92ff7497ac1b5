package service

import (
	"context"
	"fmt"
	"time"

	"github.com/medikos/caseflow/internal/application/dispatcher"
	"github.com/medikos/caseflow/internal/application/ledger"
	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/domain/entity"
	"github.com/medikos/caseflow/internal/domain/event"
	"github.com/medikos/caseflow/internal/domain/workflow"
)

// EditInput carries one edit request against a case's current version
type EditInput struct {
	CaseID    int64
	Actor     string
	Version   int  // expected current version
	Confirmed bool // required before forking a non-draft case
	Totals    entity.Totals
	Items     []entity.CaseItem
}

// EditResult reports where the edit landed
type EditResult struct {
	CaseID  int64 `json:"case_id"`
	Version int   `json:"version"`
	Forked  bool  `json:"forked"`
}

// VersionService is the versioning controller: it decides whether an edit
// mutates the current version in place or forks a new one, and performs the
// fork idempotently under concurrency.
type VersionService interface {
	Edit(ctx context.Context, in EditInput) (*EditResult, error)
}

type versionServiceImpl struct {
	caseRepo    port.CaseRepository
	versionRepo port.VersionRepository
	auditRepo   port.AuditRepository
	ledger      *ledger.Ledger
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      Logger
}

// NewVersionService creates the versioning controller
func NewVersionService(
	caseRepo port.CaseRepository,
	versionRepo port.VersionRepository,
	auditRepo port.AuditRepository,
	lg *ledger.Ledger,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) VersionService {
	return &versionServiceImpl{
		caseRepo:    caseRepo,
		versionRepo: versionRepo,
		auditRepo:   auditRepo,
		ledger:      lg,
		txManager:   txManager,
		dispatcher:  d,
		logger:      logger,
	}
}

// Edit applies an edit to a draft case in place. Against any other state the
// first request returns ErrConfirmationRequired; a confirmed request forks a
// new current version and resets it to DRAFT, leaving the old version row
// immutable. Concurrent confirmed forks produce exactly one new version: the
// loser observes the advanced version number and fails with ErrStaleVersion.
func (s *versionServiceImpl) Edit(ctx context.Context, in EditInput) (*EditResult, error) {
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

	if workflow.State(c.State) == workflow.StateDraft {
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.versionRepo.UpdateTotals(txCtx, c.ID, c.CurrentVersion, in.Totals); err != nil {
				return fmt.Errorf("update totals: %w", err)
			}
			if err := s.versionRepo.ReplaceItems(txCtx, c.ID, c.CurrentVersion, in.Items); err != nil {
				return fmt.Errorf("replace items: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		s.logger.Info("Case edited in place", "case_id", c.ID, "version", c.CurrentVersion)
		return &EditResult{CaseID: c.ID, Version: c.CurrentVersion, Forked: false}, nil
	}

	if !in.Confirmed {
		return nil, fmt.Errorf("%w: case %d is %s", workflow.ErrConfirmationRequired, c.ID, c.State)
	}

	newVersion := c.CurrentVersion + 1
	prevState := c.State

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := s.caseRepo.AdvanceVersion(txCtx, c.ID, c.CurrentVersion, workflow.StateDraft.String())
		if err != nil {
			return fmt.Errorf("advance version: %w", err)
		}
		if !ok {
			// A concurrent confirmed fork already advanced the version
			return fmt.Errorf("%w: version %d already superseded", workflow.ErrStaleVersion, c.CurrentVersion)
		}

		// The fork voids any in-flight review; dropping the assignment keeps
		// the resubmitted version claimable by anyone
		if err := s.ledger.Release(txCtx, c.ID); err != nil {
			return fmt.Errorf("release assignment: %w", err)
		}

		version := &entity.CaseVersion{
			CaseID:      c.ID,
			Version:     newVersion,
			CostCents:   in.Totals.CostCents,
			BillCents:   in.Totals.BillCents,
			MarginCents: in.Totals.MarginCents,
			CreatedAt:   time.Now(),
		}
		if err := s.versionRepo.Create(txCtx, version, in.Items); err != nil {
			return fmt.Errorf("create version: %w", err)
		}

		audit := &entity.AuditEvent{
			CaseID:    c.ID,
			Version:   newVersion,
			PrevState: prevState,
			NewState:  workflow.StateDraft.String(),
			ActorID:   in.Actor,
			ActorRole: workflow.RoleCreator.String(),
			Action:    workflow.ActionFork.String(),
			CreatedAt: time.Now(),
		}
		if err := s.auditRepo.Append(txCtx, audit); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	s.logger.Info("Case forked", "case_id", c.ID, "version", newVersion, "prev_state", prevState)

	if s.dispatcher != nil {
		evt := event.NewEventWithCorrelation(event.TypeCaseForked, c.ID, newVersion, map[string]interface{}{
			"prev_state":   prevState,
			"prev_version": c.CurrentVersion,
		}, c.PublicID)
		s.dispatcher.DispatchAsync(ctx, evt)
	}

	return &EditResult{CaseID: c.ID, Version: newVersion, Forked: true}, nil
}
