package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/medikos/caseflow/internal/application/ledger"
	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/domain/entity"
	"github.com/medikos/caseflow/internal/domain/workflow"
)

// CaseDetail bundles a case with its current version, items, version history,
// and the actions each role may attempt from the current state
type CaseDetail struct {
	Case      *entity.Case          `json:"case"`
	Current   *entity.CaseVersion   `json:"current"`
	Items     []*entity.CaseItem    `json:"items"`
	Versions  []*entity.CaseVersion `json:"versions"`
	Permitted map[string][]string   `json:"permitted_actions"`
}

// QueryService is the read-only surface consumed by UIs. Queue listings are
// derived reads over the case store filtered by state, never an independently
// maintained list; results are only "reasonably recent" and a claim attempt
// against a listed case may still lose the race.
type QueryService interface {
	GetCase(ctx context.Context, id int64) (*CaseDetail, error)
	GetCaseByPublicID(ctx context.Context, publicID string) (*CaseDetail, error)
	PendingForTier(ctx context.Context, tier int, limit, offset int) ([]*entity.Case, error)
	ClaimedBy(ctx context.Context, reviewerID string) ([]*entity.Case, error)
	AuditTrail(ctx context.Context, caseID int64) ([]*entity.AuditEvent, error)
}

type queryServiceImpl struct {
	caseRepo    port.CaseRepository
	versionRepo port.VersionRepository
	auditRepo   port.AuditRepository
	ledger      *ledger.Ledger
	logger      Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(
	caseRepo port.CaseRepository,
	versionRepo port.VersionRepository,
	auditRepo port.AuditRepository,
	lg *ledger.Ledger,
	logger Logger,
) QueryService {
	return &queryServiceImpl{
		caseRepo:    caseRepo,
		versionRepo: versionRepo,
		auditRepo:   auditRepo,
		ledger:      lg,
		logger:      logger,
	}
}

func (s *queryServiceImpl) GetCase(ctx context.Context, id int64) (*CaseDetail, error) {
	c, err := s.caseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: id %d", ErrCaseNotFound, id)
	}
	return s.detail(ctx, c)
}

// GetCaseByPublicID resolves a case by its opaque public identifier, the form
// external links carry
func (s *queryServiceImpl) GetCaseByPublicID(ctx context.Context, publicID string) (*CaseDetail, error) {
	c, err := s.caseRepo.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: public id %s", ErrCaseNotFound, publicID)
	}
	return s.detail(ctx, c)
}

func (s *queryServiceImpl) detail(ctx context.Context, c *entity.Case) (*CaseDetail, error) {
	current, err := s.versionRepo.Get(ctx, c.ID, c.CurrentVersion)
	if err != nil {
		return nil, fmt.Errorf("get current version: %w", err)
	}

	items, err := s.versionRepo.GetItems(ctx, c.ID, c.CurrentVersion)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}

	versions, err := s.versionRepo.List(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	return &CaseDetail{
		Case:      c,
		Current:   current,
		Items:     items,
		Versions:  versions,
		Permitted: permittedByRole(workflow.State(c.State)),
	}, nil
}

// permittedByRole maps each role to the actions it may attempt from the state,
// so UIs render only viable buttons
func permittedByRole(state workflow.State) map[string][]string {
	out := make(map[string][]string)
	for _, role := range []workflow.Role{workflow.RoleCreator, workflow.RoleTier1, workflow.RoleTier2, workflow.RoleTier3} {
		actions := workflow.PermittedActions(state, role)
		if len(actions) == 0 {
			continue
		}
		names := make([]string, 0, len(actions))
		for _, a := range actions {
			names = append(names, a.String())
		}
		sort.Strings(names)
		out[role.String()] = names
	}
	return out
}

// PendingForTier lists the cases a tier's pool can pick up: everything sitting
// in its pending queue, plus in-review cases whose claim has expired and are
// therefore visibly available again.
func (s *queryServiceImpl) PendingForTier(ctx context.Context, tier int, limit, offset int) ([]*entity.Case, error) {
	pendingState, ok := workflow.PendingState(tier)
	if !ok {
		return nil, fmt.Errorf("invalid review tier: %d", tier)
	}

	cases, err := s.caseRepo.ListByState(ctx, pendingState.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	inReviewState, _ := workflow.InReviewState(tier)
	inReview, err := s.caseRepo.ListByState(ctx, inReviewState.String(), limit, 0)
	if err != nil {
		return nil, fmt.Errorf("list in review: %w", err)
	}

	for _, c := range inReview {
		holder, err := s.ledger.Holder(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("check holder: %w", err)
		}
		if holder == nil {
			cases = append(cases, c)
		}
	}

	return cases, nil
}

// ClaimedBy lists the cases a reviewer currently holds a live claim on
func (s *queryServiceImpl) ClaimedBy(ctx context.Context, reviewerID string) ([]*entity.Case, error) {
	assignments, err := s.ledger.ClaimedBy(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	if len(assignments) == 0 {
		return []*entity.Case{}, nil
	}

	ids := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.CaseID)
	}

	cases, err := s.caseRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return cases, nil
}

func (s *queryServiceImpl) AuditTrail(ctx context.Context, caseID int64) ([]*entity.AuditEvent, error) {
	events, err := s.auditRepo.ListByCaseID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}
