package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medikos/caseflow/internal/application/ledger"
	"github.com/medikos/caseflow/internal/domain/entity"
	"github.com/medikos/caseflow/internal/domain/workflow"
)

type fixture struct {
	cases       *mockCaseRepo
	versions    *mockVersionRepo
	audits      *mockAuditRepo
	notifs      *mockNotifRepo
	assignments *mockAssignmentRepo
	ledger      *ledger.Ledger
	now         time.Time
	svc         CaseService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		cases:       newMockCaseRepo(),
		versions:    newMockVersionRepo(),
		audits:      &mockAuditRepo{},
		notifs:      &mockNotifRepo{},
		assignments: newMockAssignmentRepo(),
		now:         time.Now(),
	}

	f.ledger = ledger.New(f.assignments, 30*time.Minute, ledger.WithClock(func() time.Time { return f.now }))
	f.svc = NewCaseService(
		f.cases, f.versions, f.audits, f.notifs,
		f.ledger, &mockTxManager{}, nil,
		workflow.Policy{MinJustificationLen: 10},
		&mockLogger{},
	)
	return f
}

func (f *fixture) mustCreate(t *testing.T) *entity.Case {
	t.Helper()
	c, err := f.svc.CreateCase(context.Background(), CreateCaseInput{
		PatientRef: "patient-9",
		BranchRef:  "branch-2",
		FunderRef:  "funder-5",
		CreatorID:  "creator-1",
		Totals:     entity.Totals{CostCents: 120000, BillCents: 150000, MarginCents: 30000},
		Items: []entity.CaseItem{
			{Kind: entity.ItemKindService, Description: "home nursing visit", Quantity: 4, UnitPriceCents: 30000},
		},
	})
	if err != nil {
		t.Fatalf("CreateCase() error = %v", err)
	}
	return c
}

func (f *fixture) mustSubmit(t *testing.T, caseID int64) {
	t.Helper()
	if _, err := f.svc.Submit(context.Background(), ActionInput{CaseID: caseID, Actor: "creator-1", Role: workflow.RoleCreator}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
}

func (f *fixture) mustClaim(t *testing.T, caseID int64, reviewer string, role workflow.Role) {
	t.Helper()
	if _, err := f.svc.Claim(context.Background(), ActionInput{CaseID: caseID, Actor: reviewer, Role: role}); err != nil {
		t.Fatalf("Claim(%s) error = %v", reviewer, err)
	}
}

func TestCaseService_CreateCase(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)

	if c.State != workflow.StateDraft.String() {
		t.Errorf("new case state = %s, want DRAFT", c.State)
	}
	if c.CurrentVersion != 1 {
		t.Errorf("new case version = %d, want 1", c.CurrentVersion)
	}
	if c.PublicID == "" {
		t.Error("new case should carry a public id")
	}

	v, _ := f.versions.Get(context.Background(), c.ID, 1)
	if v == nil || v.BillCents != 150000 {
		t.Errorf("version 1 totals = %+v, want bill 150000", v)
	}

	trail, _ := f.audits.ListByCaseID(context.Background(), c.ID)
	if len(trail) != 1 || trail[0].Action != "CREATE" {
		t.Errorf("audit trail = %+v, want single CREATE entry", trail)
	}
}

func TestCaseService_SubmitNotifiesTier1Pool(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)

	res, err := f.svc.Submit(context.Background(), ActionInput{CaseID: c.ID, Actor: "creator-1", Role: workflow.RoleCreator})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.State != workflow.StatePendingTier1 {
		t.Errorf("state after submit = %s, want PENDING_TIER1", res.State)
	}

	count, _ := f.notifs.CountUnread(context.Background(), []string{entity.PoolRecipient(1)})
	if count != 1 {
		t.Errorf("tier1 pool unread = %d, want 1", count)
	}
}

func TestCaseService_ClaimIsFirstComeFirstServed(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)

	res, err := f.svc.Claim(context.Background(), ActionInput{CaseID: c.ID, Actor: "r1", Role: workflow.RoleTier1})
	if err != nil {
		t.Fatalf("first Claim() error = %v", err)
	}
	if res.State != workflow.StateInReviewTier1 {
		t.Errorf("state after claim = %s, want IN_REVIEW_TIER1", res.State)
	}

	_, err = f.svc.Claim(context.Background(), ActionInput{CaseID: c.ID, Actor: "r2", Role: workflow.RoleTier1})
	if !errors.Is(err, workflow.ErrAlreadyClaimed) {
		t.Errorf("second Claim() error = %v, want ErrAlreadyClaimed", err)
	}

	a, _ := f.assignments.Get(context.Background(), c.ID)
	if a == nil || a.ReviewerID != "r1" {
		t.Errorf("assignment = %+v, want held by r1", a)
	}
}

func TestCaseService_ExpiredClaimCanBeTakenOver(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)
	f.mustClaim(t, c.ID, "r1", workflow.RoleTier1)

	// r1 goes silent past the inactivity timeout
	f.now = f.now.Add(31 * time.Minute)

	res, err := f.svc.Claim(context.Background(), ActionInput{CaseID: c.ID, Actor: "r2", Role: workflow.RoleTier1})
	if err != nil {
		t.Fatalf("takeover Claim() error = %v", err)
	}
	if res.State != workflow.StateInReviewTier1 {
		t.Errorf("state after takeover = %s, want IN_REVIEW_TIER1", res.State)
	}

	a, _ := f.assignments.Get(context.Background(), c.ID)
	if a == nil || a.ReviewerID != "r2" {
		t.Errorf("assignment = %+v, want held by r2", a)
	}
}

func TestCaseService_RejectReleasesAndNotifiesCreator(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)
	f.mustClaim(t, c.ID, "r1", workflow.RoleTier1)

	res, err := f.svc.Reject(context.Background(), ActionInput{
		CaseID:        c.ID,
		Actor:         "r1",
		Role:          workflow.RoleTier1,
		Justification: "incomplete documentation",
	})
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if res.State != workflow.StateRejected {
		t.Errorf("state after reject = %s, want REJECTED", res.State)
	}

	a, _ := f.assignments.Get(context.Background(), c.ID)
	if a != nil {
		t.Errorf("assignment after reject = %+v, want released", a)
	}

	list, _ := f.notifs.ListUnread(context.Background(), []string{"creator-1"}, 10)
	if len(list) != 1 {
		t.Fatalf("creator unread = %d, want 1", len(list))
	}
	if list[0].Category != "reject" {
		t.Errorf("notification category = %s, want reject", list[0].Category)
	}
}

func TestCaseService_RejectionLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)
	f.mustClaim(t, c.ID, "r1", workflow.RoleTier1)

	auditsBefore, _ := f.audits.ListByCaseID(context.Background(), c.ID)
	notifsBefore, _ := f.notifs.CountUnread(context.Background(), []string{"creator-1", entity.PoolRecipient(1)})

	// Missing the required comment
	_, err := f.svc.Reject(context.Background(), ActionInput{CaseID: c.ID, Actor: "r1", Role: workflow.RoleTier1})
	if !errors.Is(err, workflow.ErrMissingJustification) {
		t.Fatalf("Reject() error = %v, want ErrMissingJustification", err)
	}

	got, _ := f.cases.GetByID(context.Background(), c.ID)
	if got.State != workflow.StateInReviewTier1.String() {
		t.Errorf("state after rejected action = %s, want IN_REVIEW_TIER1", got.State)
	}

	a, _ := f.assignments.Get(context.Background(), c.ID)
	if a == nil || a.ReviewerID != "r1" {
		t.Errorf("assignment after rejected action = %+v, want still held by r1", a)
	}

	auditsAfter, _ := f.audits.ListByCaseID(context.Background(), c.ID)
	if len(auditsAfter) != len(auditsBefore) {
		t.Errorf("audit trail grew on a rejected action: %d -> %d", len(auditsBefore), len(auditsAfter))
	}

	notifsAfter, _ := f.notifs.CountUnread(context.Background(), []string{"creator-1", entity.PoolRecipient(1)})
	if notifsAfter != notifsBefore {
		t.Errorf("notifications changed on a rejected action: %d -> %d", notifsBefore, notifsAfter)
	}
}

func TestCaseService_NonHolderCannotAct(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)
	f.mustClaim(t, c.ID, "r1", workflow.RoleTier1)

	_, err := f.svc.Approve(context.Background(), ActionInput{CaseID: c.ID, Actor: "r2", Role: workflow.RoleTier1})
	if !errors.Is(err, workflow.ErrAlreadyClaimed) {
		t.Errorf("Approve() by non-holder error = %v, want ErrAlreadyClaimed", err)
	}
}

func TestCaseService_CreatorCannotReviewOwnCase(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)

	// The creator presenting a reviewer role must not get past the gate
	_, err := f.svc.Claim(context.Background(), ActionInput{CaseID: c.ID, Actor: "creator-1", Role: workflow.RoleTier1})
	if !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("Claim() by creator error = %v, want ErrInvalidTransition", err)
	}

	got, _ := f.cases.GetByID(context.Background(), c.ID)
	if got.State != workflow.StatePendingTier1.String() {
		t.Errorf("state after creator claim attempt = %s, want PENDING_TIER1", got.State)
	}
	if a, _ := f.assignments.Get(context.Background(), c.ID); a != nil {
		t.Errorf("assignment after creator claim attempt = %+v, want none", a)
	}

	// Same gate on the decision actions, even over someone else's live claim
	f.mustClaim(t, c.ID, "r1", workflow.RoleTier1)
	for name, act := range map[string]func(context.Context, ActionInput) (*ActionResult, error){
		"Approve": f.svc.Approve,
		"Reject":  f.svc.Reject,
	} {
		_, err := act(context.Background(), ActionInput{
			CaseID: c.ID, Actor: "creator-1", Role: workflow.RoleTier1,
			Justification: "approving my own estimate",
		})
		if !errors.Is(err, workflow.ErrInvalidTransition) {
			t.Errorf("%s() by creator error = %v, want ErrInvalidTransition", name, err)
		}
	}

	got, _ = f.cases.GetByID(context.Background(), c.ID)
	if got.State != workflow.StateInReviewTier1.String() {
		t.Errorf("state after creator decision attempts = %s, want IN_REVIEW_TIER1", got.State)
	}
}

func TestCaseService_DeriveEscalateReturnRouting(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)
	f.mustClaim(t, c.ID, "r1", workflow.RoleTier1)

	res, err := f.svc.Derive(context.Background(), ActionInput{CaseID: c.ID, Actor: "r1", Role: workflow.RoleTier1})
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if res.State != workflow.StatePendingTier2 {
		t.Errorf("state after derive = %s, want PENDING_TIER2", res.State)
	}
	if n, _ := f.notifs.CountUnread(context.Background(), []string{entity.PoolRecipient(2)}); n != 1 {
		t.Errorf("tier2 pool unread = %d, want 1", n)
	}

	f.mustClaim(t, c.ID, "r2", workflow.RoleTier2)
	res, err = f.svc.Escalate(context.Background(), ActionInput{
		CaseID: c.ID, Actor: "r2", Role: workflow.RoleTier2,
		Justification: "margin above my authority",
	})
	if err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if res.State != workflow.StatePendingTier3 {
		t.Errorf("state after escalate = %s, want PENDING_TIER3", res.State)
	}

	f.mustClaim(t, c.ID, "r3", workflow.RoleTier3)
	res, err = f.svc.Return(context.Background(), ActionInput{
		CaseID: c.ID, Actor: "r3", Role: workflow.RoleTier3, DestTier: 1,
	})
	if err != nil {
		t.Fatalf("Return() error = %v", err)
	}
	if res.State != workflow.StatePendingTier1 {
		t.Errorf("state after return = %s, want PENDING_TIER1", res.State)
	}
	if n, _ := f.notifs.CountUnread(context.Background(), []string{entity.PoolRecipient(1)}); n != 2 {
		t.Errorf("tier1 pool unread = %d, want 2 (submit + return)", n)
	}
}

func TestCaseService_ObserveSendsBackToDraft(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)
	f.mustClaim(t, c.ID, "r1", workflow.RoleTier1)
	if _, err := f.svc.Derive(context.Background(), ActionInput{CaseID: c.ID, Actor: "r1", Role: workflow.RoleTier1}); err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	f.mustClaim(t, c.ID, "r2", workflow.RoleTier2)

	res, err := f.svc.Observe(context.Background(), ActionInput{
		CaseID: c.ID, Actor: "r2", Role: workflow.RoleTier2,
		Justification: "totals need a recompute",
	})
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if res.State != workflow.StateDraft {
		t.Errorf("state after observe = %s, want DRAFT", res.State)
	}

	list, _ := f.notifs.ListUnread(context.Background(), []string{"creator-1"}, 10)
	if len(list) != 1 || list[0].Category != "observe" {
		t.Errorf("creator notifications = %+v, want one observe", list)
	}
}

func TestCaseService_StaleVersionRejected(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)

	_, err := f.svc.Submit(context.Background(), ActionInput{
		CaseID: c.ID, Actor: "creator-1", Role: workflow.RoleCreator, Version: 99,
	})
	if !errors.Is(err, workflow.ErrStaleVersion) {
		t.Errorf("Submit() with wrong version error = %v, want ErrStaleVersion", err)
	}
}

func TestCaseService_UnknownCase(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), ActionInput{CaseID: 404, Actor: "creator-1", Role: workflow.RoleCreator})
	if !errors.Is(err, ErrCaseNotFound) {
		t.Errorf("Submit() on missing case error = %v, want ErrCaseNotFound", err)
	}
}

func TestCaseService_VoluntaryReleaseReturnsToQueue(t *testing.T) {
	f := newFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)
	f.mustClaim(t, c.ID, "r1", workflow.RoleTier1)

	res, err := f.svc.Release(context.Background(), ActionInput{CaseID: c.ID, Actor: "r1", Role: workflow.RoleTier1})
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if res.State != workflow.StatePendingTier1 {
		t.Errorf("state after release = %s, want PENDING_TIER1", res.State)
	}

	if _, err := f.svc.Claim(context.Background(), ActionInput{CaseID: c.ID, Actor: "r2", Role: workflow.RoleTier1}); err != nil {
		t.Errorf("Claim() after release error = %v", err)
	}
}
