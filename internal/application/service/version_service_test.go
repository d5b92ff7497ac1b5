package service

import (
	"context"
	"errors"
	"testing"

	"github.com/medikos/caseflow/internal/domain/entity"
	"github.com/medikos/caseflow/internal/domain/workflow"
)

func newVersionFixture(t *testing.T) (*fixture, VersionService) {
	t.Helper()
	f := newFixture(t)
	svc := NewVersionService(f.cases, f.versions, f.audits, f.ledger, &mockTxManager{}, nil, &mockLogger{})
	return f, svc
}

func TestVersionService_DraftEditsApplyInPlace(t *testing.T) {
	f, svc := newVersionFixture(t)
	c := f.mustCreate(t)

	res, err := svc.Edit(context.Background(), EditInput{
		CaseID:  c.ID,
		Actor:   "creator-1",
		Version: 1,
		Totals:  entity.Totals{CostCents: 90000, BillCents: 110000, MarginCents: 20000},
		Items: []entity.CaseItem{
			{Kind: entity.ItemKindSupply, Description: "wound dressing kit", Quantity: 10, UnitPriceCents: 1100},
		},
	})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if res.Forked || res.Version != 1 {
		t.Errorf("Edit() = %+v, want in-place at version 1", res)
	}

	got, _ := f.cases.GetByID(context.Background(), c.ID)
	if got.CurrentVersion != 1 {
		t.Errorf("current version = %d, want 1", got.CurrentVersion)
	}

	v, _ := f.versions.Get(context.Background(), c.ID, 1)
	if v.BillCents != 110000 {
		t.Errorf("totals not updated in place: %+v", v)
	}
}

func TestVersionService_NonDraftEditNeedsConfirmation(t *testing.T) {
	f, svc := newVersionFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)

	_, err := svc.Edit(context.Background(), EditInput{CaseID: c.ID, Actor: "creator-1", Version: 1})
	if !errors.Is(err, workflow.ErrConfirmationRequired) {
		t.Fatalf("Edit() error = %v, want ErrConfirmationRequired", err)
	}

	// Nothing mutated
	got, _ := f.cases.GetByID(context.Background(), c.ID)
	if got.CurrentVersion != 1 || got.State != workflow.StatePendingTier1.String() {
		t.Errorf("case changed by unconfirmed edit: %+v", got)
	}
}

func TestVersionService_ConfirmedForkPreservesOldVersion(t *testing.T) {
	f, svc := newVersionFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)
	f.mustClaim(t, c.ID, "r1", workflow.RoleTier1)
	if _, err := f.svc.Reject(context.Background(), ActionInput{
		CaseID: c.ID, Actor: "r1", Role: workflow.RoleTier1,
		Justification: "incomplete documentation",
	}); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	res, err := svc.Edit(context.Background(), EditInput{
		CaseID:    c.ID,
		Actor:     "creator-1",
		Version:   1,
		Confirmed: true,
		Totals:    entity.Totals{CostCents: 100000, BillCents: 130000, MarginCents: 30000},
	})
	if err != nil {
		t.Fatalf("confirmed Edit() error = %v", err)
	}
	if !res.Forked || res.Version != 2 {
		t.Errorf("Edit() = %+v, want fork to version 2", res)
	}

	got, _ := f.cases.GetByID(context.Background(), c.ID)
	if got.CurrentVersion != 2 || got.State != workflow.StateDraft.String() {
		t.Errorf("case after fork = %+v, want version 2 in DRAFT", got)
	}

	// Version 1 remains retrievable and untouched
	v1, _ := f.versions.Get(context.Background(), c.ID, 1)
	if v1 == nil || v1.BillCents != 150000 {
		t.Errorf("version 1 = %+v, want original totals preserved", v1)
	}

	v2, _ := f.versions.Get(context.Background(), c.ID, 2)
	if v2 == nil || v2.BillCents != 130000 {
		t.Errorf("version 2 = %+v, want new totals", v2)
	}
}

func TestVersionService_ForkReleasesLiveClaim(t *testing.T) {
	f, svc := newVersionFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)
	f.mustClaim(t, c.ID, "r1", workflow.RoleTier1)

	// The creator forks while r1 still holds the case
	res, err := svc.Edit(context.Background(), EditInput{
		CaseID:    c.ID,
		Actor:     "creator-1",
		Version:   1,
		Confirmed: true,
		Totals:    entity.Totals{CostCents: 100000, BillCents: 130000, MarginCents: 30000},
	})
	if err != nil {
		t.Fatalf("confirmed Edit() error = %v", err)
	}
	if !res.Forked {
		t.Fatalf("Edit() = %+v, want fork", res)
	}

	if a, _ := f.assignments.Get(context.Background(), c.ID); a != nil {
		t.Errorf("assignment after fork = %+v, want released with the voided review", a)
	}

	// The resubmitted version is claimable by anyone, not just r1
	f.mustSubmit(t, c.ID)
	if _, err := f.svc.Claim(context.Background(), ActionInput{CaseID: c.ID, Actor: "r2", Role: workflow.RoleTier1}); err != nil {
		t.Errorf("Claim() after fork and resubmit error = %v", err)
	}
}

func TestVersionService_ConcurrentForkIsIdempotent(t *testing.T) {
	f, svc := newVersionFixture(t)
	c := f.mustCreate(t)
	f.mustSubmit(t, c.ID)
	f.mustClaim(t, c.ID, "r1", workflow.RoleTier1)
	if _, err := f.svc.Reject(context.Background(), ActionInput{
		CaseID: c.ID, Actor: "r1", Role: workflow.RoleTier1,
		Justification: "incomplete documentation",
	}); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	in := EditInput{CaseID: c.ID, Actor: "creator-1", Version: 1, Confirmed: true}

	if _, err := svc.Edit(context.Background(), in); err != nil {
		t.Fatalf("first confirmed Edit() error = %v", err)
	}

	// The second confirmed request raced on the same expected version; it must
	// observe the advanced version and fail cleanly, never duplicate
	_, err := svc.Edit(context.Background(), in)
	if !errors.Is(err, workflow.ErrStaleVersion) {
		t.Fatalf("second confirmed Edit() error = %v, want ErrStaleVersion", err)
	}

	got, _ := f.cases.GetByID(context.Background(), c.ID)
	if got.CurrentVersion != 2 {
		t.Errorf("current version = %d, want exactly 2", got.CurrentVersion)
	}

	versions, _ := f.versions.List(context.Background(), c.ID)
	if len(versions) != 2 {
		t.Errorf("version count = %d, want 2", len(versions))
	}
}

func TestVersionService_StaleExpectedVersion(t *testing.T) {
	f, svc := newVersionFixture(t)
	c := f.mustCreate(t)

	_, err := svc.Edit(context.Background(), EditInput{CaseID: c.ID, Actor: "creator-1", Version: 5})
	if !errors.Is(err, workflow.ErrStaleVersion) {
		t.Errorf("Edit() with wrong expected version error = %v, want ErrStaleVersion", err)
	}
}
