package entity

import "time"

// Case represents a versioned cost estimate progressing through the approval
// workflow. The id is stable across versions; CurrentVersion points at the one
// version new edits target.
type Case struct {
	ID              int64     `json:"id"`
	PublicID        string    `json:"public_id"`
	PatientRef      string    `json:"patient_ref"`
	BranchRef       string    `json:"branch_ref"`
	FunderRef       string    `json:"funder_ref"`
	CreatorID       string    `json:"creator_id"`
	CurrentVersion  int       `json:"current_version"`
	State           string    `json:"state"`
	DifficultAccess bool      `json:"difficult_access"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CaseVersion stores the totals of one version of a case. The row for the
// current version is live; superseded rows are immutable snapshots.
type CaseVersion struct {
	CaseID      int64     `json:"case_id"`
	Version     int       `json:"version"`
	CostCents   int64     `json:"cost_cents"`
	BillCents   int64     `json:"bill_cents"`
	MarginCents int64     `json:"margin_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

// Item kinds within a case version
const (
	ItemKindSupply    = "SUPPLY"
	ItemKindService   = "SERVICE"
	ItemKindEquipment = "EQUIPMENT"
)

// CaseItem is one line item (supply, service, equipment) of a case version
type CaseItem struct {
	ID             int64  `json:"id"`
	CaseID         int64  `json:"case_id"`
	Version        int    `json:"version"`
	Kind           string `json:"kind"`
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Totals carries the externally computed financial figures attached to a case
// version at edit time. The engine stores them verbatim and never recomputes.
type Totals struct {
	CostCents   int64 `json:"cost_cents"`
	BillCents   int64 `json:"bill_cents"`
	MarginCents int64 `json:"margin_cents"`
}
