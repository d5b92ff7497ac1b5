package entity

import "time"

// AuditEvent is one append-only record of a state transition. The full event
// list for a case id is its audit trail; rows are never mutated or deleted.
type AuditEvent struct {
	ID        int64     `json:"id"`
	CaseID    int64     `json:"case_id"`
	Version   int       `json:"version"`
	PrevState string    `json:"prev_state"`
	NewState  string    `json:"new_state"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Action    string    `json:"action"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
