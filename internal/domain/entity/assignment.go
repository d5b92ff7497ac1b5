package entity

import "time"

// Assignment is an exclusive claim on a case while it sits in review.
// At most one active (non-expired) assignment exists per case id.
type Assignment struct {
	CaseID     int64     `json:"case_id"`
	ReviewerID string    `json:"reviewer_id"`
	Tier       int       `json:"tier"`
	ClaimedAt  time.Time `json:"claimed_at"`
}

// ExpiredAt reports whether the claim has outlived the inactivity window as
// of the given instant. Expiry is advisory: it is evaluated lazily at the next
// claim attempt, never by a background sweeper.
func (a *Assignment) ExpiredAt(now time.Time, timeout time.Duration) bool {
	return now.Sub(a.ClaimedAt) > timeout
}
