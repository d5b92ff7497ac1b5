package workflow

// State represents a workflow state in the case approval lifecycle
type State string

const (
	StateDraft         State = "DRAFT"
	StatePendingTier1  State = "PENDING_TIER1"
	StateInReviewTier1 State = "IN_REVIEW_TIER1"
	StatePendingTier2  State = "PENDING_TIER2"
	StateInReviewTier2 State = "IN_REVIEW_TIER2"
	StatePendingTier3  State = "PENDING_TIER3"
	StateInReviewTier3 State = "IN_REVIEW_TIER3"
	StateApproved      State = "APPROVED"
	StateApprovedCond  State = "APPROVED_CONDITIONAL"
	StateRejected      State = "REJECTED"
)

var validStates = map[State]bool{
	StateDraft:         true,
	StatePendingTier1:  true,
	StateInReviewTier1: true,
	StatePendingTier2:  true,
	StateInReviewTier2: true,
	StatePendingTier3:  true,
	StateInReviewTier3: true,
	StateApproved:      true,
	StateApprovedCond:  true,
	StateRejected:      true,
}

var terminalStates = map[State]bool{
	StateApproved:     true,
	StateApprovedCond: true,
	StateRejected:     true,
}

// pendingByTier maps a review tier to its queue state
var pendingByTier = map[int]State{
	1: StatePendingTier1,
	2: StatePendingTier2,
	3: StatePendingTier3,
}

// inReviewByTier maps a review tier to its claimed state
var inReviewByTier = map[int]State{
	1: StateInReviewTier1,
	2: StateInReviewTier2,
	3: StateInReviewTier3,
}

// IsTerminal returns true if the state is a terminal state for the current
// version (a new version always starts again at DRAFT)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// PendingState returns the queue state for a tier, or false if the tier
// is not a review tier
func PendingState(tier int) (State, bool) {
	s, ok := pendingByTier[tier]
	return s, ok
}

// InReviewState returns the claimed state for a tier, or false if the tier
// is not a review tier
func InReviewState(tier int) (State, bool) {
	s, ok := inReviewByTier[tier]
	return s, ok
}

// Tier returns the review tier a pending or in-review state belongs to,
// or 0 for states outside the review tiers
func (s State) Tier() int {
	for tier, ps := range pendingByTier {
		if ps == s {
			return tier
		}
	}
	for tier, rs := range inReviewByTier {
		if rs == s {
			return tier
		}
	}
	return 0
}
