package workflow

import (
	"fmt"
	"strings"
)

// ClaimEffect describes what an accepted transition does to the case's assignment
type ClaimEffect int

const (
	// ClaimNone leaves the assignment ledger untouched
	ClaimNone ClaimEffect = iota

	// ClaimAcquire requires the actor to win an exclusive claim on the case
	ClaimAcquire

	// ClaimRelease frees the actor's claim back to the pool
	ClaimRelease
)

// Policy holds the product policy constants the transition table enforces.
// These are configuration, not engine invariants.
type Policy struct {
	MinJustificationLen int
}

// Request carries the caller-supplied inputs of one transition attempt
type Request struct {
	State         State
	Role          Role
	Action        Action
	Justification string

	// DestTier selects the destination queue for the RETURN action
	DestTier int
}

// Outcome is the decision for an accepted transition
type Outcome struct {
	Next  State
	Claim ClaimEffect
}

// rule describes one permitted (state, action) pair
type rule struct {
	role      Role
	next      State
	needsJust bool
	claim     ClaimEffect
}

// transitions is the complete role-specific transition table. RETURN's
// destination is resolved in Decide because it is parameterized by DestTier.
var transitions = map[State]map[Action]rule{
	StateDraft: {
		ActionSubmit: {role: RoleCreator, next: StatePendingTier1},
	},
	StatePendingTier1: {
		ActionClaim: {role: RoleTier1, next: StateInReviewTier1, claim: ClaimAcquire},
	},
	StatePendingTier2: {
		ActionClaim: {role: RoleTier2, next: StateInReviewTier2, claim: ClaimAcquire},
	},
	StatePendingTier3: {
		ActionClaim: {role: RoleTier3, next: StateInReviewTier3, claim: ClaimAcquire},
	},
	StateInReviewTier1: {
		// claim from an in-review state is a takeover; it only succeeds when
		// the ledger finds the existing claim expired or absent
		ActionClaim:       {role: RoleTier1, next: StateInReviewTier1, claim: ClaimAcquire},
		ActionRelease:     {role: RoleTier1, next: StatePendingTier1, claim: ClaimRelease},
		ActionApprove:     {role: RoleTier1, next: StateApproved, claim: ClaimRelease},
		ActionApproveCond: {role: RoleTier1, next: StateApprovedCond, needsJust: true, claim: ClaimRelease},
		ActionReject:      {role: RoleTier1, next: StateRejected, needsJust: true, claim: ClaimRelease},
		ActionDerive:      {role: RoleTier1, next: StatePendingTier2, claim: ClaimRelease},
	},
	StateInReviewTier2: {
		ActionClaim:       {role: RoleTier2, next: StateInReviewTier2, claim: ClaimAcquire},
		ActionRelease:     {role: RoleTier2, next: StatePendingTier2, claim: ClaimRelease},
		ActionApprove:     {role: RoleTier2, next: StateApproved, claim: ClaimRelease},
		ActionApproveCond: {role: RoleTier2, next: StateApprovedCond, needsJust: true, claim: ClaimRelease},
		ActionReject:      {role: RoleTier2, next: StateRejected, needsJust: true, claim: ClaimRelease},
		ActionObserve:     {role: RoleTier2, next: StateDraft, needsJust: true, claim: ClaimRelease},
		ActionEscalate:    {role: RoleTier2, next: StatePendingTier3, needsJust: true, claim: ClaimRelease},
	},
	StateInReviewTier3: {
		ActionClaim:       {role: RoleTier3, next: StateInReviewTier3, claim: ClaimAcquire},
		ActionRelease:     {role: RoleTier3, next: StatePendingTier3, claim: ClaimRelease},
		ActionApprove:     {role: RoleTier3, next: StateApproved, claim: ClaimRelease},
		ActionApproveCond: {role: RoleTier3, next: StateApprovedCond, needsJust: true, claim: ClaimRelease},
		ActionReject:      {role: RoleTier3, next: StateRejected, needsJust: true, claim: ClaimRelease},
		ActionReturn:      {role: RoleTier3, claim: ClaimRelease},
	},
}

// Decide is the pure transition function: given the case's current state, the
// actor's role, and the requested action, it returns the accepted outcome or a
// typed rejection. It performs no I/O and mutates nothing.
func Decide(req Request, pol Policy) (Outcome, error) {
	if !req.State.IsValid() {
		return Outcome{}, fmt.Errorf("%w: %s", ErrInvalidState, req.State)
	}

	actions, ok := transitions[req.State]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: no actions from state %s", ErrInvalidTransition, req.State)
	}

	r, ok := actions[req.Action]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: action %s from state %s", ErrInvalidTransition, req.Action, req.State)
	}

	if req.Role != r.role {
		return Outcome{}, fmt.Errorf("%w: role %s cannot %s from state %s", ErrInvalidTransition, req.Role, req.Action, req.State)
	}

	if r.needsJust && len(strings.TrimSpace(req.Justification)) < pol.MinJustificationLen {
		return Outcome{}, fmt.Errorf("%w: action %s requires at least %d characters", ErrMissingJustification, req.Action, pol.MinJustificationLen)
	}

	next := r.next
	if req.Action == ActionReturn {
		dest, ok := PendingState(req.DestTier)
		if !ok || req.DestTier >= 3 {
			return Outcome{}, fmt.Errorf("%w: return destination tier %d", ErrInvalidTransition, req.DestTier)
		}
		next = dest
	}

	return Outcome{Next: next, Claim: r.claim}, nil
}

// PermittedActions returns the actions the given role may attempt from a state.
// Used by the query surface to tell UIs what to render; the authoritative check
// remains Decide.
func PermittedActions(state State, role Role) []Action {
	actions := transitions[state]
	out := make([]Action, 0, len(actions))
	for action, r := range actions {
		if r.role == role {
			out = append(out, action)
		}
	}
	return out
}
