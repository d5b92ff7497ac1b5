package workflow

// Action represents a caller-requested operation that can cause a state transition
type Action string

const (
	ActionSubmit      Action = "SUBMIT"
	ActionClaim       Action = "CLAIM"
	ActionRelease     Action = "RELEASE"
	ActionApprove     Action = "APPROVE"
	ActionApproveCond Action = "APPROVE_CONDITIONAL"
	ActionReject      Action = "REJECT"
	ActionDerive      Action = "DERIVE"
	ActionEscalate    Action = "ESCALATE"
	ActionObserve     Action = "OBSERVE"
	ActionReturn      Action = "RETURN"
	ActionFork        Action = "FORK"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}
