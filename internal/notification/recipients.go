// Package notification resolves committed transitions into the set of
// recipients that must be informed, and renders the notification content.
package notification

import (
	"fmt"
	"strings"

	"github.com/medikos/caseflow/internal/domain/entity"
	"github.com/medikos/caseflow/internal/domain/workflow"
)

// Resolve returns the recipient keys for an accepted transition. Transitions
// that route a case into a queue address the tier pool; outcomes about a case
// address its original creator. Claim, release, and fork inform nobody.
func Resolve(action workflow.Action, creatorID string, destTier int) []string {
	switch action {
	case workflow.ActionSubmit:
		return []string{entity.PoolRecipient(1)}
	case workflow.ActionDerive:
		return []string{entity.PoolRecipient(2)}
	case workflow.ActionEscalate:
		return []string{entity.PoolRecipient(3)}
	case workflow.ActionReturn:
		return []string{entity.PoolRecipient(destTier)}
	case workflow.ActionObserve, workflow.ActionReject, workflow.ActionApprove, workflow.ActionApproveCond:
		return []string{creatorID}
	default:
		return nil
	}
}

// Category returns the notification category tag for a transition type
func Category(action workflow.Action) string {
	return strings.ToLower(action.String())
}

// Message renders the notification text for a transition
func Message(action workflow.Action, casePublicID string, comment string) string {
	var text string
	switch action {
	case workflow.ActionSubmit:
		text = fmt.Sprintf("Case %s submitted for review", casePublicID)
	case workflow.ActionDerive:
		text = fmt.Sprintf("Case %s derived for tier 2 review", casePublicID)
	case workflow.ActionEscalate:
		text = fmt.Sprintf("Case %s escalated for tier 3 review", casePublicID)
	case workflow.ActionReturn:
		text = fmt.Sprintf("Case %s returned for re-review", casePublicID)
	case workflow.ActionObserve:
		text = fmt.Sprintf("Case %s sent back for corrections", casePublicID)
	case workflow.ActionReject:
		text = fmt.Sprintf("Case %s rejected", casePublicID)
	case workflow.ActionApprove:
		text = fmt.Sprintf("Case %s approved", casePublicID)
	case workflow.ActionApproveCond:
		text = fmt.Sprintf("Case %s approved with conditions", casePublicID)
	default:
		text = fmt.Sprintf("Case %s updated", casePublicID)
	}

	if comment != "" {
		text = fmt.Sprintf("%s: %s", text, comment)
	}
	return text
}
