package entity

import (
	"fmt"
	"time"
)

// Notification is a unit of information delivered to one recipient. The
// recipient is either a user id or a tier pool key (see PoolRecipient);
// pool-addressed rows stay pool-visible until the case is claimed.
type Notification struct {
	ID        int64     `json:"id"`
	Recipient string    `json:"recipient"`
	CaseID    int64     `json:"case_id"`
	Version   int       `json:"version"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// PoolRecipient returns the recipient key addressing a whole review tier
func PoolRecipient(tier int) string {
	return fmt.Sprintf("tier:%d", tier)
}
