// AngelaMos | 2026
// entity.go

package grant

import (
	"time"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Request is a recommendation to pay a grant out of a DAF account.
type Request struct {
	ID               string     `db:"id"                json:"id"`
	ClientID         string     `db:"client_id"         json:"client_id"`
	DAFAccountID     string     `db:"daf_account_id"    json:"daf_account_id"`
	OrganizationName string     `db:"organization_name" json:"organization_name"`
	EIN              string     `db:"ein"               json:"ein"`
	AmountCents      int64      `db:"amount_cents"      json:"amount_cents"`
	Purpose          *string    `db:"purpose"           json:"purpose,omitempty"`
	Status           Status     `db:"status"            json:"status"`
	RequestedBy      string     `db:"requested_by"      json:"requested_by"`
	DecidedBy        *string    `db:"decided_by"        json:"decided_by,omitempty"`
	DecidedAt        *time.Time `db:"decided_at"        json:"decided_at,omitempty"`
	DecisionNote     *string    `db:"decision_note"     json:"decision_note,omitempty"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
}
