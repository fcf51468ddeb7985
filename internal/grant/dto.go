// AngelaMos | 2026
// dto.go

package grant

import (
	"github.com/carterperez-dev/daf-manager/internal/client"
)

type CreateRequest struct {
	ClientID         string  `json:"client_id"         validate:"required"`
	DAFAccountID     string  `json:"daf_account_id"    validate:"required"`
	OrganizationName string  `json:"organization_name" validate:"required,max=200"`
	EIN              string  `json:"ein"               validate:"required,len=10"`
	AmountCents      int64   `json:"amount_cents"      validate:"required,gt=0"`
	Purpose          *string `json:"purpose"           validate:"omitempty,max=500"`
}

type DecisionRequest struct {
	Note *string `json:"note" validate:"omitempty,max=500"`
}

type ListParams struct {
	Page     int
	PageSize int
	Status   Status
	ClientID string
	Scope    client.Scope
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}
