// AngelaMos | 2026
// dto.go

package client

import (
	"fmt"
	"strings"
)

type AddressInput struct {
	Line1      string  `json:"line1"       validate:"required,max=200"`
	Line2      *string `json:"line2"       validate:"omitempty,max=200"`
	City       string  `json:"city"        validate:"required,max=100"`
	Region     string  `json:"region"      validate:"required,max=100"`
	PostalCode string  `json:"postal_code" validate:"required,max=20"`
	Country    string  `json:"country"     validate:"required,len=2"`
}

func (in AddressInput) toAddress(id string) *Address {
	return &Address{
		ID:         id,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		Region:     in.Region,
		PostalCode: in.PostalCode,
		Country:    in.Country,
	}
}

// CreateInput is the minimal input needed to open a client profile.
type CreateInput struct {
	Name           string       `json:"name"            validate:"required,min=1,max=200"`
	Email          *string      `json:"email"           validate:"omitempty,email,max=255"`
	Phone          *string      `json:"phone"           validate:"omitempty,max=40"`
	AdvisorID      *string      `json:"advisor_id"      validate:"omitempty,uuid"`
	UserID         *string      `json:"user_id"         validate:"omitempty,uuid"`
	KYCStatus      string       `json:"kyc_status"      validate:"required,oneof=not_started pending verified rejected"`
	PrimaryAddress AddressInput `json:"primary_address" validate:"required"`
}

// UpdateInput touches the client record only; nil fields are left alone.
type UpdateInput struct {
	Name      *string `json:"name"       validate:"omitempty,min=1,max=200"`
	Email     *string `json:"email"      validate:"omitempty,email,max=255"`
	Phone     *string `json:"phone"      validate:"omitempty,max=40"`
	Status    *Status `json:"status"     validate:"omitempty,oneof=PENDING ACTIVE INACTIVE"`
	AdvisorID *string `json:"advisor_id" validate:"omitempty,uuid"`
	UserID    *string `json:"user_id"    validate:"omitempty,uuid"`
}

type ListParams struct {
	Page            int
	PageSize        int
	Search          string
	Status          Status
	IncludeArchived bool
	Scope           Scope
}

// Scope narrows a listing to what the caller may see. Empty fields mean
// no restriction.
type Scope struct {
	AdvisorID      string
	ViewerID       string
	LinkedClientID string
}

// Condition renders the scope as a SQL predicate over clients c joined to
// client_access a. arg binds a value and returns its placeholder. An empty
// scope renders as "".
func (s Scope) Condition(arg func(any) string) string {
	var parts []string
	if s.AdvisorID != "" {
		parts = append(parts, "c.advisor_id = "+arg(s.AdvisorID))
	}
	if s.ViewerID != "" || s.LinkedClientID != "" {
		parts = append(parts, fmt.Sprintf(
			"(c.user_id::text = %s OR (c.id::text = %s AND a.can_view))",
			arg(s.ViewerID), arg(s.LinkedClientID)))
	}
	return strings.Join(parts, " AND ")
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

type AddDAFAccountRequest struct {
	Name          string `json:"name"           validate:"required,max=200"`
	Sponsor       string `json:"sponsor"        validate:"required,max=200"`
	AccountNumber string `json:"account_number" validate:"required,max=64"`
	BalanceCents  int64  `json:"balance_cents"  validate:"gte=0"`
}

type AddOtherAccountRequest struct {
	Institution string `json:"institution"  validate:"required,max=200"`
	AccountType string `json:"account_type" validate:"required,max=100"`
	Description string `json:"description"  validate:"max=500"`
}

type AddDocumentRequest struct {
	Type  string `json:"type"  validate:"required,oneof=agreement tax grant_letter correspondence"`
	Title string `json:"title" validate:"required,max=200"`
	URL   string `json:"url"   validate:"required,url,max=2048"`
}

type SuccessorInput struct {
	Percentage int     `json:"percentage" validate:"required,gt=0,lte=100"`
	Notes      *string `json:"notes"      validate:"omitempty,max=500"`
}

type AddFamilyMemberRequest struct {
	Name         string          `json:"name"         validate:"required,max=200"`
	Relationship string          `json:"relationship" validate:"required,max=100"`
	Email        *string         `json:"email"        validate:"omitempty,email,max=255"`
	Successor    *SuccessorInput `json:"successor"`
}

type AddGivingGoalRequest struct {
	Year        int    `json:"year"         validate:"required,gte=2000,lte=2100"`
	TargetCents int64  `json:"target_cents" validate:"required,gt=0"`
	Description string `json:"description"  validate:"max=500"`
}

type AddGrantPreferenceRequest struct {
	Cause            string  `json:"cause"             validate:"required,max=200"`
	OrganizationName *string `json:"organization_name" validate:"omitempty,max=200"`
	EIN              *string `json:"ein"               validate:"omitempty,len=10"`
}

type CreateInvitationRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type AcceptInvitationRequest struct {
	Token    string `json:"token"    validate:"required"`
	Name     string `json:"name"     validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=12,max=128"`
}

type InvitationResponse struct {
	Invitation Invitation `json:"invitation"`
	Token      string     `json:"token"`
}

type AcceptInvitationResponse struct {
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`
}
