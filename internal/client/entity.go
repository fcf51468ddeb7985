// AngelaMos | 2026
// entity.go

package client

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusArchived Status = "ARCHIVED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusArchived:
		return true
	}
	return false
}

// DocumentType is the closed taxonomy documents are bucketed by.
type DocumentType string

const (
	DocumentAgreement      DocumentType = "agreement"
	DocumentTax            DocumentType = "tax"
	DocumentGrantLetter    DocumentType = "grant_letter"
	DocumentCorrespondence DocumentType = "correspondence"
)

func ParseDocumentType(s string) (DocumentType, error) {
	switch t := DocumentType(s); t {
	case DocumentAgreement, DocumentTax, DocumentGrantLetter, DocumentCorrespondence:
		return t, nil
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationRevoked  InvitationStatus = "REVOKED"
)

// Client is the root record. The four mandatory children are referenced by
// id; every other child row carries client_id.
type Client struct {
	ID                 string    `db:"id"                   json:"id"`
	Name               string    `db:"name"                 json:"name"`
	Email              *string   `db:"email"                json:"email,omitempty"`
	Phone              *string   `db:"phone"                json:"phone,omitempty"`
	Status             Status    `db:"status"               json:"status"`
	AdvisorID          *string   `db:"advisor_id"           json:"advisor_id,omitempty"`
	UserID             *string   `db:"user_id"              json:"user_id,omitempty"`
	PrimaryAddressID   string    `db:"primary_address_id"   json:"-"`
	AlternateAddressID *string   `db:"alternate_address_id" json:"-"`
	PreferencesID      string    `db:"preferences_id"       json:"-"`
	ComplianceID       string    `db:"compliance_id"        json:"-"`
	AccessID           string    `db:"access_id"            json:"-"`
	CreatedAt          time.Time `db:"created_at"           json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"           json:"updated_at"`
}

type Address struct {
	ID         string  `db:"id"          json:"id"`
	Line1      string  `db:"line1"       json:"line1"`
	Line2      *string `db:"line2"       json:"line2,omitempty"`
	City       string  `db:"city"        json:"city"`
	Region     string  `db:"region"      json:"region"`
	PostalCode string  `db:"postal_code" json:"postal_code"`
	Country    string  `db:"country"     json:"country"`
}

type Preferences struct {
	ID              string `db:"id"               json:"id"`
	Communication   string `db:"communication"    json:"communication"`
	Statements      string `db:"statements"       json:"statements"`
	AnonymousGiving bool   `db:"anonymous_giving" json:"anonymous_giving"`
}

type Compliance struct {
	ID         string     `db:"id"          json:"id"`
	KYCStatus  string     `db:"kyc_status"  json:"kyc_status"`
	ReviewedAt *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

type Access struct {
	ID              string `db:"id"                json:"id"`
	CanView         bool   `db:"can_view"          json:"can_view"`
	CanEdit         bool   `db:"can_edit"          json:"can_edit"`
	CanGrant        bool   `db:"can_grant"         json:"can_grant"`
	CanManageFamily bool   `db:"can_manage_family" json:"can_manage_family"`
}

type DAFAccount struct {
	ID            string    `db:"id"             json:"id"`
	ClientID      string    `db:"client_id"      json:"client_id"`
	Name          string    `db:"name"           json:"name"`
	Sponsor       string    `db:"sponsor"        json:"sponsor"`
	AccountNumber string    `db:"account_number" json:"account_number"`
	BalanceCents  int64     `db:"balance_cents"  json:"balance_cents"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
}

type OtherAccount struct {
	ID          string    `db:"id"           json:"id"`
	ClientID    string    `db:"client_id"    json:"client_id"`
	Institution string    `db:"institution"  json:"institution"`
	AccountType string    `db:"account_type" json:"account_type"`
	Description string    `db:"description"  json:"description"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}

type Document struct {
	ID         string    `db:"id"          json:"id"`
	GroupID    string    `db:"group_id"    json:"-"`
	ClientID   string    `db:"client_id"   json:"client_id"`
	Type       string    `db:"doc_type"    json:"type"`
	Title      string    `db:"title"       json:"title"`
	URL        string    `db:"url"         json:"url"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

type FamilyInfo struct {
	ID       string  `db:"id"        json:"id"`
	ClientID string  `db:"client_id" json:"client_id"`
	Notes    *string `db:"notes"     json:"notes,omitempty"`
}

type FamilyMember struct {
	ID           string    `db:"id"             json:"id"`
	FamilyInfoID string    `db:"family_info_id" json:"-"`
	ClientID     string    `db:"client_id"      json:"client_id"`
	Name         string    `db:"name"           json:"name"`
	Relationship string    `db:"relationship"   json:"relationship"`
	Email        *string   `db:"email"          json:"email,omitempty"`
	CreatedAt    time.Time `db:"created_at"     json:"created_at"`
}

type SuccessorPlan struct {
	ID           string  `db:"id"             json:"id"`
	FamilyInfoID string  `db:"family_info_id" json:"-"`
	ClientID     string  `db:"client_id"      json:"client_id"`
	MemberID     string  `db:"member_id"      json:"member_id"`
	Percentage   int     `db:"percentage"     json:"percentage"`
	Notes        *string `db:"notes"          json:"notes,omitempty"`
}

type GivingGoal struct {
	ID          string `db:"id"           json:"id"`
	ClientID    string `db:"client_id"    json:"client_id"`
	Year        int    `db:"year"         json:"year"`
	TargetCents int64  `db:"target_cents" json:"target_cents"`
	Description string `db:"description"  json:"description"`
}

type GrantPreference struct {
	ID               string  `db:"id"                json:"id"`
	ClientID         string  `db:"client_id"         json:"client_id"`
	Cause            string  `db:"cause"             json:"cause"`
	OrganizationName *string `db:"organization_name" json:"organization_name,omitempty"`
	EIN              *string `db:"ein"               json:"ein,omitempty"`
}

type Invitation struct {
	ID         string           `db:"id"          json:"id"`
	ClientID   string           `db:"client_id"   json:"client_id"`
	Email      string           `db:"email"       json:"email"`
	TokenHash  string           `db:"token_hash"  json:"-"`
	Status     InvitationStatus `db:"status"      json:"status"`
	ExpiresAt  time.Time        `db:"expires_at"  json:"expires_at"`
	CreatedBy  string           `db:"created_by"  json:"created_by"`
	CreatedAt  time.Time        `db:"created_at"  json:"created_at"`
	AcceptedAt *time.Time       `db:"accepted_at" json:"accepted_at,omitempty"`
}

// Family is present only once a family info record exists.
type Family struct {
	Info           FamilyInfo      `json:"info"`
	Members        []FamilyMember  `json:"members"`
	SuccessorPlans []SuccessorPlan `json:"successor_plans"`
}

type DocumentBuckets struct {
	Agreements     []Document `json:"agreements"`
	Tax            []Document `json:"tax"`
	GrantLetters   []Document `json:"grant_letters"`
	Correspondence []Document `json:"correspondence"`
}

// Profile is the denormalized view of a client and all of its children.
// Value fields are mandatory; pointer fields are optional.
type Profile struct {
	Client           Client            `json:"client"`
	PrimaryAddress   Address           `json:"primary_address"`
	AlternateAddress *Address          `json:"alternate_address,omitempty"`
	Preferences      Preferences       `json:"preferences"`
	Compliance       Compliance        `json:"compliance"`
	Access           Access            `json:"access"`
	Family           *Family           `json:"family,omitempty"`
	DAFAccounts      []DAFAccount      `json:"daf_accounts"`
	OtherAccounts    []OtherAccount    `json:"other_accounts"`
	GivingGoals      []GivingGoal      `json:"giving_goals"`
	GrantPreferences []GrantPreference `json:"grant_preferences"`
	Invitations      []Invitation      `json:"invitations"`
	Documents        DocumentBuckets   `json:"documents"`
}

// Table names a child table that participates in the delete cascade.
type Table string

const (
	TableInvitations      Table = "client_invitations"
	TableGrantRequests    Table = "grant_requests"
	TableDAFAccounts      Table = "daf_accounts"
	TableOtherAccounts    Table = "other_accounts"
	TableDocuments        Table = "documents"
	TableDocumentGroups   Table = "document_groups"
	TableSuccessorPlans   Table = "successor_plans"
	TableFamilyMembers    Table = "family_members"
	TableFamilyInfo       Table = "family_info"
	TableGivingGoals      Table = "giving_goals"
	TableGrantPreferences Table = "grant_preferences"
	TableAddresses        Table = "addresses"
	TablePreferences      Table = "client_preferences"
	TableCompliance       Table = "client_compliance"
	TableAccess           Table = "client_access"
	TableClients          Table = "clients"
)

func (t Table) keyedByClient() bool {
	switch t {
	case TableInvitations, TableGrantRequests, TableDAFAccounts, TableOtherAccounts,
		TableDocuments, TableDocumentGroups, TableSuccessorPlans, TableFamilyMembers,
		TableFamilyInfo, TableGivingGoals, TableGrantPreferences:
		return true
	}
	return false
}

func (t Table) keyedByID() bool {
	switch t {
	case TableAddresses, TablePreferences, TableCompliance, TableAccess, TableClients:
		return true
	}
	return false
}
