// AngelaMos | 2026
// repository.go

package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/daf-manager/internal/core"
)

type Repository interface {
	CreateAddress(ctx context.Context, a *Address) error
	CreatePreferences(ctx context.Context, p *Preferences) error
	CreateCompliance(ctx context.Context, c *Compliance) error
	CreateAccess(ctx context.Context, a *Access) error
	CreateClient(ctx context.Context, c *Client) error

	GetClient(ctx context.Context, id string) (*Client, error)
	LockClient(ctx context.Context, id string) (*Client, error)
	UpdateClient(ctx context.Context, c *Client) error
	SetStatus(ctx context.Context, id string, status Status) error
	SetAlternateAddress(ctx context.Context, clientID, addressID string) error
	ListClients(ctx context.Context, params ListParams) ([]Client, int, error)

	GetAddress(ctx context.Context, id string) (*Address, error)
	GetPreferences(ctx context.Context, id string) (*Preferences, error)
	GetCompliance(ctx context.Context, id string) (*Compliance, error)
	GetAccess(ctx context.Context, id string) (*Access, error)
	GetFamilyInfo(ctx context.Context, clientID string) (*FamilyInfo, error)

	ListDAFAccounts(ctx context.Context, clientID string) ([]DAFAccount, error)
	ListOtherAccounts(ctx context.Context, clientID string) ([]OtherAccount, error)
	ListDocuments(ctx context.Context, clientID string) ([]Document, error)
	ListFamilyMembers(ctx context.Context, clientID string) ([]FamilyMember, error)
	ListSuccessorPlans(ctx context.Context, clientID string) ([]SuccessorPlan, error)
	ListGivingGoals(ctx context.Context, clientID string) ([]GivingGoal, error)
	ListGrantPreferences(ctx context.Context, clientID string) ([]GrantPreference, error)
	ListInvitations(ctx context.Context, clientID string) ([]Invitation, error)

	CreateDAFAccount(ctx context.Context, a *DAFAccount) error
	CreateOtherAccount(ctx context.Context, a *OtherAccount) error
	EnsureDocumentGroup(ctx context.Context, clientID string) (string, error)
	CreateDocument(ctx context.Context, d *Document) error
	EnsureFamilyInfo(ctx context.Context, clientID string) (string, error)
	CreateFamilyMember(ctx context.Context, m *FamilyMember) error
	CreateSuccessorPlan(ctx context.Context, p *SuccessorPlan) error
	CreateGivingGoal(ctx context.Context, g *GivingGoal) error
	CreateGrantPreference(ctx context.Context, g *GrantPreference) error

	CreateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitation(ctx context.Context, id string) (*Invitation, error)
	SetInvitationStatus(ctx context.Context, id string, from, to InvitationStatus, at time.Time) error

	UnlinkUsers(ctx context.Context, clientID string) error
	DeleteChildren(ctx context.Context, table Table, clientID string) error
	DeleteRecord(ctx context.Context, table Table, id string) error
}

// Store is a Repository that can also run a function inside a transaction.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(Repository) error) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

type store struct {
	Repository
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) Store {
	return &store{Repository: NewRepository(db), db: db}
}

func (s *store) InTx(ctx context.Context, fn func(Repository) error) error {
	return core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(NewRepository(tx))
	})
}

func (r *repository) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *repository) get(ctx context.Context, op string, dest any, query string, args ...any) error {
	err := r.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *repository) CreateAddress(ctx context.Context, a *Address) error {
	return r.exec(ctx, "create address", `
		INSERT INTO addresses (id, line1, line2, city, region, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country)
}

func (r *repository) CreatePreferences(ctx context.Context, p *Preferences) error {
	return r.exec(ctx, "create preferences", `
		INSERT INTO client_preferences (id, communication, statements, anonymous_giving)
		VALUES ($1, $2, $3, $4)`,
		p.ID, p.Communication, p.Statements, p.AnonymousGiving)
}

func (r *repository) CreateCompliance(ctx context.Context, c *Compliance) error {
	return r.exec(ctx, "create compliance", `
		INSERT INTO client_compliance (id, kyc_status, reviewed_at)
		VALUES ($1, $2, $3)`,
		c.ID, c.KYCStatus, c.ReviewedAt)
}

func (r *repository) CreateAccess(ctx context.Context, a *Access) error {
	return r.exec(ctx, "create access", `
		INSERT INTO client_access (id, can_view, can_edit, can_grant, can_manage_family)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.CanView, a.CanEdit, a.CanGrant, a.CanManageFamily)
}

func (r *repository) CreateClient(ctx context.Context, c *Client) error {
	query := `
		INSERT INTO clients (
			id, name, email, phone, status, advisor_id, user_id,
			primary_address_id, alternate_address_id,
			preferences_id, compliance_id, access_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		c.ID, c.Name, c.Email, c.Phone, c.Status, c.AdvisorID, c.UserID,
		c.PrimaryAddressID, c.AlternateAddressID,
		c.PreferencesID, c.ComplianceID, c.AccessID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	return nil
}

const clientColumns = `
	c.id, c.name, c.email, c.phone, c.status, c.advisor_id, c.user_id,
	c.primary_address_id, c.alternate_address_id,
	c.preferences_id, c.compliance_id, c.access_id,
	c.created_at, c.updated_at`

func (r *repository) GetClient(ctx context.Context, id string) (*Client, error) {
	var c Client
	err := r.get(ctx, "get client", &c,
		`SELECT `+clientColumns+` FROM clients c WHERE c.id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// LockClient reads the client row with FOR UPDATE. It only holds the lock
// when r is bound to a transaction.
func (r *repository) LockClient(ctx context.Context, id string) (*Client, error) {
	var c Client
	err := r.get(ctx, "lock client", &c,
		`SELECT `+clientColumns+` FROM clients c WHERE c.id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) UpdateClient(ctx context.Context, c *Client) error {
	query := `
		UPDATE clients
		SET name = $2, email = $3, phone = $4, status = $5,
		    advisor_id = $6, user_id = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	return r.get(ctx, "update client", &c.UpdatedAt, query,
		c.ID, c.Name, c.Email, c.Phone, c.Status, c.AdvisorID, c.UserID)
}

func (r *repository) SetStatus(ctx context.Context, id string, status Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE clients SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set client status: %w", err)
	}
	return core.RowsAffectedOrNotFound(result, "set client status")
}

func (r *repository) SetAlternateAddress(ctx context.Context, clientID, addressID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE clients SET alternate_address_id = $2, updated_at = NOW()
		WHERE id = $1`, clientID, addressID)
	if err != nil {
		return fmt.Errorf("set alternate address: %w", err)
	}
	return core.RowsAffectedOrNotFound(result, "set alternate address")
}

func (r *repository) ListClients(ctx context.Context, params ListParams) ([]Client, int, error) {
	params.Normalize()

	var conditions []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case params.Status != "":
		conditions = append(conditions, "c.status = "+arg(params.Status))
	case !params.IncludeArchived:
		conditions = append(conditions, "c.status <> "+arg(StatusArchived))
	}

	if params.Search != "" {
		p := arg("%" + escapeLike(params.Search) + "%")
		conditions = append(conditions, fmt.Sprintf("(c.name ILIKE %s OR c.email ILIKE %s)", p, p))
	}

	if scope := params.Scope.Condition(arg); scope != "" {
		conditions = append(conditions, scope)
	}

	where := "TRUE"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}
	from := `FROM clients c JOIN client_access a ON a.id = c.access_id WHERE ` + where

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+from, args...); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	limit := arg(params.PageSize)
	offset := arg(params.Offset())
	query := fmt.Sprintf(`SELECT %s %s
		ORDER BY c.created_at DESC, c.id
		LIMIT %s OFFSET %s`, clientColumns, from, limit, offset)

	clients := []Client{}
	if err := r.db.SelectContext(ctx, &clients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}

	return clients, total, nil
}

func (r *repository) GetAddress(ctx context.Context, id string) (*Address, error) {
	var a Address
	err := r.get(ctx, "get address", &a, `
		SELECT id, line1, line2, city, region, postal_code, country
		FROM addresses WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repository) GetPreferences(ctx context.Context, id string) (*Preferences, error) {
	var p Preferences
	err := r.get(ctx, "get preferences", &p, `
		SELECT id, communication, statements, anonymous_giving
		FROM client_preferences WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) GetCompliance(ctx context.Context, id string) (*Compliance, error) {
	var c Compliance
	err := r.get(ctx, "get compliance", &c, `
		SELECT id, kyc_status, reviewed_at
		FROM client_compliance WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) GetAccess(ctx context.Context, id string) (*Access, error) {
	var a Access
	err := r.get(ctx, "get access", &a, `
		SELECT id, can_view, can_edit, can_grant, can_manage_family
		FROM client_access WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repository) GetFamilyInfo(ctx context.Context, clientID string) (*FamilyInfo, error) {
	var f FamilyInfo
	err := r.get(ctx, "get family info", &f,
		`SELECT id, client_id, notes FROM family_info WHERE client_id = $1`, clientID)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *repository) ListDAFAccounts(ctx context.Context, clientID string) ([]DAFAccount, error) {
	out := []DAFAccount{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, client_id, name, sponsor, account_number, balance_cents, created_at
		FROM daf_accounts WHERE client_id = $1 ORDER BY created_at`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list daf accounts: %w", err)
	}
	return out, nil
}

func (r *repository) ListOtherAccounts(ctx context.Context, clientID string) ([]OtherAccount, error) {
	out := []OtherAccount{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, client_id, institution, account_type, description, created_at
		FROM other_accounts WHERE client_id = $1 ORDER BY created_at`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list other accounts: %w", err)
	}
	return out, nil
}

func (r *repository) ListDocuments(ctx context.Context, clientID string) ([]Document, error) {
	out := []Document{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, group_id, client_id, doc_type, title, url, uploaded_at
		FROM documents WHERE client_id = $1 ORDER BY uploaded_at DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}

func (r *repository) ListFamilyMembers(ctx context.Context, clientID string) ([]FamilyMember, error) {
	out := []FamilyMember{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, family_info_id, client_id, name, relationship, email, created_at
		FROM family_members WHERE client_id = $1 ORDER BY created_at`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	return out, nil
}

func (r *repository) ListSuccessorPlans(ctx context.Context, clientID string) ([]SuccessorPlan, error) {
	out := []SuccessorPlan{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, family_info_id, client_id, member_id, percentage, notes
		FROM successor_plans WHERE client_id = $1`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list successor plans: %w", err)
	}
	return out, nil
}

func (r *repository) ListGivingGoals(ctx context.Context, clientID string) ([]GivingGoal, error) {
	out := []GivingGoal{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, client_id, year, target_cents, description
		FROM giving_goals WHERE client_id = $1 ORDER BY year`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list giving goals: %w", err)
	}
	return out, nil
}

func (r *repository) ListGrantPreferences(ctx context.Context, clientID string) ([]GrantPreference, error) {
	out := []GrantPreference{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, client_id, cause, organization_name, ein
		FROM grant_preferences WHERE client_id = $1`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list grant preferences: %w", err)
	}
	return out, nil
}

const invitationColumns = `id, client_id, email, token_hash, status, expires_at,
	created_by, created_at, accepted_at`

func (r *repository) ListInvitations(ctx context.Context, clientID string) ([]Invitation, error) {
	out := []Invitation{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+invitationColumns+`
		FROM client_invitations WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return out, nil
}

func (r *repository) CreateDAFAccount(ctx context.Context, a *DAFAccount) error {
	return r.get(ctx, "create daf account", &a.CreatedAt, `
		INSERT INTO daf_accounts (id, client_id, name, sponsor, account_number, balance_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		a.ID, a.ClientID, a.Name, a.Sponsor, a.AccountNumber, a.BalanceCents)
}

func (r *repository) CreateOtherAccount(ctx context.Context, a *OtherAccount) error {
	return r.get(ctx, "create other account", &a.CreatedAt, `
		INSERT INTO other_accounts (id, client_id, institution, account_type, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		a.ID, a.ClientID, a.Institution, a.AccountType, a.Description)
}

// EnsureDocumentGroup returns the client's document group, creating it on
// first use.
func (r *repository) EnsureDocumentGroup(ctx context.Context, clientID string) (string, error) {
	var id string
	err := r.get(ctx, "ensure document group", &id, `
		INSERT INTO document_groups (id, client_id)
		VALUES (gen_random_uuid(), $1)
		ON CONFLICT (client_id) DO UPDATE SET client_id = EXCLUDED.client_id
		RETURNING id`, clientID)
	return id, err
}

func (r *repository) CreateDocument(ctx context.Context, d *Document) error {
	return r.get(ctx, "create document", &d.UploadedAt, `
		INSERT INTO documents (id, group_id, client_id, doc_type, title, url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING uploaded_at`,
		d.ID, d.GroupID, d.ClientID, d.Type, d.Title, d.URL)
}

func (r *repository) EnsureFamilyInfo(ctx context.Context, clientID string) (string, error) {
	var id string
	err := r.get(ctx, "ensure family info", &id, `
		INSERT INTO family_info (id, client_id)
		VALUES (gen_random_uuid(), $1)
		ON CONFLICT (client_id) DO UPDATE SET client_id = EXCLUDED.client_id
		RETURNING id`, clientID)
	return id, err
}

func (r *repository) CreateFamilyMember(ctx context.Context, m *FamilyMember) error {
	return r.get(ctx, "create family member", &m.CreatedAt, `
		INSERT INTO family_members (id, family_info_id, client_id, name, relationship, email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		m.ID, m.FamilyInfoID, m.ClientID, m.Name, m.Relationship, m.Email)
}

func (r *repository) CreateSuccessorPlan(ctx context.Context, p *SuccessorPlan) error {
	return r.exec(ctx, "create successor plan", `
		INSERT INTO successor_plans (id, family_info_id, client_id, member_id, percentage, notes)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.FamilyInfoID, p.ClientID, p.MemberID, p.Percentage, p.Notes)
}

func (r *repository) CreateGivingGoal(ctx context.Context, g *GivingGoal) error {
	return r.exec(ctx, "create giving goal", `
		INSERT INTO giving_goals (id, client_id, year, target_cents, description)
		VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.ClientID, g.Year, g.TargetCents, g.Description)
}

func (r *repository) CreateGrantPreference(ctx context.Context, g *GrantPreference) error {
	return r.exec(ctx, "create grant preference", `
		INSERT INTO grant_preferences (id, client_id, cause, organization_name, ein)
		VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.ClientID, g.Cause, g.OrganizationName, g.EIN)
}

func (r *repository) CreateInvitation(ctx context.Context, inv *Invitation) error {
	return r.get(ctx, "create invitation", &inv.CreatedAt, `
		INSERT INTO client_invitations (id, client_id, email, token_hash, status, expires_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		inv.ID, inv.ClientID, inv.Email, inv.TokenHash, inv.Status, inv.ExpiresAt, inv.CreatedBy)
}

func (r *repository) GetInvitation(ctx context.Context, id string) (*Invitation, error) {
	var inv Invitation
	err := r.get(ctx, "get invitation", &inv,
		`SELECT `+invitationColumns+` FROM client_invitations WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// SetInvitationStatus moves an invitation between states. It fails with
// ErrNotFound when the invitation is not currently in the from state, so
// only one of two concurrent accepts can win.
func (r *repository) SetInvitationStatus(
	ctx context.Context,
	id string,
	from, to InvitationStatus,
	at time.Time,
) error {
	var acceptedAt *time.Time
	if to == InvitationAccepted {
		acceptedAt = &at
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE client_invitations
		SET status = $3, accepted_at = $4
		WHERE id = $1 AND status = $2`, id, from, to, acceptedAt)
	if err != nil {
		return fmt.Errorf("set invitation status: %w", err)
	}
	return core.RowsAffectedOrNotFound(result, "set invitation status")
}

func (r *repository) UnlinkUsers(ctx context.Context, clientID string) error {
	return r.exec(ctx, "unlink users",
		`UPDATE users SET client_id = NULL, updated_at = NOW() WHERE client_id = $1`, clientID)
}

func (r *repository) DeleteChildren(ctx context.Context, table Table, clientID string) error {
	if !table.keyedByClient() {
		return fmt.Errorf("delete %s: not a client child table: %w", table, core.ErrInvalidInput)
	}
	return r.exec(ctx, "delete "+string(table),
		`DELETE FROM `+string(table)+` WHERE client_id = $1`, clientID)
}

// DeleteRecord removes one row by primary key and reports ErrNotFound when
// nothing was deleted.
func (r *repository) DeleteRecord(ctx context.Context, table Table, id string) error {
	if !table.keyedByID() {
		return fmt.Errorf("delete %s: not an id-keyed table: %w", table, core.ErrInvalidInput)
	}
	op := "delete " + string(table)
	result, err := r.db.ExecContext(ctx, `DELETE FROM `+string(table)+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return core.RowsAffectedOrNotFound(result, op)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
