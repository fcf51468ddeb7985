// AngelaMos | 2026
// service.go

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/audit"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/permission"
)

const (
	compensateTimeout = 5 * time.Second
	tracerName        = "daf-manager/client"
)

type Auditor interface {
	RecordFor(
		ctx context.Context,
		ac *access.AuthContext,
		eventType string,
		metadata map[string]any,
	)
}

// UserCreator provisions the account behind an accepted invitation.
type UserCreator interface {
	CreateFamilyMember(ctx context.Context, email, name, passwordHash, clientID string) (string, error)
}

type Service struct {
	store   Store
	auditor Auditor
	users   UserCreator
	invites *TokenIssuer
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(
	store Store,
	auditor Auditor,
	users UserCreator,
	invites *TokenIssuer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		auditor: auditor,
		users:   users,
		invites: invites,
		logger:  logger,
		now:     time.Now,
	}
}

type childStep struct {
	table  Table
	id     string
	create func(ctx context.Context) error
}

// Create opens a client profile. The four mandatory children are written
// concurrently before the client row; if anything fails the children that
// were written are removed again and the error wraps core.ErrCreateFailed.
func (s *Service) Create(ctx context.Context, ac *access.AuthContext, in CreateInput) (*Profile, error) {
	addr := in.PrimaryAddress.toAddress(core.NewID())
	prefs := &Preferences{
		ID:            core.NewID(),
		Communication: "email",
		Statements:    "quarterly",
	}
	comp := &Compliance{ID: core.NewID(), KYCStatus: in.KYCStatus}
	acc := &Access{ID: core.NewID(), CanView: true}

	steps := []childStep{
		{TableAddresses, addr.ID, func(ctx context.Context) error { return s.store.CreateAddress(ctx, addr) }},
		{TablePreferences, prefs.ID, func(ctx context.Context) error { return s.store.CreatePreferences(ctx, prefs) }},
		{TableCompliance, comp.ID, func(ctx context.Context) error { return s.store.CreateCompliance(ctx, comp) }},
		{TableAccess, acc.ID, func(ctx context.Context) error { return s.store.CreateAccess(ctx, acc) }},
	}

	created := make([]bool, len(steps))
	var g errgroup.Group
	for i, step := range steps {
		g.Go(func() error {
			if err := step.create(ctx); err != nil {
				return err
			}
			created[i] = true
			return nil
		})
	}
	err := g.Wait()

	c := &Client{
		ID:               core.NewID(),
		Name:             strings.TrimSpace(in.Name),
		Email:            normalizeEmail(in.Email),
		Phone:            in.Phone,
		Status:           StatusPending,
		AdvisorID:        in.AdvisorID,
		UserID:           in.UserID,
		PrimaryAddressID: addr.ID,
		PreferencesID:    prefs.ID,
		ComplianceID:     comp.ID,
		AccessID:         acc.ID,
	}
	if c.AdvisorID == nil && ac != nil && ac.Role == permission.RoleAdvisor {
		c.AdvisorID = &ac.UserID
	}

	if err == nil {
		err = s.store.CreateClient(ctx, c)
	}
	if err != nil {
		s.compensate(ctx, steps, created)
		core.ClientOperations.WithLabelValues("create", "failure").Inc()
		return nil, fmt.Errorf("create client: %w: %w", core.ErrCreateFailed, err)
	}

	core.ClientOperations.WithLabelValues("create", "success").Inc()
	s.auditor.RecordFor(ctx, ac, audit.EventClientCreated, map[string]any{
		"client_id": c.ID,
		"name":      c.Name,
	})

	return &Profile{
		Client:           *c,
		PrimaryAddress:   *addr,
		Preferences:      *prefs,
		Compliance:       *comp,
		Access:           *acc,
		DAFAccounts:      []DAFAccount{},
		OtherAccounts:    []OtherAccount{},
		GivingGoals:      []GivingGoal{},
		GrantPreferences: []GrantPreference{},
		Invitations:      []Invitation{},
		Documents:        emptyBuckets(),
	}, nil
}

func (s *Service) compensate(ctx context.Context, steps []childStep, created []bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	for i, step := range steps {
		if !created[i] {
			continue
		}
		if err := s.store.DeleteRecord(ctx, step.table, step.id); err != nil {
			s.logger.Error("compensating delete failed",
				"table", step.table,
				"id", step.id,
				"error", err,
			)
		}
	}
}

// Get assembles the full profile of a client the caller may see.
func (s *Service) Get(ctx context.Context, ac *access.AuthContext, id string) (*Profile, error) {
	c, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	return s.assemble(ctx, c)
}

func (s *Service) assemble(ctx context.Context, c *Client) (*Profile, error) {
	p := &Profile{Client: *c}
	var docs []Document

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := s.store.GetAddress(gctx, c.PrimaryAddressID)
		if err != nil {
			return err
		}
		p.PrimaryAddress = *a
		return nil
	})
	if c.AlternateAddressID != nil {
		g.Go(func() error {
			a, err := s.store.GetAddress(gctx, *c.AlternateAddressID)
			if err != nil {
				return err
			}
			p.AlternateAddress = a
			return nil
		})
	}
	g.Go(func() error {
		prefs, err := s.store.GetPreferences(gctx, c.PreferencesID)
		if err != nil {
			return err
		}
		p.Preferences = *prefs
		return nil
	})
	g.Go(func() error {
		comp, err := s.store.GetCompliance(gctx, c.ComplianceID)
		if err != nil {
			return err
		}
		p.Compliance = *comp
		return nil
	})
	g.Go(func() error {
		acc, err := s.store.GetAccess(gctx, c.AccessID)
		if err != nil {
			return err
		}
		p.Access = *acc
		return nil
	})
	g.Go(func() error {
		family, err := s.family(gctx, c.ID)
		p.Family = family
		return err
	})
	g.Go(func() (err error) {
		p.DAFAccounts, err = s.store.ListDAFAccounts(gctx, c.ID)
		return err
	})
	g.Go(func() (err error) {
		p.OtherAccounts, err = s.store.ListOtherAccounts(gctx, c.ID)
		return err
	})
	g.Go(func() (err error) {
		p.GivingGoals, err = s.store.ListGivingGoals(gctx, c.ID)
		return err
	})
	g.Go(func() (err error) {
		p.GrantPreferences, err = s.store.ListGrantPreferences(gctx, c.ID)
		return err
	})
	g.Go(func() (err error) {
		p.Invitations, err = s.store.ListInvitations(gctx, c.ID)
		return err
	})
	g.Go(func() (err error) {
		docs, err = s.store.ListDocuments(gctx, c.ID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("assemble client %s: %w", c.ID, err)
	}

	p.Documents = s.bucketDocuments(docs)
	return p, nil
}

func (s *Service) family(ctx context.Context, clientID string) (*Family, error) {
	info, err := s.store.GetFamilyInfo(ctx, clientID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	members, err := s.store.ListFamilyMembers(ctx, clientID)
	if err != nil {
		return nil, err
	}
	plans, err := s.store.ListSuccessorPlans(ctx, clientID)
	if err != nil {
		return nil, err
	}

	return &Family{Info: *info, Members: members, SuccessorPlans: plans}, nil
}

func emptyBuckets() DocumentBuckets {
	return DocumentBuckets{
		Agreements:     []Document{},
		Tax:            []Document{},
		GrantLetters:   []Document{},
		Correspondence: []Document{},
	}
}

// bucketDocuments sorts documents by type. Documents whose type is outside
// the taxonomy appear in no bucket.
func (s *Service) bucketDocuments(docs []Document) DocumentBuckets {
	b := emptyBuckets()
	for _, d := range docs {
		t, err := ParseDocumentType(d.Type)
		if err != nil {
			s.logger.Warn("dropping document with unknown type",
				"document_id", d.ID,
				"client_id", d.ClientID,
				"type", d.Type,
			)
			continue
		}
		switch t {
		case DocumentAgreement:
			b.Agreements = append(b.Agreements, d)
		case DocumentTax:
			b.Tax = append(b.Tax, d)
		case DocumentGrantLetter:
			b.GrantLetters = append(b.GrantLetters, d)
		case DocumentCorrespondence:
			b.Correspondence = append(b.Correspondence, d)
		}
	}
	return b
}

// load fetches a client and applies visibility. A client the caller may not
// see is reported as not found.
func (s *Service) load(ctx context.Context, ac *access.AuthContext, id string) (*Client, error) {
	c, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.visible(ctx, ac, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("get client: %w", core.ErrNotFound)
	}
	return c, nil
}

// Lookup returns the client record when the caller may see it.
func (s *Service) Lookup(ctx context.Context, ac *access.AuthContext, id string) (*Client, error) {
	return s.load(ctx, ac, id)
}

func (s *Service) visible(ctx context.Context, ac *access.AuthContext, c *Client) (bool, error) {
	switch {
	case ac == nil || ac.Can(permission.ManageUsers):
		return true, nil
	case ac.Can(permission.ManageDAFs):
		return c.AdvisorID != nil && *c.AdvisorID == ac.UserID, nil
	case c.UserID != nil && *c.UserID == ac.UserID:
		return true, nil
	case ac.LinkedTo(c.ID):
		acc, err := s.store.GetAccess(ctx, c.AccessID)
		if err != nil {
			return false, err
		}
		return acc.CanView, nil
	default:
		return false, nil
	}
}

func (s *Service) List(ctx context.Context, ac *access.AuthContext, params ListParams) ([]Client, int, error) {
	params.Normalize()
	params.Scope = ScopeFor(ac)
	return s.store.ListClients(ctx, params)
}

// ScopeFor is the listing restriction that matches Get visibility.
func ScopeFor(ac *access.AuthContext) Scope {
	switch {
	case ac == nil || ac.Can(permission.ManageUsers):
		return Scope{}
	case ac.Can(permission.ManageDAFs):
		return Scope{AdvisorID: ac.UserID}
	default:
		sc := Scope{ViewerID: ac.UserID}
		if ac.ClientID != nil {
			sc.LinkedClientID = *ac.ClientID
		}
		return sc
	}
}

// Update applies the non-nil fields of in to the client record and returns
// the refreshed profile.
func (s *Service) Update(ctx context.Context, ac *access.AuthContext, id string, in UpdateInput) (*Profile, error) {
	c, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
		changed = append(changed, "name")
	}
	if in.Email != nil {
		c.Email = normalizeEmail(in.Email)
		changed = append(changed, "email")
	}
	if in.Phone != nil {
		c.Phone = in.Phone
		changed = append(changed, "phone")
	}
	if in.Status != nil {
		c.Status = *in.Status
		changed = append(changed, "status")
	}
	if in.AdvisorID != nil {
		c.AdvisorID = in.AdvisorID
		changed = append(changed, "advisor_id")
	}
	if in.UserID != nil {
		c.UserID = in.UserID
		changed = append(changed, "user_id")
	}

	if err := s.store.UpdateClient(ctx, c); err != nil {
		return nil, err
	}

	core.ClientOperations.WithLabelValues("update", "success").Inc()
	s.auditor.RecordFor(ctx, ac, audit.EventClientUpdated, map[string]any{
		"client_id": c.ID,
		"fields":    changed,
	})

	return s.assemble(ctx, c)
}

// Archive marks a client ARCHIVED, leaves all of its data in place and
// returns the archived profile.
func (s *Service) Archive(ctx context.Context, ac *access.AuthContext, id string) (*Profile, error) {
	c, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetStatus(ctx, id, StatusArchived); err != nil {
		return nil, err
	}
	c.Status = StatusArchived

	core.ClientOperations.WithLabelValues("archive", "success").Inc()
	s.auditor.RecordFor(ctx, ac, audit.EventClientArchived, map[string]any{"client_id": id})
	return s.assemble(ctx, c)
}

type deleteStep struct {
	name string
	run  func(ctx context.Context, r Repository) error
}

// deleteSteps lists, in order, every write needed to remove c and all of
// its children. Dependents always come before what they reference, except
// for the client's own references which are checked at commit.
func deleteSteps(c *Client) []deleteStep {
	steps := []deleteStep{{
		name: "unlink users",
		run:  func(ctx context.Context, r Repository) error { return r.UnlinkUsers(ctx, c.ID) },
	}}

	for _, t := range []Table{
		TableInvitations,
		TableGrantRequests,
		TableDAFAccounts,
		TableOtherAccounts,
		TableDocuments,
		TableDocumentGroups,
		TableSuccessorPlans,
		TableFamilyMembers,
		TableFamilyInfo,
		TableGivingGoals,
		TableGrantPreferences,
	} {
		steps = append(steps, deleteStep{
			name: string(t),
			run:  func(ctx context.Context, r Repository) error { return r.DeleteChildren(ctx, t, c.ID) },
		})
	}

	record := func(t Table, id string) deleteStep {
		return deleteStep{
			name: string(t),
			run:  func(ctx context.Context, r Repository) error { return r.DeleteRecord(ctx, t, id) },
		}
	}

	if c.AlternateAddressID != nil {
		steps = append(steps, record(TableAddresses, *c.AlternateAddressID))
	}

	return append(steps,
		record(TableAddresses, c.PrimaryAddressID),
		record(TablePreferences, c.PreferencesID),
		record(TableCompliance, c.ComplianceID),
		record(TableAccess, c.AccessID),
		record(TableClients, c.ID),
	)
}

// Delete removes a client and every child in one transaction. Any failing
// step rolls the whole removal back.
func (s *Service) Delete(ctx context.Context, ac *access.AuthContext, id string) (err error) {
	ctx, span := core.StartSpan(ctx, tracerName, "client.delete", attribute.String("client.id", id))
	defer func() { core.EndSpan(span, err) }()

	c, err := s.load(ctx, ac, id)
	if err != nil {
		return err
	}

	err = s.store.InTx(ctx, func(r Repository) error {
		locked, err := r.LockClient(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("delete client: %w", err)
		}
		c = locked
		for _, step := range deleteSteps(locked) {
			if err := step.run(ctx, r); err != nil {
				return fmt.Errorf("delete client: %s: %w", step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		core.ClientOperations.WithLabelValues("delete", "failure").Inc()
		return err
	}

	core.ClientOperations.WithLabelValues("delete", "success").Inc()
	s.auditor.RecordFor(ctx, ac, audit.EventClientDeleted, map[string]any{
		"client_id": c.ID,
		"name":      c.Name,
	})
	return nil
}

// SetAlternateAddress replaces the client's alternate address.
func (s *Service) SetAlternateAddress(
	ctx context.Context,
	ac *access.AuthContext,
	id string,
	in AddressInput,
) (*Address, error) {
	c, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}

	addr := in.toAddress(core.NewID())
	err = s.store.InTx(ctx, func(r Repository) error {
		if err := r.CreateAddress(ctx, addr); err != nil {
			return err
		}
		if err := r.SetAlternateAddress(ctx, c.ID, addr.ID); err != nil {
			return err
		}
		if c.AlternateAddressID != nil {
			return r.DeleteRecord(ctx, TableAddresses, *c.AlternateAddressID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.childAdded(ctx, ac, c.ID, "alternate_address", addr.ID)
	return addr, nil
}

func (s *Service) AddDAFAccount(
	ctx context.Context,
	ac *access.AuthContext,
	clientID string,
	req AddDAFAccountRequest,
) (*DAFAccount, error) {
	if _, err := s.load(ctx, ac, clientID); err != nil {
		return nil, err
	}

	a := &DAFAccount{
		ID:            core.NewID(),
		ClientID:      clientID,
		Name:          req.Name,
		Sponsor:       req.Sponsor,
		AccountNumber: req.AccountNumber,
		BalanceCents:  req.BalanceCents,
	}
	if err := s.store.CreateDAFAccount(ctx, a); err != nil {
		return nil, err
	}

	s.childAdded(ctx, ac, clientID, "daf_account", a.ID)
	return a, nil
}

func (s *Service) AddOtherAccount(
	ctx context.Context,
	ac *access.AuthContext,
	clientID string,
	req AddOtherAccountRequest,
) (*OtherAccount, error) {
	if _, err := s.load(ctx, ac, clientID); err != nil {
		return nil, err
	}

	a := &OtherAccount{
		ID:          core.NewID(),
		ClientID:    clientID,
		Institution: req.Institution,
		AccountType: req.AccountType,
		Description: req.Description,
	}
	if err := s.store.CreateOtherAccount(ctx, a); err != nil {
		return nil, err
	}

	s.childAdded(ctx, ac, clientID, "other_account", a.ID)
	return a, nil
}

// AddDocument files a document in the client's document group, creating the
// group on first use.
func (s *Service) AddDocument(
	ctx context.Context,
	ac *access.AuthContext,
	clientID string,
	req AddDocumentRequest,
) (*Document, error) {
	if _, err := s.load(ctx, ac, clientID); err != nil {
		return nil, err
	}

	t, err := ParseDocumentType(req.Type)
	if err != nil {
		return nil, fmt.Errorf("add document: %w: %w", core.ErrInvalidInput, err)
	}

	d := &Document{
		ID:       core.NewID(),
		ClientID: clientID,
		Type:     string(t),
		Title:    req.Title,
		URL:      req.URL,
	}
	err = s.store.InTx(ctx, func(r Repository) error {
		groupID, err := r.EnsureDocumentGroup(ctx, clientID)
		if err != nil {
			return err
		}
		d.GroupID = groupID
		return r.CreateDocument(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	s.childAdded(ctx, ac, clientID, "document", d.ID)
	return d, nil
}

// AddFamilyMember records a family member and, when requested, their
// successor plan. The family info record is created on first use.
func (s *Service) AddFamilyMember(
	ctx context.Context,
	ac *access.AuthContext,
	clientID string,
	req AddFamilyMemberRequest,
) (*FamilyMember, error) {
	if _, err := s.load(ctx, ac, clientID); err != nil {
		return nil, err
	}

	m := &FamilyMember{
		ID:           core.NewID(),
		ClientID:     clientID,
		Name:         req.Name,
		Relationship: req.Relationship,
		Email:        normalizeEmail(req.Email),
	}
	err := s.store.InTx(ctx, func(r Repository) error {
		infoID, err := r.EnsureFamilyInfo(ctx, clientID)
		if err != nil {
			return err
		}
		m.FamilyInfoID = infoID

		if err := r.CreateFamilyMember(ctx, m); err != nil {
			return err
		}
		if req.Successor == nil {
			return nil
		}
		return r.CreateSuccessorPlan(ctx, &SuccessorPlan{
			ID:           core.NewID(),
			FamilyInfoID: infoID,
			ClientID:     clientID,
			MemberID:     m.ID,
			Percentage:   req.Successor.Percentage,
			Notes:        req.Successor.Notes,
		})
	})
	if err != nil {
		return nil, err
	}

	s.childAdded(ctx, ac, clientID, "family_member", m.ID)
	return m, nil
}

func (s *Service) AddGivingGoal(
	ctx context.Context,
	ac *access.AuthContext,
	clientID string,
	req AddGivingGoalRequest,
) (*GivingGoal, error) {
	if _, err := s.load(ctx, ac, clientID); err != nil {
		return nil, err
	}

	g := &GivingGoal{
		ID:          core.NewID(),
		ClientID:    clientID,
		Year:        req.Year,
		TargetCents: req.TargetCents,
		Description: req.Description,
	}
	if err := s.store.CreateGivingGoal(ctx, g); err != nil {
		return nil, err
	}

	s.childAdded(ctx, ac, clientID, "giving_goal", g.ID)
	return g, nil
}

func (s *Service) AddGrantPreference(
	ctx context.Context,
	ac *access.AuthContext,
	clientID string,
	req AddGrantPreferenceRequest,
) (*GrantPreference, error) {
	if _, err := s.load(ctx, ac, clientID); err != nil {
		return nil, err
	}

	g := &GrantPreference{
		ID:               core.NewID(),
		ClientID:         clientID,
		Cause:            req.Cause,
		OrganizationName: req.OrganizationName,
		EIN:              req.EIN,
	}
	if err := s.store.CreateGrantPreference(ctx, g); err != nil {
		return nil, err
	}

	s.childAdded(ctx, ac, clientID, "grant_preference", g.ID)
	return g, nil
}

func (s *Service) childAdded(ctx context.Context, ac *access.AuthContext, clientID, kind, id string) {
	core.ClientOperations.WithLabelValues("add_"+kind, "success").Inc()
	s.auditor.RecordFor(ctx, ac, audit.EventClientChildAdded, map[string]any{
		"client_id": clientID,
		"kind":      kind,
		"id":        id,
	})
}

// CreateInvitation shares read access to a client with someone by email.
// Advisors and the owning client may invite.
func (s *Service) CreateInvitation(
	ctx context.Context,
	ac *access.AuthContext,
	clientID string,
	req CreateInvitationRequest,
) (*InvitationResponse, error) {
	c, err := s.load(ctx, ac, clientID)
	if err != nil {
		return nil, err
	}

	owner := c.UserID != nil && *c.UserID == ac.UserID
	if !owner && !ac.Can(permission.ManageDAFs) {
		return nil, fmt.Errorf("create invitation: %w", core.ErrForbidden)
	}

	now := s.now()
	inv := &Invitation{
		ID:        core.NewID(),
		ClientID:  clientID,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Status:    InvitationPending,
		ExpiresAt: now.Add(s.invites.TTL()),
		CreatedBy: ac.UserID,
	}

	token, err := s.invites.Issue(inv.ID, clientID, inv.ExpiresAt)
	if err != nil {
		return nil, err
	}
	inv.TokenHash = core.HashToken(token)

	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	s.auditor.RecordFor(ctx, ac, audit.EventInvitationCreated, map[string]any{
		"client_id":     clientID,
		"invitation_id": inv.ID,
		"email":         inv.Email,
	})

	return &InvitationResponse{Invitation: *inv, Token: token}, nil
}

// AcceptInvitation redeems an invitation token and creates a family member
// account linked to the inviting client. A token can be redeemed once.
func (s *Service) AcceptInvitation(
	ctx context.Context,
	meta access.RequestMeta,
	req AcceptInvitationRequest,
) (*AcceptInvitationResponse, error) {
	invID, clientID, err := s.invites.Parse(req.Token)
	if err != nil {
		return nil, err
	}

	inv, err := s.store.GetInvitation(ctx, invID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("accept invitation: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return nil, err
	}

	if inv.ClientID != clientID || !core.CompareTokenHash(req.Token, inv.TokenHash) {
		return nil, fmt.Errorf("accept invitation: %w", core.ErrTokenInvalid)
	}
	if inv.Status != InvitationPending {
		return nil, fmt.Errorf("accept invitation: %w", core.ErrTokenRevoked)
	}
	now := s.now()
	if !now.Before(inv.ExpiresAt) {
		return nil, fmt.Errorf("accept invitation: %w", core.ErrTokenExpired)
	}

	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("accept invitation: hash password: %w", err)
	}

	err = s.store.SetInvitationStatus(ctx, inv.ID, InvitationPending, InvitationAccepted, now)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("accept invitation: %w", core.ErrTokenRevoked)
	}
	if err != nil {
		return nil, err
	}

	userID, err := s.users.CreateFamilyMember(ctx, inv.Email, strings.TrimSpace(req.Name), hash, clientID)
	if err != nil {
		s.releaseInvitation(ctx, inv.ID, now)
		return nil, fmt.Errorf("accept invitation: %w", err)
	}

	s.auditor.RecordFor(ctx, &access.AuthContext{
		UserID:   userID,
		Role:     permission.RoleFamilyMember,
		ClientID: &clientID,
		Meta:     meta,
	}, audit.EventInvitationAccepted, map[string]any{
		"client_id":     clientID,
		"invitation_id": inv.ID,
	})

	return &AcceptInvitationResponse{UserID: userID, ClientID: clientID}, nil
}

func (s *Service) releaseInvitation(ctx context.Context, id string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	if err := s.store.SetInvitationStatus(ctx, id, InvitationAccepted, InvitationPending, at); err != nil {
		s.logger.Error("release invitation failed", "invitation_id", id, "error", err)
	}
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(*email))
	return &e
}
