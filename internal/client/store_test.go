// AngelaMos | 2026
// store_test.go

package client

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/carterperez-dev/daf-manager/internal/core"
)

type row struct {
	clientID string
	value    any
}

// memStore is an in-memory Store. Failures are injected per operation name;
// deletes are additionally keyed as "DeleteRecord:<table>" and
// "DeleteChildren:<table>".
type memStore struct {
	mu     sync.Mutex
	tables map[Table]map[string]row
	links  map[string]string
	fail   map[string]error
	steps  []string
}

func newMemStore() *memStore {
	return &memStore{
		tables: make(map[Table]map[string]row),
		links:  make(map[string]string),
		fail:   make(map[string]error),
	}
}

func (m *memStore) InTx(_ context.Context, fn func(Repository) error) error {
	m.mu.Lock()
	tables := make(map[Table]map[string]row, len(m.tables))
	for t, rows := range m.tables {
		tables[t] = maps.Clone(rows)
	}
	links := maps.Clone(m.links)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.tables = tables
		m.links = links
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) put(op string, t Table, id, clientID string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[op]; err != nil {
		return err
	}
	if m.tables[t] == nil {
		m.tables[t] = make(map[string]row)
	}
	m.tables[t][id] = row{clientID: clientID, value: v}
	return nil
}

func getRow[T any](m *memStore, t Table, id string) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.tables[t][id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", t, core.ErrNotFound)
	}
	v := r.value.(T)
	return &v, nil
}

func listRows[T any](m *memStore, t Table, clientID string) []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []T{}
	for _, r := range m.tables[t] {
		if r.clientID == clientID {
			out = append(out, r.value.(T))
		}
	}
	return out
}

func (m *memStore) count(t Table) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[t])
}

func (m *memStore) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rows := range m.tables {
		n += len(rows)
	}
	return n
}

func (m *memStore) CreateAddress(_ context.Context, a *Address) error {
	return m.put("CreateAddress", TableAddresses, a.ID, "", *a)
}

func (m *memStore) CreatePreferences(_ context.Context, p *Preferences) error {
	return m.put("CreatePreferences", TablePreferences, p.ID, "", *p)
}

func (m *memStore) CreateCompliance(_ context.Context, c *Compliance) error {
	return m.put("CreateCompliance", TableCompliance, c.ID, "", *c)
}

func (m *memStore) CreateAccess(_ context.Context, a *Access) error {
	return m.put("CreateAccess", TableAccess, a.ID, "", *a)
}

func (m *memStore) CreateClient(_ context.Context, c *Client) error {
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	return m.put("CreateClient", TableClients, c.ID, "", *c)
}

func (m *memStore) GetClient(_ context.Context, id string) (*Client, error) {
	return getRow[Client](m, TableClients, id)
}

func (m *memStore) LockClient(ctx context.Context, id string) (*Client, error) {
	return m.GetClient(ctx, id)
}

func (m *memStore) UpdateClient(_ context.Context, c *Client) error {
	if _, err := getRow[Client](m, TableClients, c.ID); err != nil {
		return err
	}
	c.UpdatedAt = time.Now()
	return m.put("UpdateClient", TableClients, c.ID, "", *c)
}

func (m *memStore) SetStatus(ctx context.Context, id string, status Status) error {
	c, err := m.GetClient(ctx, id)
	if err != nil {
		return err
	}
	c.Status = status
	return m.put("SetStatus", TableClients, id, "", *c)
}

func (m *memStore) SetAlternateAddress(ctx context.Context, clientID, addressID string) error {
	c, err := m.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	c.AlternateAddressID = &addressID
	return m.put("SetAlternateAddress", TableClients, clientID, "", *c)
}

func (m *memStore) ListClients(_ context.Context, params ListParams) ([]Client, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Client{}
	for _, r := range m.tables[TableClients] {
		c := r.value.(Client)
		switch {
		case params.Status != "" && c.Status != params.Status:
			continue
		case params.Status == "" && !params.IncludeArchived && c.Status == StatusArchived:
			continue
		case params.Scope.AdvisorID != "" && (c.AdvisorID == nil || *c.AdvisorID != params.Scope.AdvisorID):
			continue
		}
		if params.Scope.ViewerID != "" || params.Scope.LinkedClientID != "" {
			owner := c.UserID != nil && *c.UserID == params.Scope.ViewerID
			acc := m.tables[TableAccess][c.AccessID].value.(Access)
			linked := c.ID == params.Scope.LinkedClientID && acc.CanView
			if !owner && !linked {
				continue
			}
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memStore) GetAddress(_ context.Context, id string) (*Address, error) {
	return getRow[Address](m, TableAddresses, id)
}

func (m *memStore) GetPreferences(_ context.Context, id string) (*Preferences, error) {
	return getRow[Preferences](m, TablePreferences, id)
}

func (m *memStore) GetCompliance(_ context.Context, id string) (*Compliance, error) {
	return getRow[Compliance](m, TableCompliance, id)
}

func (m *memStore) GetAccess(_ context.Context, id string) (*Access, error) {
	return getRow[Access](m, TableAccess, id)
}

func (m *memStore) GetFamilyInfo(_ context.Context, clientID string) (*FamilyInfo, error) {
	infos := listRows[FamilyInfo](m, TableFamilyInfo, clientID)
	if len(infos) == 0 {
		return nil, fmt.Errorf("get family info: %w", core.ErrNotFound)
	}
	return &infos[0], nil
}

func (m *memStore) ListDAFAccounts(_ context.Context, clientID string) ([]DAFAccount, error) {
	return listRows[DAFAccount](m, TableDAFAccounts, clientID), nil
}

func (m *memStore) ListOtherAccounts(_ context.Context, clientID string) ([]OtherAccount, error) {
	return listRows[OtherAccount](m, TableOtherAccounts, clientID), nil
}

func (m *memStore) ListDocuments(_ context.Context, clientID string) ([]Document, error) {
	return listRows[Document](m, TableDocuments, clientID), nil
}

func (m *memStore) ListFamilyMembers(_ context.Context, clientID string) ([]FamilyMember, error) {
	return listRows[FamilyMember](m, TableFamilyMembers, clientID), nil
}

func (m *memStore) ListSuccessorPlans(_ context.Context, clientID string) ([]SuccessorPlan, error) {
	return listRows[SuccessorPlan](m, TableSuccessorPlans, clientID), nil
}

func (m *memStore) ListGivingGoals(_ context.Context, clientID string) ([]GivingGoal, error) {
	return listRows[GivingGoal](m, TableGivingGoals, clientID), nil
}

func (m *memStore) ListGrantPreferences(_ context.Context, clientID string) ([]GrantPreference, error) {
	return listRows[GrantPreference](m, TableGrantPreferences, clientID), nil
}

func (m *memStore) ListInvitations(_ context.Context, clientID string) ([]Invitation, error) {
	return listRows[Invitation](m, TableInvitations, clientID), nil
}

func (m *memStore) CreateDAFAccount(_ context.Context, a *DAFAccount) error {
	return m.put("CreateDAFAccount", TableDAFAccounts, a.ID, a.ClientID, *a)
}

func (m *memStore) CreateOtherAccount(_ context.Context, a *OtherAccount) error {
	return m.put("CreateOtherAccount", TableOtherAccounts, a.ID, a.ClientID, *a)
}

func (m *memStore) EnsureDocumentGroup(_ context.Context, clientID string) (string, error) {
	if ids := listRows[string](m, TableDocumentGroups, clientID); len(ids) > 0 {
		return ids[0], nil
	}
	id := core.NewID()
	return id, m.put("EnsureDocumentGroup", TableDocumentGroups, id, clientID, id)
}

func (m *memStore) CreateDocument(_ context.Context, d *Document) error {
	return m.put("CreateDocument", TableDocuments, d.ID, d.ClientID, *d)
}

func (m *memStore) EnsureFamilyInfo(ctx context.Context, clientID string) (string, error) {
	if info, err := m.GetFamilyInfo(ctx, clientID); err == nil {
		return info.ID, nil
	}
	info := FamilyInfo{ID: core.NewID(), ClientID: clientID}
	return info.ID, m.put("EnsureFamilyInfo", TableFamilyInfo, info.ID, clientID, info)
}

func (m *memStore) CreateFamilyMember(_ context.Context, fm *FamilyMember) error {
	return m.put("CreateFamilyMember", TableFamilyMembers, fm.ID, fm.ClientID, *fm)
}

func (m *memStore) CreateSuccessorPlan(_ context.Context, p *SuccessorPlan) error {
	return m.put("CreateSuccessorPlan", TableSuccessorPlans, p.ID, p.ClientID, *p)
}

func (m *memStore) CreateGivingGoal(_ context.Context, g *GivingGoal) error {
	return m.put("CreateGivingGoal", TableGivingGoals, g.ID, g.ClientID, *g)
}

func (m *memStore) CreateGrantPreference(_ context.Context, g *GrantPreference) error {
	return m.put("CreateGrantPreference", TableGrantPreferences, g.ID, g.ClientID, *g)
}

func (m *memStore) CreateInvitation(_ context.Context, inv *Invitation) error {
	inv.CreatedAt = time.Now()
	return m.put("CreateInvitation", TableInvitations, inv.ID, inv.ClientID, *inv)
}

func (m *memStore) GetInvitation(_ context.Context, id string) (*Invitation, error) {
	return getRow[Invitation](m, TableInvitations, id)
}

func (m *memStore) SetInvitationStatus(
	ctx context.Context,
	id string,
	from, to InvitationStatus,
	at time.Time,
) error {
	inv, err := m.GetInvitation(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != from {
		return fmt.Errorf("set invitation status: %w", core.ErrNotFound)
	}
	inv.Status = to
	inv.AcceptedAt = nil
	if to == InvitationAccepted {
		inv.AcceptedAt = &at
	}
	return m.put("SetInvitationStatus", TableInvitations, id, inv.ClientID, *inv)
}

func (m *memStore) UnlinkUsers(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, "unlink users")
	for userID, linked := range m.links {
		if linked == clientID {
			delete(m.links, userID)
		}
	}
	return nil
}

func (m *memStore) DeleteChildren(_ context.Context, table Table, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, string(table))
	if err := m.fail["DeleteChildren:"+string(table)]; err != nil {
		return err
	}
	for id, r := range m.tables[table] {
		if r.clientID == clientID {
			delete(m.tables[table], id)
		}
	}
	return nil
}

func (m *memStore) DeleteRecord(_ context.Context, table Table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, string(table))
	if err := m.fail["DeleteRecord:"+string(table)]; err != nil {
		return err
	}
	if _, ok := m.tables[table][id]; !ok {
		return fmt.Errorf("delete %s: %w", table, core.ErrNotFound)
	}
	delete(m.tables[table], id)
	return nil
}
