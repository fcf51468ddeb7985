// AngelaMos | 2026
// branding_test.go

package branding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/audit"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/permission"
)

type memRepo struct {
	settings *Settings
	reads    int
}

func (m *memRepo) Get(context.Context) (*Settings, error) {
	m.reads++
	if m.settings == nil {
		return nil, fmt.Errorf("get branding: %w", core.ErrNotFound)
	}
	s := *m.settings
	return &s, nil
}

func (m *memRepo) Upsert(_ context.Context, s *Settings) error {
	now := time.Now()
	s.UpdatedAt = &now
	stored := *s
	m.settings = &stored
	return nil
}

type memCache struct {
	values map[string][]byte
	getErr error
	ttl    time.Duration
}

func (c *memCache) Get(_ context.Context, key string, dest any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	raw, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	c.ttl = ttl
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	delete(c.values, key)
	return nil
}

type auditSpy struct {
	events []string
}

func (a *auditSpy) RecordFor(_ context.Context, _ *access.AuthContext, eventType string, _ map[string]any) {
	a.events = append(a.events, eventType)
}

func newService() (*Service, *memRepo, *memCache, *auditSpy) {
	repo := &memRepo{}
	cache := &memCache{values: make(map[string][]byte)}
	spy := &auditSpy{}
	return NewService(repo, cache, 10*time.Minute, spy, nil), repo, cache, spy
}

var admin = &access.AuthContext{
	UserID:       "admin-1",
	Role:         permission.RoleAdmin,
	Capabilities: permission.For(permission.RoleAdmin),
}

func TestGetFallsBackToDefaultsAndCaches(t *testing.T) {
	svc, repo, cache, _ := newService()
	ctx := context.Background()

	s, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, Defaults().OrganizationName, s.OrganizationName)
	require.Equal(t, 10*time.Minute, cache.ttl)

	_, err = svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.reads)
}

func TestGetSurvivesCacheFailure(t *testing.T) {
	svc, repo, cache, _ := newService()
	cache.getErr = errors.New("connection refused")

	s, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, s.OrganizationName)
	require.Equal(t, 1, repo.reads)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	svc, _, _, spy := newService()
	ctx := context.Background()

	_, err := svc.Get(ctx)
	require.NoError(t, err)

	_, err = svc.Update(ctx, admin, UpdateRequest{
		OrganizationName: " Cascade Community Foundation ",
		PrimaryColor:     "#0a7f5e",
	})
	require.NoError(t, err)

	s, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Cascade Community Foundation", s.OrganizationName)
	require.Equal(t, "#0A7F5E", s.PrimaryColor)
	require.Equal(t, []string{audit.EventBrandingUpdated}, spy.events)
}

func TestHandlerUpdateValidatesColor(t *testing.T) {
	svc, repo, _, _ := newService()
	h := NewHandler(svc)

	body := `{"organization_name": "Acme", "primary_color": "teal"}`
	req := httptest.NewRequest(http.MethodPut, "/branding", strings.NewReader(body))
	req = req.WithContext(access.WithAuthContext(req.Context(), admin))
	rec := httptest.NewRecorder()

	h.Update(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, repo.settings)
}

func TestHandlerGetIsPublic(t *testing.T) {
	svc, _, _, _ := newService()
	h := NewHandler(svc)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/branding", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data Settings `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, Defaults().PrimaryColor, resp.Data.PrimaryColor)
}
