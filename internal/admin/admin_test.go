// AngelaMos | 2026
// admin_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/client"
	"github.com/carterperez-dev/daf-manager/internal/permission"
)

func TestPortfolioScopesToAdvisor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.advisor_id = $1")).
		WithArgs("adv-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("ACTIVE", 3).
			AddRow("PENDING", 1))
	mock.ExpectQuery(regexp.QuoteMeta("AS pending_cents")).
		WithArgs("adv-1").
		WillReturnRows(sqlmock.NewRows([]string{"accounts", "balance", "pending", "pending_cents"}).
			AddRow(5, int64(1_250_000), 2, int64(40_000)))

	p, err := repo.Portfolio(context.Background(), client.Scope{AdvisorID: "adv-1"})
	require.NoError(t, err)
	require.Equal(t, 3, p.ClientsByStatus[client.StatusActive])
	require.Equal(t, 1, p.ClientsByStatus[client.StatusPending])
	require.Equal(t, 5, p.DAFAccounts)
	require.Equal(t, int64(1_250_000), p.TotalBalanceCents)
	require.Equal(t, 2, p.PendingGrants)
	require.Equal(t, int64(40_000), p.PendingGrantsCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

type stubRepo struct {
	scope client.Scope
}

func (s *stubRepo) Portfolio(_ context.Context, scope client.Scope) (*Portfolio, error) {
	s.scope = scope
	return &Portfolio{ClientsByStatus: map[client.Status]int{client.StatusActive: 1}}, nil
}

func TestGetPortfolioUsesCallerScope(t *testing.T) {
	repo := &stubRepo{}
	h := NewHandler(HandlerConfig{Repo: repo})

	clientID := "client-7"
	ac := &access.AuthContext{
		UserID:       "fm-1",
		Role:         permission.RoleFamilyMember,
		ClientID:     &clientID,
		Capabilities: permission.For(permission.RoleFamilyMember),
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/stats/portfolio", nil)
	req = req.WithContext(access.WithAuthContext(req.Context(), ac))
	rec := httptest.NewRecorder()

	h.GetPortfolio(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, client.Scope{ViewerID: "fm-1", LinkedClientID: "client-7"}, repo.scope)
}

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }
func (f fakeDB) Stats() sql.DBStats         { return sql.DBStats{OpenConnections: 4} }

type fakeRedis struct{ err error }

func (f fakeRedis) Ping(context.Context) error { return f.err }
func (f fakeRedis) PoolStats() *redis.PoolStats {
	return &redis.PoolStats{TotalConns: 2}
}

func TestSystemStatsReportsUnhealthyDependencies(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Database: fakeDB{},
		Redis:    fakeRedis{err: errors.New("dial tcp: refused")},
	})

	rec := httptest.NewRecorder()
	h.GetSystemStats(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data SystemStatsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Data.Database.Healthy)
	require.Equal(t, 4, resp.Data.Database.Stats.OpenConnections)
	require.False(t, resp.Data.Redis.Healthy)
	require.Nil(t, resp.Data.Redis.Stats)
	require.NotEmpty(t, resp.Data.Runtime.GoVersion)
}

func TestSystemStatsWithoutProbes(t *testing.T) {
	h := NewHandler(HandlerConfig{})

	got := h.collect(context.Background())
	require.False(t, got.Database.Healthy)
	require.Nil(t, got.Database.Stats)
	require.False(t, got.Redis.Healthy)
}
