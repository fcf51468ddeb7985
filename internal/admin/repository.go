// AngelaMos | 2026
// repository.go

package admin

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/daf-manager/internal/client"
	"github.com/carterperez-dev/daf-manager/internal/core"
)

// Portfolio summarizes the clients a caller can see.
type Portfolio struct {
	ClientsByStatus    map[client.Status]int `json:"clients_by_status"`
	DAFAccounts        int                   `json:"daf_accounts"`
	TotalBalanceCents  int64                 `json:"total_balance_cents"`
	PendingGrants      int                   `json:"pending_grants"`
	PendingGrantsCents int64                 `json:"pending_grants_cents"`
}

type Repository interface {
	Portfolio(ctx context.Context, scope client.Scope) (*Portfolio, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Portfolio(ctx context.Context, scope client.Scope) (*Portfolio, error) {
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where := "TRUE"
	if cond := scope.Condition(arg); cond != "" {
		where = cond
	}
	scoped := `SELECT c.id, c.status FROM clients c
		JOIN client_access a ON a.id = c.access_id
		WHERE ` + where

	var statuses []struct {
		Status client.Status `db:"status"`
		Count  int           `db:"count"`
	}
	err := r.db.SelectContext(ctx, &statuses, `
		WITH scoped AS (`+scoped+`)
		SELECT status, COUNT(*) AS count FROM scoped GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("portfolio clients: %w", err)
	}

	p := &Portfolio{ClientsByStatus: make(map[client.Status]int, len(statuses))}
	for _, s := range statuses {
		p.ClientsByStatus[s.Status] = s.Count
	}

	var totals struct {
		Accounts     int   `db:"accounts"`
		Balance      int64 `db:"balance"`
		Pending      int   `db:"pending"`
		PendingCents int64 `db:"pending_cents"`
	}
	err = r.db.GetContext(ctx, &totals, `
		WITH scoped AS (`+scoped+`)
		SELECT
			(SELECT COUNT(*) FROM daf_accounts d JOIN scoped s ON s.id = d.client_id) AS accounts,
			(SELECT COALESCE(SUM(d.balance_cents), 0) FROM daf_accounts d JOIN scoped s ON s.id = d.client_id) AS balance,
			(SELECT COUNT(*) FROM grant_requests g JOIN scoped s ON s.id = g.client_id
				WHERE g.status = 'PENDING') AS pending,
			(SELECT COALESCE(SUM(g.amount_cents), 0) FROM grant_requests g JOIN scoped s ON s.id = g.client_id
				WHERE g.status = 'PENDING') AS pending_cents`, args...)
	if err != nil {
		return nil, fmt.Errorf("portfolio totals: %w", err)
	}

	p.DAFAccounts = totals.Accounts
	p.TotalBalanceCents = totals.Balance
	p.PendingGrants = totals.Pending
	p.PendingGrantsCents = totals.PendingCents

	return p, nil
}
