// AngelaMos | 2026
// repository.go

package grant

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

var ErrInsufficientBalance = errors.New("insufficient DAF balance")

type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context, params ListParams) ([]Request, int, error)
	AccountBalance(ctx context.Context, accountID, clientID string) (int64, error)
	Decide(ctx context.Context, id string, status Status, decidedBy string, note *string, at time.Time) (*Request, error)
	Debit(ctx context.Context, accountID string, amountCents int64) error
}

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

const requestColumns = `
	g.id, g.client_id, g.daf_account_id, g.organization_name, g.ein,
	g.amount_cents, g.purpose, g.status, g.requested_by,
	g.decided_by, g.decided_at, g.decision_note, g.created_at`

func (r *repository) Create(ctx context.Context, req *Request) error {
	query := `
		INSERT INTO grant_requests (
			id, client_id, daf_account_id, organization_name, ein,
			amount_cents, purpose, status, requested_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		req.ID, req.ClientID, req.DAFAccountID, req.OrganizationName, req.EIN,
		req.AmountCents, req.Purpose, req.Status, req.RequestedBy,
	).Scan(&req.CreatedAt)
	if err != nil {
		return fmt.Errorf("create grant request: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Request, error) {
	var req Request
	err := r.db.GetContext(ctx, &req,
		`SELECT `+requestColumns+` FROM grant_requests g WHERE g.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get grant request: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get grant request: %w", err)
	}
	return &req, nil
}

func (r *repository) List(ctx context.Context, params ListParams) ([]Request, int, error) {
	params.Normalize()

	var conditions []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Status != "" {
		conditions = append(conditions, "g.status = "+arg(params.Status))
	}
	if params.ClientID != "" {
		conditions = append(conditions, "g.client_id = "+arg(params.ClientID))
	}

	if scope := params.Scope.Condition(arg); scope != "" {
		conditions = append(conditions, scope)
	}

	where := "TRUE"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}
	from := `FROM grant_requests g
		JOIN clients c ON c.id = g.client_id
		JOIN client_access a ON a.id = c.access_id
		WHERE ` + where

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+from, args...); err != nil {
		return nil, 0, fmt.Errorf("count grant requests: %w", err)
	}

	limit := arg(params.PageSize)
	offset := arg(params.Offset())
	query := fmt.Sprintf(`SELECT %s %s
		ORDER BY g.created_at DESC, g.id
		LIMIT %s OFFSET %s`, requestColumns, from, limit, offset)

	requests := []Request{}
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list grant requests: %w", err)
	}

	return requests, total, nil
}

// AccountBalance returns the balance of a DAF account that belongs to
// clientID, or ErrNotFound.
func (r *repository) AccountBalance(ctx context.Context, accountID, clientID string) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance,
		`SELECT balance_cents FROM daf_accounts WHERE id = $1 AND client_id = $2`,
		accountID, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("daf account: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("daf account: %w", err)
	}
	return balance, nil
}

// Decide moves a pending request to status. A request that is no longer
// pending is reported as ErrNotFound.
func (r *repository) Decide(
	ctx context.Context,
	id string,
	status Status,
	decidedBy string,
	note *string,
	at time.Time,
) (*Request, error) {
	query := `
		UPDATE grant_requests g
		SET status = $2, decided_by = $3, decision_note = $4, decided_at = $5
		WHERE g.id = $1 AND g.status = 'PENDING'
		RETURNING ` + requestColumns

	var req Request
	err := r.db.GetContext(ctx, &req, query, id, status, decidedBy, note, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decide grant request: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("decide grant request: %w", err)
	}
	return &req, nil
}

func (r *repository) Debit(ctx context.Context, accountID string, amountCents int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE daf_accounts SET balance_cents = balance_cents - $2
		WHERE id = $1 AND balance_cents >= $2`, accountID, amountCents)
	if err != nil {
		return fmt.Errorf("debit daf account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit daf account: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("debit daf account: %w", ErrInsufficientBalance)
	}
	return nil
}
