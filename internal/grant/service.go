// AngelaMos | 2026
// service.go

package grant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/audit"
	"github.com/carterperez-dev/daf-manager/internal/client"
	"github.com/carterperez-dev/daf-manager/internal/core"
)

var (
	ErrAlreadyDecided = errors.New("grant request has already been decided")
	ErrSelfApproval   = errors.New("cannot decide a grant request you submitted")
)

type Auditor interface {
	RecordFor(
		ctx context.Context,
		ac *access.AuthContext,
		eventType string,
		metadata map[string]any,
	)
}

// Clients resolves a client the caller is allowed to see.
type Clients interface {
	Lookup(ctx context.Context, ac *access.AuthContext, id string) (*client.Client, error)
}

type Service struct {
	store   Store
	clients Clients
	auditor Auditor
	now     func() time.Time
}

func NewService(store Store, clients Clients, auditor Auditor) *Service {
	return &Service{
		store:   store,
		clients: clients,
		auditor: auditor,
		now:     time.Now,
	}
}

// Create records a pending grant request against one of the client's DAF
// accounts. The account must currently hold at least the requested amount.
func (s *Service) Create(ctx context.Context, ac *access.AuthContext, in CreateRequest) (*Request, error) {
	c, err := s.clients.Lookup(ctx, ac, in.ClientID)
	if err != nil {
		return nil, err
	}
	if c.Status == client.StatusArchived {
		return nil, fmt.Errorf("create grant request: client is archived: %w", core.ErrInvalidInput)
	}

	balance, err := s.store.AccountBalance(ctx, in.DAFAccountID, c.ID)
	if err != nil {
		return nil, err
	}
	if balance < in.AmountCents {
		return nil, fmt.Errorf("create grant request: %w", ErrInsufficientBalance)
	}

	req := &Request{
		ID:               core.NewID(),
		ClientID:         c.ID,
		DAFAccountID:     in.DAFAccountID,
		OrganizationName: strings.TrimSpace(in.OrganizationName),
		EIN:              in.EIN,
		AmountCents:      in.AmountCents,
		Purpose:          in.Purpose,
		Status:           StatusPending,
		RequestedBy:      ac.UserID,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}

	s.auditor.RecordFor(ctx, ac, audit.EventGrantRequested, map[string]any{
		"grant_id":     req.ID,
		"client_id":    req.ClientID,
		"amount_cents": req.AmountCents,
	})

	return req, nil
}

func (s *Service) Get(ctx context.Context, ac *access.AuthContext, id string) (*Request, error) {
	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.clients.Lookup(ctx, ac, req.ClientID); err != nil {
		return nil, fmt.Errorf("get grant request: %w", core.ErrNotFound)
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, ac *access.AuthContext, params ListParams) ([]Request, int, error) {
	params.Normalize()
	params.Scope = client.ScopeFor(ac)
	return s.store.List(ctx, params)
}

func (s *Service) Approve(ctx context.Context, ac *access.AuthContext, id string, in DecisionRequest) (*Request, error) {
	return s.decide(ctx, ac, id, StatusApproved, in.Note)
}

func (s *Service) Reject(ctx context.Context, ac *access.AuthContext, id string, in DecisionRequest) (*Request, error) {
	return s.decide(ctx, ac, id, StatusRejected, in.Note)
}

// decide settles a pending request. Approval debits the DAF account in the
// same transaction.
func (s *Service) decide(
	ctx context.Context,
	ac *access.AuthContext,
	id string,
	status Status,
	note *string,
) (_ *Request, err error) {
	ctx, span := core.StartSpan(ctx, "daf-manager/grant", "grant.decide",
		attribute.String("grant.id", id),
		attribute.String("grant.status", string(status)),
	)
	defer func() { core.EndSpan(span, err) }()

	current, err := s.Get(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, fmt.Errorf("decide grant request: %w", ErrAlreadyDecided)
	}
	if current.RequestedBy == ac.UserID {
		return nil, fmt.Errorf("decide grant request: %w", ErrSelfApproval)
	}

	var decided *Request
	err = s.store.InTx(ctx, func(r Repository) error {
		var err error
		decided, err = r.Decide(ctx, id, status, ac.UserID, note, s.now())
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("decide grant request: %w", ErrAlreadyDecided)
		}
		if err != nil {
			return err
		}
		if status == StatusApproved {
			return r.Debit(ctx, decided.DAFAccountID, decided.AmountCents)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := audit.EventGrantRejected
	if status == StatusApproved {
		event = audit.EventGrantApproved
	}
	s.auditor.RecordFor(ctx, ac, event, map[string]any{
		"grant_id":     decided.ID,
		"client_id":    decided.ClientID,
		"amount_cents": decided.AmountCents,
	})

	return decided, nil
}
