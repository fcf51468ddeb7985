// AngelaMos | 2026
// service.go

package audit

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/core"
)

// Entry is the caller-supplied part of an event.
type Entry struct {
	Type      string
	ActorID   string
	ActorRole string
	Meta      access.RequestMeta
	Metadata  map[string]any
}

const (
	maxPendingWrites = 256
	writeTimeout     = 5 * time.Second
)

// Recorder appends audit events on a best-effort basis. Writes run in the
// background, at most maxPendingWrites at a time; an event that finds no free
// slot is dropped. Failed and dropped writes are logged and counted, never
// returned.
type Recorder struct {
	repo    Repository
	logger  *slog.Logger
	now     func() time.Time
	slots   chan struct{}
	pending sync.WaitGroup
}

func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		slots:  make(chan struct{}, maxPendingWrites),
	}
}

func (r *Recorder) Record(ctx context.Context, entry Entry) {
	at := r.now().UTC()
	event := &Event{
		ID:        core.NewULID(at),
		Type:      entry.Type,
		ActorID:   entry.ActorID,
		ActorRole: entry.ActorRole,
		IPAddress: entry.Meta.IPAddress,
		UserAgent: entry.Meta.UserAgent,
		Metadata:  Metadata(maps.Clone(entry.Metadata)),
		CreatedAt: at,
	}
	if event.Metadata == nil {
		event.Metadata = Metadata{}
	}
	if entry.Meta.RequestID != "" {
		event.Metadata["request_id"] = entry.Meta.RequestID
	}

	select {
	case r.slots <- struct{}{}:
	default:
		core.AuditEventsDropped.Inc()
		r.logger.Warn("audit event dropped",
			"event_type", event.Type,
			"actor_id", event.ActorID,
			"event_id", event.ID,
		)
		return
	}

	// the business mutation has already happened; a cancelled request
	// context must not drop its audit trail
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		defer func() { <-r.slots }()
		defer cancel()
		r.write(writeCtx, event)
	}()
}

func (r *Recorder) write(ctx context.Context, event *Event) {
	if err := r.repo.Insert(ctx, event); err != nil {
		core.AuditWriteFailures.Inc()
		r.logger.Error("audit write failed",
			"event_type", event.Type,
			"actor_id", event.ActorID,
			"event_id", event.ID,
			"error", err,
		)
	}
}

// Flush waits for in-flight writes to finish or for ctx to end.
func (r *Recorder) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush audit writes: %w", ctx.Err())
	}
}

// RecordFor records an event whose actor is the authorized caller.
func (r *Recorder) RecordFor(
	ctx context.Context,
	ac *access.AuthContext,
	eventType string,
	metadata map[string]any,
) {
	entry := Entry{Type: eventType, Metadata: metadata}
	if ac != nil {
		entry.ActorID = ac.UserID
		entry.ActorRole = ac.Role.String()
		entry.Meta = ac.Meta
	}
	r.Record(ctx, entry)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	params.Normalize()

	events, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	return &ListResult{
		Events:     events,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: (total + params.Limit - 1) / params.Limit,
	}, nil
}
