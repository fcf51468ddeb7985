// AngelaMos | 2026
// service.go

package branding

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/audit"
	"github.com/carterperez-dev/daf-manager/internal/core"
)

const cacheKey = "settings"

type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Auditor interface {
	RecordFor(
		ctx context.Context,
		ac *access.AuthContext,
		eventType string,
		metadata map[string]any,
	)
}

type Service struct {
	repo    Repository
	cache   Cache
	ttl     time.Duration
	auditor Auditor
	logger  *slog.Logger
}

// NewService builds the branding service. cache may be nil, in which case
// every read goes to the database.
func NewService(repo Repository, cache Cache, ttl time.Duration, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, auditor: auditor, logger: logger}
}

// Get returns the current settings, falling back to defaults until an
// administrator saves some. Cache failures degrade to a database read.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	if s.cache != nil {
		var cached Settings
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.Warn("branding cache read failed", "error", err)
		}
		if hit {
			return &cached, nil
		}
	}

	settings, err := s.repo.Get(ctx)
	if errors.Is(err, core.ErrNotFound) {
		d := Defaults()
		settings = &d
	} else if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, settings, s.ttl); err != nil {
			s.logger.Warn("branding cache write failed", "error", err)
		}
	}

	return settings, nil
}

func (s *Service) Update(ctx context.Context, ac *access.AuthContext, req UpdateRequest) (*Settings, error) {
	settings := &Settings{
		OrganizationName: strings.TrimSpace(req.OrganizationName),
		LogoURL:          req.LogoURL,
		PrimaryColor:     strings.ToUpper(req.PrimaryColor),
		SupportEmail:     req.SupportEmail,
		UpdatedBy:        &ac.UserID,
	}

	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			s.logger.Warn("branding cache invalidation failed", "error", err)
		}
	}

	s.auditor.RecordFor(ctx, ac, audit.EventBrandingUpdated, map[string]any{
		"organization_name": settings.OrganizationName,
	})

	return settings, nil
}
