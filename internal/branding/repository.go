// AngelaMos | 2026
// repository.go

package branding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/daf-manager/internal/core"
)

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Upsert(ctx context.Context, s *Settings) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context) (*Settings, error) {
	var s Settings
	err := r.db.GetContext(ctx, &s, `
		SELECT organization_name, logo_url, primary_color, support_email, updated_by, updated_at
		FROM branding WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get branding: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get branding: %w", err)
	}
	return &s, nil
}

func (r *repository) Upsert(ctx context.Context, s *Settings) error {
	query := `
		INSERT INTO branding (id, organization_name, logo_url, primary_color, support_email, updated_by, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			organization_name = EXCLUDED.organization_name,
			logo_url = EXCLUDED.logo_url,
			primary_color = EXCLUDED.primary_color,
			support_email = EXCLUDED.support_email,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		s.OrganizationName, s.LogoURL, s.PrimaryColor, s.SupportEmail, s.UpdatedBy,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert branding: %w", err)
	}
	return nil
}
