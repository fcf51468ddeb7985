// AngelaMos | 2026
// entity.go

package branding

import (
	"time"
)

// Settings is the organization-wide presentation configuration. There is a
// single row.
type Settings struct {
	OrganizationName string     `db:"organization_name" json:"organization_name"`
	LogoURL          *string    `db:"logo_url"          json:"logo_url,omitempty"`
	PrimaryColor     string     `db:"primary_color"     json:"primary_color"`
	SupportEmail     *string    `db:"support_email"     json:"support_email,omitempty"`
	UpdatedBy        *string    `db:"updated_by"        json:"-"`
	UpdatedAt        *time.Time `db:"updated_at"        json:"updated_at,omitempty"`
}

func Defaults() Settings {
	return Settings{
		OrganizationName: "DAF Manager",
		PrimaryColor:     "#1F4E79",
	}
}

type UpdateRequest struct {
	OrganizationName string  `json:"organization_name" validate:"required,max=200"`
	LogoURL          *string `json:"logo_url"          validate:"omitempty,url,max=2048"`
	PrimaryColor     string  `json:"primary_color"     validate:"required,hexcolor"`
	SupportEmail     *string `json:"support_email"     validate:"omitempty,email,max=255"`
}
