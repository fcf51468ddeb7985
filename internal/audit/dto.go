// AngelaMos | 2026
// dto.go

package audit

import (
	"time"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ListParams selects a page of events. Page numbering starts at zero.
type ListParams struct {
	Page      int
	Limit     int
	UserID    string
	EventType string
	From      *time.Time
	To        *time.Time
}

func (p *ListParams) Normalize() {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}

func (p *ListParams) Offset() int {
	return p.Page * p.Limit
}

type ListResult struct {
	Events     []Event `json:"events"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"total_pages"`
}
