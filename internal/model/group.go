package model

import "time"

// Group is a labeled, bounded sub-range of a project's integer domain. Both
// bounds are inclusive. Labels are unique per tenant; the composite unique
// index backs up the validation in Project.ValidateGroups. Version is an
// optimistic concurrency counter checked-and-incremented on every update so
// a concurrent modification of group bounds during a draw is detected
// instead of silently overwritten.
type Group struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	TenantID   string `json:"-" gorm:"type:varchar(100);uniqueIndex:idx_group_tenant_label;not null"`
	ProjectID  uint   `json:"-" gorm:"index"`
	Version    int    `json:"version" gorm:"not null;default:0"`
	Position   int    `json:"-" gorm:"not null;default:0"`
	Label      string `json:"label" gorm:"type:varchar(255);uniqueIndex:idx_group_tenant_label"`
	LowerBound int    `json:"lower_bound"`
	UpperBound int    `json:"upper_bound"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contains reports whether v falls inside the group's inclusive bounds.
func (g *Group) Contains(v int) bool {
	return g.LowerBound <= v && v <= g.UpperBound
}
