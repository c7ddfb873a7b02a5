package model

import (
	"sort"
	"time"
)

// Project is the one-per-tenant configuration object. It owns the group
// partition and the field definitions; both child lists are replaced
// wholesale on update. The unique index on TenantID enforces the
// one-project-per-tenant rule at the database as a backstop.
type Project struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	TenantID    string     `json:"-" gorm:"type:varchar(100);uniqueIndex;not null"`
	Name        string     `json:"name" gorm:"type:varchar(1000)"`
	Description string     `json:"description" gorm:"type:text"`
	HelpText    string     `json:"help_text" gorm:"type:text"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Active      bool       `json:"active" gorm:"default:true"`
	CreatedBy   Creator    `json:"created_by" gorm:"embedded;embeddedPrefix:creator_"`

	FieldDefinitions []FieldDefinition `json:"field_definitions" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	Groups           []Group           `json:"groups" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Creator holds information about the person who created the project.
type Creator struct {
	Name  string `json:"name" gorm:"type:varchar(255)"`
	Email string `json:"email" gorm:"type:varchar(255)"`
}

// FieldDefinition describes one additional-information field that clients
// may fill per customer. The type tag is opaque to the server and
// interpreted by the client.
type FieldDefinition struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	TenantID  string `json:"-" gorm:"type:varchar(100);index;not null"`
	ProjectID uint   `json:"-" gorm:"index"`
	Position  int    `json:"-" gorm:"not null;default:0"`
	Name      string `json:"name" gorm:"type:varchar(255)"`
	FieldType string `json:"field_type" gorm:"type:varchar(255)"`
}

// ValidateFieldDefinitions checks that field definition names are pairwise
// distinct. An empty list is valid.
func (p *Project) ValidateFieldDefinitions() error {
	seen := make(map[string]struct{}, len(p.FieldDefinitions))
	for _, fd := range p.FieldDefinitions {
		if _, ok := seen[fd.Name]; ok {
			return ErrDuplicateFieldName
		}
		seen[fd.Name] = struct{}{}
	}
	return nil
}

// ValidateGroups checks the partition invariants: at least two groups,
// pairwise distinct labels, lower bound strictly below upper bound, and no
// gaps or overlaps between adjacent groups when sorted by lower bound. The
// covered domain is whatever the current group set spans; nothing is cached
// here because the set can change on every project update.
func (p *Project) ValidateGroups() error {
	if len(p.Groups) < 2 {
		return ErrInsufficientGroups
	}

	labels := make(map[string]struct{}, len(p.Groups))
	for _, g := range p.Groups {
		if _, ok := labels[g.Label]; ok {
			return ErrDuplicateGroupLabel
		}
		labels[g.Label] = struct{}{}
	}

	sorted := make([]Group, len(p.Groups))
	copy(sorted, p.Groups)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].LowerBound != sorted[j].LowerBound {
			return sorted[i].LowerBound < sorted[j].LowerBound
		}
		return sorted[i].UpperBound < sorted[j].UpperBound
	})

	for i, g := range sorted {
		if g.LowerBound >= g.UpperBound {
			return ErrInvertedGroupBounds
		}
		if i+1 < len(sorted) && g.UpperBound+1 != sorted[i+1].LowerBound {
			return ErrNonContiguousGroups
		}
	}

	return nil
}
