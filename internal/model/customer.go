package model

import (
	"regexp"
	"strings"
	"time"
)

// ParticipationReason records whether a customer takes part in the study or
// why they declined. Only ReasonParticipation triggers the coin toss; all
// other values are stored as opaque decline reasons.
type ParticipationReason string

// ReasonParticipation marks a participating customer.
const ReasonParticipation ParticipationReason = "participation"

// Participating reports whether the reason triggers a group assignment.
func (r ParticipationReason) Participating() bool {
	return r == ReasonParticipation
}

// customerNumberPattern: 3 digits, 1 letter, 6 digits. The letter is
// case-insensitive on input and stored lower-case.
var customerNumberPattern = regexp.MustCompile(`^\d{3}[a-z]\d{6}$`)

// NormalizeCustomerNumber returns the canonical lower-case form of a
// customer number.
func NormalizeCustomerNumber(number string) string {
	return strings.ToLower(number)
}

// ValidCustomerNumber reports whether the customer number matches the
// required format, ignoring case.
func ValidCustomerNumber(number string) bool {
	return customerNumberPattern.MatchString(NormalizeCustomerNumber(number))
}

// Customer is one customer record within a tenant. The customer number is
// unique per tenant (case-insensitive, canonically lower-case). GroupID is
// set by the coin toss at most once and never overwritten afterwards.
type Customer struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	TenantID string `json:"-" gorm:"type:varchar(100);uniqueIndex:idx_customer_tenant_number;not null"`

	GivenName      string              `json:"given_name" gorm:"type:varchar(255)"`
	FamilyName     string              `json:"family_name" gorm:"type:varchar(255)"`
	BirthDate      *time.Time          `json:"birth_date,omitempty"`
	CustomerNumber string              `json:"customer_number" gorm:"type:varchar(10);uniqueIndex:idx_customer_tenant_number"`
	Reason         ParticipationReason `json:"reason" gorm:"type:varchar(100)"`

	AdditionalInfo []AdditionalInfo `json:"additional_info" gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`

	GroupID *uint  `json:"group_id,omitempty" gorm:"index"`
	Group   *Group `json:"group,omitempty" gorm:"foreignKey:GroupID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdditionalInfo is one free-form key/value entry attached to a customer.
// Keys should match the project's field definitions, but the server does
// not enforce that; the client interprets them.
type AdditionalInfo struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	TenantID   string `json:"-" gorm:"type:varchar(100);index;not null"`
	CustomerID uint   `json:"-" gorm:"index"`
	Position   int    `json:"-" gorm:"not null;default:0"`
	Key        string `json:"key" gorm:"column:info_key;type:varchar(255)"`
	Value      string `json:"value" gorm:"column:info_value;type:text"`
}

// Assigned reports whether the customer already carries a group reference.
func (c *Customer) Assigned() bool {
	return c.GroupID != nil
}
