package store

import (
	"gorm.io/gorm"

	"cointoss-service/internal/model"
)

// Order provisions a tenant in one shot: the project together with its
// initial users.
type Order struct {
	Project *model.Project `json:"project"`
	Users   []model.User   `json:"users"`
}

// PlaceOrder creates the project and the user batch atomically. Any
// validation failure (existing project, invalid groups or fields, invalid
// user data, duplicate login) rolls the whole order back, so a rejected
// order leaves no project behind.
func (s *Store) PlaceOrder(tenantID string, order *Order) error {
	if tenantID == "" {
		return model.ErrMissingTenant
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := createProject(tx, tenantID, order.Project); err != nil {
			return err
		}
		return createUsers(tx, tenantID, order.Users)
	})
}

// OrderPlaced reports whether the tenant id is already taken, i.e. whether
// an order created a project for it.
func (s *Store) OrderPlaced(tenantID string) (bool, error) {
	return s.ProjectExists(tenantID)
}
