package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cointoss-service/internal/model"
)

// GetUser loads a user by id.
func (s *Store) GetUser(tenantID string, id uint) (*model.User, error) {
	if tenantID == "" {
		return nil, model.ErrMissingTenant
	}

	var user model.User
	err := s.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all users of the tenant.
func (s *Store) ListUsers(tenantID string) ([]model.User, error) {
	if tenantID == "" {
		return nil, model.ErrMissingTenant
	}

	var users []model.User
	if err := s.db.Where("tenant_id = ?", tenantID).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser persists a new user. A client-supplied id is ignored. Fails
// with model.ErrDuplicateLogin if the login is taken within the tenant.
func (s *Store) CreateUser(tenantID string, user *model.User) error {
	if tenantID == "" {
		return model.ErrMissingTenant
	}
	if err := user.Validate(); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		taken, err := loginTaken(tx, tenantID, user.Login, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%q: %w", user.Login, model.ErrDuplicateLogin)
		}

		user.ID = 0
		user.TenantID = tenantID
		return tx.Create(user).Error
	})
}

// CreateUsers persists a batch of users, all or nothing, inside an existing
// transaction. The batch is pre-validated: every user must be valid and the
// logins pairwise distinct. Used by order provisioning.
func createUsers(tx *gorm.DB, tenantID string, users []model.User) error {
	logins := make(map[string]struct{}, len(users))
	for i := range users {
		if err := users[i].Validate(); err != nil {
			return err
		}
		if _, ok := logins[users[i].Login]; ok {
			return fmt.Errorf("%q: %w", users[i].Login, model.ErrDuplicateLogin)
		}
		logins[users[i].Login] = struct{}{}
	}

	for i := range users {
		users[i].ID = 0
		users[i].TenantID = tenantID
		if err := tx.Create(&users[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// UpdateUser replaces a user's login and role. The uniqueness check
// excludes the user's own id so a no-op update does not conflict with
// itself.
func (s *Store) UpdateUser(tenantID string, id uint, user *model.User) (*model.User, error) {
	if tenantID == "" {
		return nil, model.ErrMissingTenant
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing model.User
		err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		taken, err := loginTaken(tx, tenantID, user.Login, id)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%q: %w", user.Login, model.ErrDuplicateLogin)
		}

		return tx.Model(&existing).Updates(map[string]interface{}{
			"login": user.Login,
			"role":  user.Role,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetUser(tenantID, id)
}

// DeleteUser removes a user. Deleting a missing id is silently ignored.
func (s *Store) DeleteUser(tenantID string, id uint) error {
	if tenantID == "" {
		return model.ErrMissingTenant
	}
	return s.db.Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&model.User{}).Error
}

// loginTaken reports whether the login is already used within the tenant,
// excluding the given user id when non-zero.
func loginTaken(tx *gorm.DB, tenantID, login string, excludeID uint) (bool, error) {
	q := tx.Model(&model.User{}).Where("tenant_id = ? AND login = ?", tenantID, login)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
