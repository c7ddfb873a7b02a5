package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"cointoss-service/internal/model"
)

// searchLimit caps search results at 101 rows so clients can detect that
// more than 100 customers matched and ask for a narrower term.
const searchLimit = 101

// CreateCustomer validates and persists a new customer. If the
// participation reason indicates participation, the coin toss runs in the
// same transaction, so a failed insert leaves no assignment behind.
func (s *Store) CreateCustomer(tenantID string, customer *model.Customer) error {
	if tenantID == "" {
		return model.ErrMissingTenant
	}

	customer.CustomerNumber = model.NormalizeCustomerNumber(customer.CustomerNumber)
	if !model.ValidCustomerNumber(customer.CustomerNumber) {
		return fmt.Errorf("%q: %w", customer.CustomerNumber, model.ErrInvalidCustomerNumber)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		taken, err := customerNumberTaken(tx, tenantID, customer.CustomerNumber, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%q: %w", customer.CustomerNumber, model.ErrDuplicateCustomerNumber)
		}

		customer.ID = 0
		customer.TenantID = tenantID
		customer.GroupID = nil
		customer.Group = nil
		for i := range customer.AdditionalInfo {
			customer.AdditionalInfo[i].ID = 0
			customer.AdditionalInfo[i].TenantID = tenantID
			customer.AdditionalInfo[i].Position = i
		}

		if customer.Reason.Participating() {
			if _, err := s.engine.Toss(tx, tenantID, customer); err != nil {
				return err
			}
		}

		// The group is an existing row; only the reference is written.
		return tx.Omit("Group").Create(customer).Error
	})
}

// UpdateCustomer replaces a customer's data and reports whether the update
// triggered a coin toss. If the update switches the reason to participation
// and no group is assigned yet, the toss runs now, against the partition as
// it exists at this moment; an existing assignment is never changed.
func (s *Store) UpdateCustomer(tenantID string, id uint, data *model.Customer) (*model.Customer, bool, error) {
	if tenantID == "" {
		return nil, false, model.ErrMissingTenant
	}

	data.CustomerNumber = model.NormalizeCustomerNumber(data.CustomerNumber)
	if !model.ValidCustomerNumber(data.CustomerNumber) {
		return nil, false, fmt.Errorf("%q: %w", data.CustomerNumber, model.ErrInvalidCustomerNumber)
	}

	tossed := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		taken, err := customerNumberTaken(tx, tenantID, data.CustomerNumber, id)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%q: %w", data.CustomerNumber, model.ErrDuplicateCustomerNumber)
		}

		var existing model.Customer
		err = tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrCustomerNotFound
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"given_name":      data.GivenName,
			"family_name":     data.FamilyName,
			"birth_date":      data.BirthDate,
			"customer_number": data.CustomerNumber,
			"reason":          data.Reason,
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return err
		}

		if err := replaceAdditionalInfo(tx, tenantID, existing.ID, data.AdditionalInfo); err != nil {
			return err
		}

		if data.Reason.Participating() && !existing.Assigned() {
			if _, err := s.engine.Toss(tx, tenantID, &existing); err != nil {
				return err
			}
			if err := assignGroup(tx, tenantID, existing.ID, existing.GroupID); err != nil {
				return err
			}
			tossed = true
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	customer, err := s.GetCustomer(tenantID, id)
	if err != nil {
		return nil, false, err
	}
	return customer, tossed, nil
}

// assignGroup writes the customer's group reference under a "group_id IS
// NULL" guard. Zero affected rows mean a concurrent transaction assigned
// first; the unit of work then fails with model.ErrAssignmentConflict
// instead of overwriting, and a retry of the whole update draws fresh.
func assignGroup(tx *gorm.DB, tenantID string, customerID uint, groupID *uint) error {
	res := tx.Model(&model.Customer{}).
		Where("id = ? AND tenant_id = ? AND group_id IS NULL", customerID, tenantID).
		Update("group_id", groupID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrAssignmentConflict
	}
	return nil
}

// GetCustomer loads a customer by id, with the assigned group and the
// additional-information entries in stored order.
func (s *Store) GetCustomer(tenantID string, id uint) (*model.Customer, error) {
	if tenantID == "" {
		return nil, model.ErrMissingTenant
	}

	var customer model.Customer
	err := s.db.
		Preload("AdditionalInfo", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Group").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerByNumber loads a customer by customer number, case-insensitive.
func (s *Store) GetCustomerByNumber(tenantID, number string) (*model.Customer, error) {
	if tenantID == "" {
		return nil, model.ErrMissingTenant
	}

	var customer model.Customer
	err := s.db.
		Preload("AdditionalInfo", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Group").
		Where("tenant_id = ? AND customer_number = ?", tenantID, model.NormalizeCustomerNumber(number)).
		First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// SearchCustomers returns up to 101 customers whose family name or customer
// number contains the term, case-insensitive. An empty term returns the
// first 101 customers of the tenant.
func (s *Store) SearchCustomers(tenantID, term string) ([]model.Customer, error) {
	if tenantID == "" {
		return nil, model.ErrMissingTenant
	}

	q := s.db.
		Preload("Group").
		Where("tenant_id = ?", tenantID).
		Order("id").
		Limit(searchLimit)

	if term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(family_name) LIKE ? OR LOWER(customer_number) LIKE ?", pattern, pattern)
	}

	var customers []model.Customer
	if err := q.Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

// GroupCount is one row of the customers-per-group report.
type GroupCount struct {
	Group string `json:"group"`
	Count int64  `json:"count"`
}

// CountPerGroup reports how many customers each group holds. Groups without
// customers appear with a zero count.
func (s *Store) CountPerGroup(tenantID string) ([]GroupCount, error) {
	if tenantID == "" {
		return nil, model.ErrMissingTenant
	}

	var counts []GroupCount
	err := s.db.Model(&model.Group{}).
		Select("groups.label AS \"group\", COUNT(customers.id) AS count").
		Joins("LEFT JOIN customers ON customers.group_id = groups.id AND customers.tenant_id = groups.tenant_id").
		Where("groups.tenant_id = ?", tenantID).
		Group("groups.label").
		Order("groups.label").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// customerNumberTaken reports whether the (canonical) number is already
// used within the tenant. excludeID skips the record being updated so a
// no-op update does not conflict with itself.
func customerNumberTaken(tx *gorm.DB, tenantID, number string, excludeID uint) (bool, error) {
	q := tx.Model(&model.Customer{}).Where("tenant_id = ? AND customer_number = ?", tenantID, number)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// replaceAdditionalInfo swaps a customer's key/value entries for the
// incoming list.
func replaceAdditionalInfo(tx *gorm.DB, tenantID string, customerID uint, incoming []model.AdditionalInfo) error {
	if err := tx.Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Delete(&model.AdditionalInfo{}).Error; err != nil {
		return err
	}

	for i, info := range incoming {
		entry := model.AdditionalInfo{
			TenantID:   tenantID,
			CustomerID: customerID,
			Position:   i,
			Key:        info.Key,
			Value:      info.Value,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}
	return nil
}
