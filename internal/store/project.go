package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cointoss-service/internal/model"
)

// GetProject loads the tenant's project with its groups and field
// definitions in their stored order.
func (s *Store) GetProject(tenantID string) (*model.Project, error) {
	if tenantID == "" {
		return nil, model.ErrMissingTenant
	}

	var project model.Project
	err := s.db.
		Preload("FieldDefinitions", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Groups", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("tenant_id = ?", tenantID).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ProjectExists reports whether the tenant already has a project.
func (s *Store) ProjectExists(tenantID string) (bool, error) {
	if tenantID == "" {
		return false, model.ErrMissingTenant
	}

	var count int64
	err := s.db.Model(&model.Project{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count > 0, err
}

// CreateProject validates and persists a new project for the tenant. A
// tenant can hold one project; a second creation fails with
// model.ErrProjectExists (the unique index on tenant_id backs this up).
func (s *Store) CreateProject(tenantID string, project *model.Project) error {
	if tenantID == "" {
		return model.ErrMissingTenant
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		return createProject(tx, tenantID, project)
	})
}

// createProject runs the creation sequence inside an existing transaction.
// Shared with order provisioning.
func createProject(tx *gorm.DB, tenantID string, project *model.Project) error {
	var count int64
	if err := tx.Model(&model.Project{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return model.ErrProjectExists
	}

	if err := project.ValidateGroups(); err != nil {
		return err
	}
	if err := project.ValidateFieldDefinitions(); err != nil {
		return err
	}

	project.ID = 0
	project.TenantID = tenantID
	for i := range project.Groups {
		project.Groups[i].ID = 0
		project.Groups[i].TenantID = tenantID
		project.Groups[i].Version = 0
		project.Groups[i].Position = i
	}
	for i := range project.FieldDefinitions {
		project.FieldDefinitions[i].ID = 0
		project.FieldDefinitions[i].TenantID = tenantID
		project.FieldDefinitions[i].Position = i
	}

	return tx.Create(project).Error
}

// UpdateProject replaces the tenant's project state with the incoming one.
// The group and field definition lists are a full replacement, not a patch:
// children absent from the new set are deleted, new ones inserted, and
// matching groups updated under an optimistic version check. A version
// mismatch aborts the transaction with model.ErrGroupVersionConflict.
func (s *Store) UpdateProject(tenantID string, incoming *model.Project) (*model.Project, error) {
	if tenantID == "" {
		return nil, model.ErrMissingTenant
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing model.Project
		err := tx.Where("tenant_id = ?", tenantID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrProjectNotFound
		}
		if err != nil {
			return err
		}

		if err := incoming.ValidateGroups(); err != nil {
			return err
		}
		if err := incoming.ValidateFieldDefinitions(); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"name":          incoming.Name,
			"description":   incoming.Description,
			"help_text":     incoming.HelpText,
			"start_date":    incoming.StartDate,
			"end_date":      incoming.EndDate,
			"active":        incoming.Active,
			"creator_name":  incoming.CreatedBy.Name,
			"creator_email": incoming.CreatedBy.Email,
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return err
		}

		if err := replaceGroups(tx, tenantID, existing.ID, incoming.Groups); err != nil {
			return err
		}
		return replaceFieldDefinitions(tx, tenantID, existing.ID, incoming.FieldDefinitions)
	})
	if err != nil {
		return nil, err
	}

	return s.GetProject(tenantID)
}

// replaceGroups reconciles the stored group set with the incoming one.
// Incoming groups with an id update their stored counterpart; groups
// without an id are inserted; stored groups missing from the incoming set
// are deleted.
func replaceGroups(tx *gorm.DB, tenantID string, projectID uint, incoming []model.Group) error {
	keep := make([]uint, 0, len(incoming))
	for _, g := range incoming {
		if g.ID != 0 {
			keep = append(keep, g.ID)
		}
	}

	del := tx.Where("tenant_id = ? AND project_id = ?", tenantID, projectID)
	if len(keep) > 0 {
		del = del.Where("id NOT IN ?", keep)
	}
	if err := del.Delete(&model.Group{}).Error; err != nil {
		return err
	}

	for i, g := range incoming {
		if g.ID == 0 {
			group := model.Group{
				TenantID:   tenantID,
				ProjectID:  projectID,
				Position:   i,
				Label:      g.Label,
				LowerBound: g.LowerBound,
				UpperBound: g.UpperBound,
			}
			if err := tx.Create(&group).Error; err != nil {
				return err
			}
			continue
		}

		res := tx.Model(&model.Group{}).
			Where("id = ? AND tenant_id = ? AND project_id = ? AND version = ?", g.ID, tenantID, projectID, g.Version).
			Updates(map[string]interface{}{
				"label":       g.Label,
				"lower_bound": g.LowerBound,
				"upper_bound": g.UpperBound,
				"position":    i,
				"version":     g.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("group %d: %w", g.ID, model.ErrGroupVersionConflict)
		}
	}

	return nil
}

// replaceFieldDefinitions swaps the stored definition list for the incoming
// one, preserving order via the position column.
func replaceFieldDefinitions(tx *gorm.DB, tenantID string, projectID uint, incoming []model.FieldDefinition) error {
	if err := tx.Where("tenant_id = ? AND project_id = ?", tenantID, projectID).
		Delete(&model.FieldDefinition{}).Error; err != nil {
		return err
	}

	for i, fd := range incoming {
		def := model.FieldDefinition{
			TenantID:  tenantID,
			ProjectID: projectID,
			Position:  i,
			Name:      fd.Name,
			FieldType: fd.FieldType,
		}
		if err := tx.Create(&def).Error; err != nil {
			return err
		}
	}
	return nil
}
