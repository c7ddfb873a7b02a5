// Package assign implements the coin toss: the single uniform random draw
// that places a customer into exactly one group of the tenant's partition.
package assign

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cointoss-service/internal/model"
)

// Engine resolves one random draw against the tenant's current group
// partition. The domain bounds are read fresh from the database on every
// toss, inside the caller's transaction, so bound changes between signups
// take effect immediately.
type Engine struct {
	source Source
	log    *zap.Logger
}

// New returns an engine drawing from the given source.
func New(source Source, log *zap.Logger) *Engine {
	return &Engine{source: source, log: log}
}

// Toss assigns a random group to the customer and returns it. The caller
// decides whether a toss is due (participating and not yet assigned) and
// must persist the customer in the same transaction.
//
// Returns model.ErrGroupAlreadyAssigned if the customer already has a
// group; that is a broken calling discipline, not a business outcome, and
// is logged as an error. Returns model.ErrInconsistentPartition if the
// drawn value resolves to no group; the stored groups then violate the
// partition invariant and no second draw is attempted.
func (e *Engine) Toss(tx *gorm.DB, tenantID string, customer *model.Customer) (*model.Group, error) {
	if tenantID == "" {
		return nil, model.ErrMissingTenant
	}
	if customer.Assigned() {
		e.log.Error("coin toss requested for already assigned customer",
			zap.String("tenant_id", tenantID),
			zap.Uint("customer_id", customer.ID))
		return nil, model.ErrGroupAlreadyAssigned
	}

	low, high, err := e.bounds(tx, tenantID)
	if err != nil {
		return nil, err
	}

	value := e.source.Draw(low, high)

	var group model.Group
	err = tx.Where("tenant_id = ? AND lower_bound <= ? AND upper_bound >= ?", tenantID, value, value).
		First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		e.log.Error("no group contains drawn value",
			zap.String("tenant_id", tenantID),
			zap.Int("value", value),
			zap.Int("low", low),
			zap.Int("high", high))
		return nil, fmt.Errorf("value %d in [%d,%d]: %w", value, low, high, model.ErrInconsistentPartition)
	}
	if err != nil {
		return nil, err
	}

	customer.GroupID = &group.ID
	customer.Group = &group

	e.log.Info("coin toss completed",
		zap.String("tenant_id", tenantID),
		zap.Uint("customer_id", customer.ID),
		zap.String("group", group.Label),
		zap.Int("value", value))

	return &group, nil
}

// bounds returns the inclusive draw domain [min lower bound, max upper
// bound] over the tenant's groups. Never cached.
func (e *Engine) bounds(tx *gorm.DB, tenantID string) (int, int, error) {
	var row struct {
		Low  *int
		High *int
	}
	err := tx.Model(&model.Group{}).
		Select("MIN(lower_bound) AS low, MAX(upper_bound) AS high").
		Where("tenant_id = ?", tenantID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	if row.Low == nil || row.High == nil {
		return 0, 0, fmt.Errorf("tenant has no groups: %w", model.ErrInconsistentPartition)
	}
	return *row.Low, *row.High, nil
}
