package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cointoss-service/internal/middleware"
	"cointoss-service/internal/store"
	"cointoss-service/pkg/logger"
	"cointoss-service/prometheus"
)

// PlaceOrder provisions a tenant: the project plus its initial users, in
// one transaction. A rejected order leaves nothing behind.
func (h *Handler) PlaceOrder(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOrderOperation("place")
	tenantID := middleware.TenantFromContext(c)

	var order store.Order
	if err := c.Bind(&order); err != nil {
		log.Error("Failed to parse order request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if order.Project == nil {
		log.Error("Order without project", zap.String("tenant_id", tenantID))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "project is required"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := h.store.PlaceOrder(tenantID, &order); err != nil {
		log.Error("Failed to place order", zap.String("tenant_id", tenantID), zap.Error(err))
		prometheus.RecordValidationError(kindFor(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	log.Info("Order placed",
		zap.String("tenant_id", tenantID),
		zap.Int("users", len(order.Users)))

	return c.NoContent(http.StatusCreated)
}

// CheckOrder reports whether the tenant id is already taken: 200 when an
// order exists for it, 404 when it is still free.
func (h *Handler) CheckOrder(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOrderOperation("check")
	tenantID := middleware.TenantFromContext(c)

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	placed, err := h.store.OrderPlaced(tenantID)
	if err != nil {
		log.Error("Failed to check order", zap.String("tenant_id", tenantID), zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	if !placed {
		return c.NoContent(http.StatusNotFound)
	}
	return c.NoContent(http.StatusOK)
}
