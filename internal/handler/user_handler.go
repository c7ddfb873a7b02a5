package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cointoss-service/internal/middleware"
	"cointoss-service/internal/model"
	"cointoss-service/pkg/logger"
	"cointoss-service/prometheus"
)

// ListUsers returns all users of the tenant.
func (h *Handler) ListUsers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("list")
	tenantID := middleware.TenantFromContext(c)

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	users, err := h.store.ListUsers(tenantID)
	if err != nil {
		log.Error("Failed to list users", zap.String("tenant_id", tenantID), zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, users)
}

// GetUser loads a user by id.
func (h *Handler) GetUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("get")
	tenantID := middleware.TenantFromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		log.Error("Invalid user ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	user, err := h.store.GetUser(tenantID, uint(id))
	if err != nil {
		log.Error("User not found", zap.String("tenant_id", tenantID), zap.Uint64("id", id), zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, user)
}

// CreateUser creates a user. A client-supplied id is silently ignored.
func (h *Handler) CreateUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("create")
	tenantID := middleware.TenantFromContext(c)

	var user model.User
	if err := c.Bind(&user); err != nil {
		log.Error("Failed to parse user creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := h.store.CreateUser(tenantID, &user); err != nil {
		log.Error("Failed to create user", zap.String("tenant_id", tenantID), zap.Error(err))
		prometheus.RecordValidationError(kindFor(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	log.Info("User created",
		zap.String("tenant_id", tenantID),
		zap.Uint("id", user.ID),
		zap.String("login", user.Login))

	return c.JSON(http.StatusCreated, user)
}

// UpdateUser replaces a user's login and role. The body id, when present,
// must match the path id.
func (h *Handler) UpdateUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("update")
	tenantID := middleware.TenantFromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		log.Error("Invalid user ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	var user model.User
	if err := c.Bind(&user); err != nil {
		log.Error("Failed to parse user update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if user.ID != 0 && user.ID != uint(id) {
		log.Error("Conflicting user IDs in path and body",
			zap.Uint64("path_id", id),
			zap.Uint("body_id", user.ID))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "conflicting user IDs"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("update")(time.Now())

	updated, err := h.store.UpdateUser(tenantID, uint(id), &user)
	if err != nil {
		log.Error("Failed to update user",
			zap.String("tenant_id", tenantID),
			zap.Uint64("id", id),
			zap.Error(err))
		prometheus.RecordValidationError(kindFor(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, updated)
}

// DeleteUser removes a user. Deleting a missing id succeeds silently.
func (h *Handler) DeleteUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("delete")
	tenantID := middleware.TenantFromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		log.Error("Invalid user ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := h.store.DeleteUser(tenantID, uint(id)); err != nil {
		log.Error("Failed to delete user",
			zap.String("tenant_id", tenantID),
			zap.Uint64("id", id),
			zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	return c.NoContent(http.StatusOK)
}
