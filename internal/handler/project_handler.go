package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cointoss-service/internal/middleware"
	"cointoss-service/internal/model"
	"cointoss-service/pkg/logger"
	"cointoss-service/prometheus"
)

// GetProject loads the tenant's project. Each tenant has at most one.
func (h *Handler) GetProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProjectOperation("get")
	tenantID := middleware.TenantFromContext(c)

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	project, err := h.store.GetProject(tenantID)
	if err != nil {
		log.Error("Failed to load project", zap.String("tenant_id", tenantID), zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, project)
}

// CreateProject creates the tenant's project. The group partition and the
// field definitions are validated before anything is persisted; a second
// creation for the same tenant is rejected.
func (h *Handler) CreateProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProjectOperation("create")
	tenantID := middleware.TenantFromContext(c)

	var project model.Project
	if err := c.Bind(&project); err != nil {
		log.Error("Failed to parse project creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := h.store.CreateProject(tenantID, &project); err != nil {
		log.Error("Failed to create project", zap.String("tenant_id", tenantID), zap.Error(err))
		prometheus.RecordValidationError(kindFor(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	log.Info("Project created",
		zap.String("tenant_id", tenantID),
		zap.String("name", project.Name),
		zap.Uint("id", project.ID),
		zap.Int("groups", len(project.Groups)))

	return c.JSON(http.StatusCreated, project)
}

// UpdateProject replaces the tenant's project state, including the full
// group and field definition lists.
func (h *Handler) UpdateProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProjectOperation("update")
	tenantID := middleware.TenantFromContext(c)

	var incoming model.Project
	if err := c.Bind(&incoming); err != nil {
		log.Error("Failed to parse project update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("update")(time.Now())

	project, err := h.store.UpdateProject(tenantID, &incoming)
	if err != nil {
		log.Error("Failed to update project", zap.String("tenant_id", tenantID), zap.Error(err))
		prometheus.RecordValidationError(kindFor(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	log.Info("Project updated",
		zap.String("tenant_id", tenantID),
		zap.Uint("id", project.ID),
		zap.Int("groups", len(project.Groups)))

	return c.JSON(http.StatusOK, project)
}
