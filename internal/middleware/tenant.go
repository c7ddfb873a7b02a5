package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cointoss-service/pkg/logger"
)

// TenantKey is the context key under which the resolved tenant id is stored.
const TenantKey = "tenant_id"

// TenantMiddleware resolves the tenant identifier from the URL path and
// stores it in the request context before any tenant-scoped handler runs.
// A request without a tenant id is rejected; handlers never fall back to
// ambient or global tenant state.
func TenantMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID := c.Param("tenant_id")
		if tenantID == "" {
			log := logger.FromContext(c)
			log.Error("Missing tenant id in request path")
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant id is required"})
		}

		c.Set(TenantKey, tenantID)

		logger.FromContext(c).Debug("Request tenant resolved", zap.String("tenant_id", tenantID))
		return next(c)
	}
}

// TenantFromContext returns the tenant id stored by TenantMiddleware, or ""
// if none was resolved.
func TenantFromContext(c echo.Context) string {
	tenantID, _ := c.Get(TenantKey).(string)
	return tenantID
}
