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

// CreateCustomer creates a customer record. If the participation reason is
// "participation", the coin toss runs during creation and the response
// carries the assigned group.
func (h *Handler) CreateCustomer(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCustomerOperation("create")
	tenantID := middleware.TenantFromContext(c)

	var customer model.Customer
	if err := c.Bind(&customer); err != nil {
		log.Error("Failed to parse customer creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := h.store.CreateCustomer(tenantID, &customer); err != nil {
		log.Error("Failed to create customer", zap.String("tenant_id", tenantID), zap.Error(err))
		prometheus.RecordValidationError(kindFor(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	if customer.Assigned() && customer.Group != nil {
		prometheus.RecordCoinToss(customer.Group.Label)
	}

	log.Info("Customer created",
		zap.String("tenant_id", tenantID),
		zap.Uint("id", customer.ID),
		zap.String("customer_number", customer.CustomerNumber),
		zap.Bool("assigned", customer.Assigned()))

	return c.JSON(http.StatusCreated, customer)
}

// UpdateCustomer replaces a customer's data. If the update sets the reason
// to participation and no group is assigned yet, the coin toss runs now;
// an existing assignment is never changed.
func (h *Handler) UpdateCustomer(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCustomerOperation("update")
	tenantID := middleware.TenantFromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		log.Error("Invalid customer ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid customer ID"})
	}

	var data model.Customer
	if err := c.Bind(&data); err != nil {
		log.Error("Failed to parse customer update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("update")(time.Now())

	customer, tossed, err := h.store.UpdateCustomer(tenantID, uint(id), &data)
	if err != nil {
		log.Error("Failed to update customer",
			zap.String("tenant_id", tenantID),
			zap.Uint64("id", id),
			zap.Error(err))
		prometheus.RecordValidationError(kindFor(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	if tossed && customer.Group != nil {
		prometheus.RecordCoinToss(customer.Group.Label)
	}

	log.Info("Customer updated",
		zap.String("tenant_id", tenantID),
		zap.Uint("id", customer.ID),
		zap.Bool("assigned", customer.Assigned()))

	return c.JSON(http.StatusOK, customer)
}

// GetCustomer loads a customer by id, including the assigned group.
func (h *Handler) GetCustomer(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCustomerOperation("get")
	tenantID := middleware.TenantFromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		log.Error("Invalid customer ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid customer ID"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	customer, err := h.store.GetCustomer(tenantID, uint(id))
	if err != nil {
		log.Error("Customer not found", zap.String("tenant_id", tenantID), zap.Uint64("id", id), zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, customer)
}

// GetCustomerByNumber loads a customer by customer number (query parameter
// "number", case-insensitive).
func (h *Handler) GetCustomerByNumber(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCustomerOperation("get")
	tenantID := middleware.TenantFromContext(c)

	number := c.QueryParam("number")
	if number == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "number is required"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	customer, err := h.store.GetCustomerByNumber(tenantID, number)
	if err != nil {
		log.Error("Customer not found",
			zap.String("tenant_id", tenantID),
			zap.String("customer_number", number),
			zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, customer)
}

// SearchCustomers performs a substring search over family name and customer
// number. Up to 101 rows are returned; clients seeing more than 100 should
// suggest a narrower term.
func (h *Handler) SearchCustomers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCustomerOperation("search")
	tenantID := middleware.TenantFromContext(c)

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	customers, err := h.store.SearchCustomers(tenantID, c.QueryParam("term"))
	if err != nil {
		log.Error("Customer search failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, customers)
}

// CustomersPerGroup reports the number of customers per group, including
// groups without customers.
func (h *Handler) CustomersPerGroup(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordCustomerOperation("report")
	tenantID := middleware.TenantFromContext(c)

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	counts, err := h.store.CountPerGroup(tenantID)
	if err != nil {
		log.Error("Customer report failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return c.JSON(statusFor(err), echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, counts)
}
