// Package handler shapes HTTP requests and responses. All business rules
// live in internal/store and internal/model; handlers bind, delegate, and
// map error kinds to client-visible statuses.
package handler

import (
	"errors"
	"net/http"

	"cointoss-service/internal/model"
	"cointoss-service/internal/store"
)

// Handler carries the store shared by all route handlers.
type Handler struct {
	store *store.Store
}

// New returns a handler backed by the given store.
func New(s *store.Store) *Handler {
	return &Handler{store: s}
}

// statusFor maps a core error kind to an HTTP status. Every kind must stay
// distinguishable at the transport boundary: validation failures are 400,
// missing records 404, conflicts (duplicates, existing project, concurrent
// modification) 409, and everything else a server fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInsufficientGroups),
		errors.Is(err, model.ErrDuplicateGroupLabel),
		errors.Is(err, model.ErrInvertedGroupBounds),
		errors.Is(err, model.ErrNonContiguousGroups),
		errors.Is(err, model.ErrDuplicateFieldName),
		errors.Is(err, model.ErrInvalidCustomerNumber),
		errors.Is(err, model.ErrInvalidUserData),
		errors.Is(err, model.ErrMissingTenant):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrProjectNotFound),
		errors.Is(err, model.ErrCustomerNotFound),
		errors.Is(err, model.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrProjectExists),
		errors.Is(err, model.ErrDuplicateCustomerNumber),
		errors.Is(err, model.ErrDuplicateLogin),
		errors.Is(err, model.ErrAssignmentConflict),
		errors.Is(err, model.ErrGroupVersionConflict):
		return http.StatusConflict
	default:
		// Includes ErrGroupAlreadyAssigned and ErrInconsistentPartition:
		// invariant violations surface as server faults, never as normal
		// business outcomes.
		return http.StatusInternalServerError
	}
}

// kindFor names the error kind for metrics.
func kindFor(err error) string {
	for _, k := range []struct {
		err  error
		name string
	}{
		{model.ErrInsufficientGroups, "insufficient_groups"},
		{model.ErrDuplicateGroupLabel, "duplicate_group_label"},
		{model.ErrInvertedGroupBounds, "inverted_group_bounds"},
		{model.ErrNonContiguousGroups, "non_contiguous_groups"},
		{model.ErrDuplicateFieldName, "duplicate_field_name"},
		{model.ErrInvalidCustomerNumber, "invalid_customer_number"},
		{model.ErrDuplicateCustomerNumber, "duplicate_customer_number"},
		{model.ErrInvalidUserData, "invalid_user_data"},
		{model.ErrDuplicateLogin, "duplicate_login"},
		{model.ErrProjectExists, "project_exists"},
		{model.ErrProjectNotFound, "project_not_found"},
		{model.ErrCustomerNotFound, "customer_not_found"},
		{model.ErrUserNotFound, "user_not_found"},
		{model.ErrGroupAlreadyAssigned, "group_already_assigned"},
		{model.ErrInconsistentPartition, "inconsistent_partition"},
		{model.ErrAssignmentConflict, "assignment_conflict"},
		{model.ErrGroupVersionConflict, "group_version_conflict"},
		{model.ErrMissingTenant, "missing_tenant"},
	} {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
