package model

import "errors"

// Sentinel errors for the core domain. Handlers map these to HTTP statuses
// with errors.Is; everything not listed here is treated as a server fault.

// Project validation errors - the write is rejected in full.
var (
	// ErrInsufficientGroups is returned when a project carries fewer than two groups.
	ErrInsufficientGroups = errors.New("at least two groups are required")

	// ErrDuplicateGroupLabel is returned when two groups of one project share a label.
	ErrDuplicateGroupLabel = errors.New("group label used more than once")

	// ErrInvertedGroupBounds is returned when a group's lower bound is not below its upper bound.
	ErrInvertedGroupBounds = errors.New("invalid group bounds: lower bound >= upper bound")

	// ErrNonContiguousGroups is returned when the groups do not tile a single
	// contiguous integer interval (gap or overlap between adjacent groups).
	ErrNonContiguousGroups = errors.New("invalid group bounds: groups are not contiguous")

	// ErrDuplicateFieldName is returned when two field definitions share a name.
	ErrDuplicateFieldName = errors.New("field definition name used more than once")
)

// Identity validation errors.
var (
	// ErrInvalidCustomerNumber is returned when a customer number does not
	// match the required format (3 digits, 1 letter, 6 digits).
	ErrInvalidCustomerNumber = errors.New("invalid customer number")

	// ErrDuplicateCustomerNumber is returned when a customer number is already
	// taken within the tenant.
	ErrDuplicateCustomerNumber = errors.New("customer number already taken")

	// ErrInvalidUserData is returned when a user's login or role is blank.
	ErrInvalidUserData = errors.New("login and role must not be blank")

	// ErrDuplicateLogin is returned when a login is already taken within the tenant.
	ErrDuplicateLogin = errors.New("login already taken")
)

// Existence errors.
var (
	// ErrProjectExists is returned on a second project creation for one tenant.
	ErrProjectExists = errors.New("a project already exists for this tenant")

	// ErrProjectNotFound is returned when no project exists for the tenant.
	ErrProjectNotFound = errors.New("project not found")

	// ErrCustomerNotFound is returned when a customer id or number does not
	// resolve within the tenant.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrUserNotFound is returned when a user id does not resolve within the tenant.
	ErrUserNotFound = errors.New("user not found")
)

// Assignment errors.
var (
	// ErrGroupAlreadyAssigned is returned when a coin toss is requested for a
	// customer that already has a group. The assignment happens at most once;
	// hitting this error means the calling discipline is broken.
	ErrGroupAlreadyAssigned = errors.New("group already assigned")

	// ErrInconsistentPartition is returned when a drawn value resolves to no
	// group. The stored groups violate the partition invariant; the operation
	// must fail without a second draw.
	ErrInconsistentPartition = errors.New("no group found for drawn value: inconsistent group data")

	// ErrAssignmentConflict is returned when a concurrent transaction assigned
	// the customer's group first. The whole unit of work may be retried; a
	// retry performs a fresh draw.
	ErrAssignmentConflict = errors.New("concurrent group assignment detected")

	// ErrGroupVersionConflict is returned when a group row was modified by a
	// concurrent transaction. Retryable.
	ErrGroupVersionConflict = errors.New("group was modified concurrently")
)

// ErrMissingTenant is returned when a tenant-scoped operation runs without a
// tenant identifier.
var ErrMissingTenant = errors.New("tenant id is required")
