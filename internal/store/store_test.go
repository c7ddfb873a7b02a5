package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cointoss-service/internal/assign"
	"cointoss-service/internal/model"
)

// fixedSource always draws the same value so assignments are predictable.
type fixedSource struct{ value int }

func (f fixedSource) Draw(low, high int) int { return f.value }

func setupTestStore(t *testing.T, source assign.Source) *Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	err = db.AutoMigrate(
		&model.Project{},
		&model.Group{},
		&model.FieldDefinition{},
		&model.Customer{},
		&model.AdditionalInfo{},
		&model.User{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return New(db, assign.New(source, zap.NewNop()))
}

func testProject() *model.Project {
	return &model.Project{
		Name:        "Pilot Study",
		Description: "Randomized pilot",
		Groups: []model.Group{
			{Label: "control", LowerBound: 1, UpperBound: 10},
			{Label: "treatment", LowerBound: 11, UpperBound: 20},
		},
		FieldDefinitions: []model.FieldDefinition{
			{Name: "office", FieldType: "string"},
		},
	}
}

func createProjectOrFail(t *testing.T, s *Store, tenantID string) *model.Project {
	project := testProject()
	if err := s.CreateProject(tenantID, project); err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	return project
}

func TestCreateProject(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})

	project := testProject()
	require.NoError(t, s.CreateProject("t1", project))

	loaded, err := s.GetProject("t1")
	require.NoError(t, err)
	assert.Equal(t, "Pilot Study", loaded.Name)
	require.Len(t, loaded.Groups, 2)
	assert.Equal(t, "control", loaded.Groups[0].Label)
	assert.Equal(t, "treatment", loaded.Groups[1].Label)
	require.Len(t, loaded.FieldDefinitions, 1)
}

func TestCreateProjectTwiceFails(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})
	createProjectOrFail(t, s, "t1")

	err := s.CreateProject("t1", testProject())
	assert.ErrorIs(t, err, model.ErrProjectExists)
}

func TestCreateProjectPerTenant(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})
	createProjectOrFail(t, s, "t1")

	// The same configuration under a different tenant is fine.
	require.NoError(t, s.CreateProject("t2", testProject()))

	_, err := s.GetProject("t1")
	assert.NoError(t, err)
	_, err = s.GetProject("t2")
	assert.NoError(t, err)
}

func TestCreateProjectOverlappingGroups(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})

	project := &model.Project{
		Name: "Broken",
		Groups: []model.Group{
			{Label: "control", LowerBound: 1, UpperBound: 10},
			{Label: "treatment", LowerBound: 5, UpperBound: 20},
		},
	}
	err := s.CreateProject("t1", project)
	assert.ErrorIs(t, err, model.ErrNonContiguousGroups)

	// Nothing may be persisted on a rejected write.
	_, err = s.GetProject("t1")
	assert.ErrorIs(t, err, model.ErrProjectNotFound)

	var count int64
	require.NoError(t, s.db.Model(&model.Group{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateProjectValidationErrors(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})

	tests := []struct {
		name    string
		mutate  func(*model.Project)
		wantErr error
	}{
		{
			name:    "single group",
			mutate:  func(p *model.Project) { p.Groups = p.Groups[:1] },
			wantErr: model.ErrInsufficientGroups,
		},
		{
			name:    "duplicate label",
			mutate:  func(p *model.Project) { p.Groups[1].Label = "control" },
			wantErr: model.ErrDuplicateGroupLabel,
		},
		{
			name: "inverted bounds",
			mutate: func(p *model.Project) {
				p.Groups[0].LowerBound = 10
				p.Groups[0].UpperBound = 1
			},
			wantErr: model.ErrInvertedGroupBounds,
		},
		{
			name:    "gap",
			mutate:  func(p *model.Project) { p.Groups[1].LowerBound = 13 },
			wantErr: model.ErrNonContiguousGroups,
		},
		{
			name: "duplicate field name",
			mutate: func(p *model.Project) {
				p.FieldDefinitions = append(p.FieldDefinitions, model.FieldDefinition{Name: "office"})
			},
			wantErr: model.ErrDuplicateFieldName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := testProject()
			tt.mutate(project)
			err := s.CreateProject("t1", project)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdateProjectNotFound(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})

	_, err := s.UpdateProject("t1", testProject())
	assert.ErrorIs(t, err, model.ErrProjectNotFound)
}

func TestUpdateProjectReplacesChildren(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})
	createProjectOrFail(t, s, "t1")

	current, err := s.GetProject("t1")
	require.NoError(t, err)

	// Keep the first group (renamed, widened), drop the second, add a new one.
	incoming := &model.Project{
		Name: "Pilot Study v2",
		Groups: []model.Group{
			{
				ID:         current.Groups[0].ID,
				Version:    current.Groups[0].Version,
				Label:      "control v2",
				LowerBound: 1,
				UpperBound: 50,
			},
			{Label: "treatment v2", LowerBound: 51, UpperBound: 100},
		},
		FieldDefinitions: []model.FieldDefinition{
			{Name: "region", FieldType: "string"},
			{Name: "cohort", FieldType: "number"},
		},
	}

	updated, err := s.UpdateProject("t1", incoming)
	require.NoError(t, err)
	assert.Equal(t, "Pilot Study v2", updated.Name)
	require.Len(t, updated.Groups, 2)
	assert.Equal(t, "control v2", updated.Groups[0].Label)
	assert.Equal(t, current.Groups[0].ID, updated.Groups[0].ID)
	assert.Equal(t, current.Groups[0].Version+1, updated.Groups[0].Version)
	assert.Equal(t, "treatment v2", updated.Groups[1].Label)
	require.Len(t, updated.FieldDefinitions, 2)

	// The dropped group is gone from storage.
	var count int64
	require.NoError(t, s.db.Model(&model.Group{}).Where("tenant_id = ?", "t1").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestUpdateProjectVersionConflict(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})
	createProjectOrFail(t, s, "t1")

	current, err := s.GetProject("t1")
	require.NoError(t, err)

	incoming := &model.Project{
		Groups: []model.Group{
			{
				ID:         current.Groups[0].ID,
				Version:    current.Groups[0].Version + 7, // stale
				Label:      "control",
				LowerBound: 1,
				UpperBound: 10,
			},
			{Label: "treatment", LowerBound: 11, UpperBound: 20},
		},
	}

	_, err = s.UpdateProject("t1", incoming)
	assert.ErrorIs(t, err, model.ErrGroupVersionConflict)
}

func TestCreateCustomerParticipating(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 15})
	createProjectOrFail(t, s, "t1")

	customer := &model.Customer{
		GivenName:      "Ada",
		FamilyName:     "Lovelace",
		CustomerNumber: "123A567890",
		Reason:         model.ReasonParticipation,
		AdditionalInfo: []model.AdditionalInfo{{Key: "office", Value: "Berlin"}},
	}
	require.NoError(t, s.CreateCustomer("t1", customer))

	// The number is stored lower-case, the draw (15) lands in "treatment".
	loaded, err := s.GetCustomer("t1", customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "123a567890", loaded.CustomerNumber)
	require.True(t, loaded.Assigned())
	require.NotNil(t, loaded.Group)
	assert.Equal(t, "treatment", loaded.Group.Label)
	assert.True(t, loaded.Group.Contains(15))
	require.Len(t, loaded.AdditionalInfo, 1)
	assert.Equal(t, "Berlin", loaded.AdditionalInfo[0].Value)
}

func TestCreateCustomerDeclinedGetsNoGroup(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 15})
	createProjectOrFail(t, s, "t1")

	customer := &model.Customer{
		CustomerNumber: "123a567890",
		Reason:         "declined_by_customer",
	}
	require.NoError(t, s.CreateCustomer("t1", customer))

	loaded, err := s.GetCustomer("t1", customer.ID)
	require.NoError(t, err)
	assert.False(t, loaded.Assigned())
}

func TestCreateCustomerInvalidNumber(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 15})
	createProjectOrFail(t, s, "t1")

	for _, number := range []string{"123a56789", "13a56789", "123-567890"} {
		err := s.CreateCustomer("t1", &model.Customer{CustomerNumber: number})
		assert.ErrorIs(t, err, model.ErrInvalidCustomerNumber, "number %q", number)
	}
}

func TestCustomerNumberUniquePerTenant(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})
	createProjectOrFail(t, s, "t1")
	createProjectOrFail(t, s, "t2")

	require.NoError(t, s.CreateCustomer("t1", &model.Customer{CustomerNumber: "123a567890"}))

	// Same tenant: rejected, case-insensitively.
	err := s.CreateCustomer("t1", &model.Customer{CustomerNumber: "123A567890"})
	assert.ErrorIs(t, err, model.ErrDuplicateCustomerNumber)

	// Different tenant: fine.
	assert.NoError(t, s.CreateCustomer("t2", &model.Customer{CustomerNumber: "123a567890"}))
}

func TestUpdateCustomerSelfNoConflict(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})
	createProjectOrFail(t, s, "t1")

	customer := &model.Customer{
		GivenName:      "Ada",
		CustomerNumber: "123a567890",
	}
	require.NoError(t, s.CreateCustomer("t1", customer))

	// Re-submitting the same number for the same record must not
	// self-conflict.
	updated, tossed, err := s.UpdateCustomer("t1", customer.ID, &model.Customer{
		GivenName:      "Ada",
		FamilyName:     "Lovelace",
		CustomerNumber: "123a567890",
	})
	require.NoError(t, err)
	assert.False(t, tossed)
	assert.Equal(t, "Lovelace", updated.FamilyName)
}

func TestUpdateCustomerTriggersToss(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 7})
	createProjectOrFail(t, s, "t1")

	customer := &model.Customer{CustomerNumber: "123a567890", Reason: "declined_by_customer"}
	require.NoError(t, s.CreateCustomer("t1", customer))
	require.False(t, customer.Assigned())

	updated, tossed, err := s.UpdateCustomer("t1", customer.ID, &model.Customer{
		CustomerNumber: "123a567890",
		Reason:         model.ReasonParticipation,
	})
	require.NoError(t, err)
	assert.True(t, tossed)
	require.True(t, updated.Assigned())
	assert.Equal(t, "control", updated.Group.Label)
}

func TestUpdateCustomerNeverReassigns(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 7})
	createProjectOrFail(t, s, "t1")

	customer := &model.Customer{CustomerNumber: "123a567890", Reason: model.ReasonParticipation}
	require.NoError(t, s.CreateCustomer("t1", customer))
	require.NotNil(t, customer.GroupID)
	firstGroup := *customer.GroupID

	// A second update with unchanged participation must leave the group
	// untouched, even with a source that would now land elsewhere.
	s.engine = assign.New(fixedSource{value: 15}, zap.NewNop())
	updated, tossed, err := s.UpdateCustomer("t1", customer.ID, &model.Customer{
		CustomerNumber: "123a567890",
		Reason:         model.ReasonParticipation,
	})
	require.NoError(t, err)
	assert.False(t, tossed)
	require.NotNil(t, updated.GroupID)
	assert.Equal(t, firstGroup, *updated.GroupID)
}

func TestUpdateCustomerNotFound(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})
	createProjectOrFail(t, s, "t1")

	_, _, err := s.UpdateCustomer("t1", 4711, &model.Customer{CustomerNumber: "123a567890"})
	assert.ErrorIs(t, err, model.ErrCustomerNotFound)
}

func TestAssignGroupRejectsConcurrentAssignment(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 7})
	createProjectOrFail(t, s, "t1")

	customer := &model.Customer{CustomerNumber: "123a567890", Reason: model.ReasonParticipation}
	require.NoError(t, s.CreateCustomer("t1", customer))
	require.NotNil(t, customer.GroupID)
	won := *customer.GroupID

	// A transaction that loaded the customer as unassigned and drew its
	// own group now tries to write. The row is already taken, so the
	// guard must fail the write instead of overwriting.
	project, err := s.GetProject("t1")
	require.NoError(t, err)
	late := project.Groups[1].ID

	err = assignGroup(s.db, "t1", customer.ID, &late)
	assert.ErrorIs(t, err, model.ErrAssignmentConflict)

	// The winning assignment is unchanged.
	loaded, err := s.GetCustomer("t1", customer.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.GroupID)
	assert.Equal(t, won, *loaded.GroupID)
}

func TestCustomerTenantIsolation(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})
	createProjectOrFail(t, s, "t1")

	customer := &model.Customer{CustomerNumber: "123a567890"}
	require.NoError(t, s.CreateCustomer("t1", customer))

	// Guessing the numeric id from another tenant must not resolve.
	_, err := s.GetCustomer("t2", customer.ID)
	assert.ErrorIs(t, err, model.ErrCustomerNotFound)

	_, err = s.GetCustomerByNumber("t2", "123a567890")
	assert.ErrorIs(t, err, model.ErrCustomerNotFound)
}

func TestGetCustomerByNumberCaseInsensitive(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})
	createProjectOrFail(t, s, "t1")

	customer := &model.Customer{CustomerNumber: "123a567890"}
	require.NoError(t, s.CreateCustomer("t1", customer))

	loaded, err := s.GetCustomerByNumber("t1", "123A567890")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, loaded.ID)
}

func TestSearchCustomers(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})
	createProjectOrFail(t, s, "t1")
	createProjectOrFail(t, s, "t2")

	require.NoError(t, s.CreateCustomer("t1", &model.Customer{FamilyName: "Lovelace", CustomerNumber: "123a567890"}))
	require.NoError(t, s.CreateCustomer("t1", &model.Customer{FamilyName: "Hopper", CustomerNumber: "456b123456"}))
	require.NoError(t, s.CreateCustomer("t2", &model.Customer{FamilyName: "Lovelace", CustomerNumber: "789c123456"}))

	// Family name match, case-insensitive, tenant-scoped.
	results, err := s.SearchCustomers("t1", "LOVE")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Lovelace", results[0].FamilyName)

	// Customer number match.
	results, err = s.SearchCustomers("t1", "456b")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Hopper", results[0].FamilyName)

	// Empty term returns everything in the tenant.
	results, err = s.SearchCustomers("t1", "")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestCountPerGroup(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 7})
	createProjectOrFail(t, s, "t1")

	// Two participating customers land in "control" (draw 7); a declined
	// one lands nowhere.
	require.NoError(t, s.CreateCustomer("t1", &model.Customer{CustomerNumber: "123a567890", Reason: model.ReasonParticipation}))
	require.NoError(t, s.CreateCustomer("t1", &model.Customer{CustomerNumber: "123a567891", Reason: model.ReasonParticipation}))
	require.NoError(t, s.CreateCustomer("t1", &model.Customer{CustomerNumber: "123a567892", Reason: "declined_by_customer"}))

	counts, err := s.CountPerGroup("t1")
	require.NoError(t, err)
	require.Len(t, counts, 2)

	byLabel := map[string]int64{}
	for _, c := range counts {
		byLabel[c.Group] = c.Count
	}
	assert.EqualValues(t, 2, byLabel["control"])
	assert.EqualValues(t, 0, byLabel["treatment"], "empty groups must report zero")
}

func TestUserLifecycle(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})

	user := &model.User{Login: "jdoe", Role: "coordinator"}
	require.NoError(t, s.CreateUser("t1", user))
	require.NotZero(t, user.ID)

	// Duplicate login within the tenant.
	err := s.CreateUser("t1", &model.User{Login: "jdoe", Role: "analyst"})
	assert.ErrorIs(t, err, model.ErrDuplicateLogin)

	// Same login under another tenant is fine.
	assert.NoError(t, s.CreateUser("t2", &model.User{Login: "jdoe", Role: "analyst"}))

	// Blank fields are rejected.
	assert.ErrorIs(t, s.CreateUser("t1", &model.User{Login: "", Role: "analyst"}), model.ErrInvalidUserData)
	assert.ErrorIs(t, s.CreateUser("t1", &model.User{Login: "x", Role: " "}), model.ErrInvalidUserData)

	// A no-op update must not conflict with itself.
	updated, err := s.UpdateUser("t1", user.ID, &model.User{Login: "jdoe", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "admin", updated.Role)

	// Updating a missing user.
	_, err = s.UpdateUser("t1", 4711, &model.User{Login: "ghost", Role: "none"})
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	// Deleting twice is silently fine.
	require.NoError(t, s.DeleteUser("t1", user.ID))
	require.NoError(t, s.DeleteUser("t1", user.ID))

	users, err := s.ListUsers("t1")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestPlaceOrder(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})

	order := &Order{
		Project: testProject(),
		Users: []model.User{
			{Login: "jdoe", Role: "coordinator"},
			{Login: "asmith", Role: "analyst"},
		},
	}
	require.NoError(t, s.PlaceOrder("t1", order))

	placed, err := s.OrderPlaced("t1")
	require.NoError(t, err)
	assert.True(t, placed)

	users, err := s.ListUsers("t1")
	require.NoError(t, err)
	assert.Len(t, users, 2)

	// A second order for the same tenant is rejected.
	err = s.PlaceOrder("t1", &Order{Project: testProject()})
	assert.ErrorIs(t, err, model.ErrProjectExists)
}

func TestPlaceOrderIsAtomic(t *testing.T) {
	s := setupTestStore(t, fixedSource{value: 1})

	order := &Order{
		Project: testProject(),
		Users: []model.User{
			{Login: "jdoe", Role: "coordinator"},
			{Login: "jdoe", Role: "analyst"}, // duplicate login
		},
	}
	err := s.PlaceOrder("t1", order)
	assert.ErrorIs(t, err, model.ErrDuplicateLogin)

	// The project must not survive a failed order.
	placed, err := s.OrderPlaced("t1")
	require.NoError(t, err)
	assert.False(t, placed)
}
