package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cointoss-service/internal/model"
)

// fixedSource always draws the same value.
type fixedSource struct{ value int }

func (f fixedSource) Draw(low, high int) int { return f.value }

// countingSource counts how often it is asked to draw.
type countingSource struct {
	value int
	calls int
}

func (c *countingSource) Draw(low, high int) int {
	c.calls++
	return c.value
}

// recordingSource remembers the bounds it was called with.
type recordingSource struct {
	value     int
	low, high int
}

func (r *recordingSource) Draw(low, high int) int {
	r.low, r.high = low, high
	return r.value
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&model.Group{}, &model.Customer{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func seedGroups(t *testing.T, db *gorm.DB, tenantID string, gs ...model.Group) []model.Group {
	for i := range gs {
		gs[i].TenantID = tenantID
		if err := db.Create(&gs[i]).Error; err != nil {
			t.Fatalf("Failed to seed group: %v", err)
		}
	}
	return gs
}

func TestTossAssignsMatchingGroup(t *testing.T) {
	db := setupTestDB(t)
	seedGroups(t, db, "t1",
		model.Group{Label: "control", LowerBound: 1, UpperBound: 10},
		model.Group{Label: "treatment", LowerBound: 11, UpperBound: 20},
	)

	engine := New(fixedSource{value: 15}, zap.NewNop())
	customer := &model.Customer{}

	group, err := engine.Toss(db, "t1", customer)
	require.NoError(t, err)
	assert.Equal(t, "treatment", group.Label)
	assert.True(t, group.Contains(15))
	require.NotNil(t, customer.GroupID)
	assert.Equal(t, group.ID, *customer.GroupID)
}

func TestTossUsesLiveBounds(t *testing.T) {
	db := setupTestDB(t)
	seedGroups(t, db, "t1",
		model.Group{Label: "control", LowerBound: 5, UpperBound: 14},
		model.Group{Label: "treatment", LowerBound: 15, UpperBound: 30},
	)

	source := &recordingSource{value: 5}
	engine := New(source, zap.NewNop())

	_, err := engine.Toss(db, "t1", &model.Customer{})
	require.NoError(t, err)
	assert.Equal(t, 5, source.low)
	assert.Equal(t, 30, source.high)
}

func TestTossIgnoresOtherTenantsGroups(t *testing.T) {
	db := setupTestDB(t)
	seedGroups(t, db, "t1",
		model.Group{Label: "control", LowerBound: 1, UpperBound: 10},
		model.Group{Label: "treatment", LowerBound: 11, UpperBound: 20},
	)
	// A foreign tenant with wider bounds must not widen t1's domain.
	seedGroups(t, db, "t2",
		model.Group{Label: "control", LowerBound: -100, UpperBound: 0},
		model.Group{Label: "treatment", LowerBound: 1, UpperBound: 100},
	)

	source := &recordingSource{value: 3}
	engine := New(source, zap.NewNop())

	group, err := engine.Toss(db, "t1", &model.Customer{})
	require.NoError(t, err)
	assert.Equal(t, 1, source.low)
	assert.Equal(t, 20, source.high)
	assert.Equal(t, "control", group.Label)
}

func TestTossRejectsAssignedCustomer(t *testing.T) {
	db := setupTestDB(t)
	gs := seedGroups(t, db, "t1",
		model.Group{Label: "control", LowerBound: 1, UpperBound: 10},
		model.Group{Label: "treatment", LowerBound: 11, UpperBound: 20},
	)

	source := &countingSource{value: 3}
	engine := New(source, zap.NewNop())
	customer := &model.Customer{GroupID: &gs[0].ID}

	_, err := engine.Toss(db, "t1", customer)
	assert.ErrorIs(t, err, model.ErrGroupAlreadyAssigned)
	assert.Equal(t, 0, source.calls, "no draw may happen for an assigned customer")
	assert.Equal(t, gs[0].ID, *customer.GroupID, "assignment must stay unchanged")
}

func TestTossInconsistentPartition(t *testing.T) {
	db := setupTestDB(t)
	// Damaged data: a gap between the groups. Validation would reject this
	// set, so hitting it at draw time is corruption.
	seedGroups(t, db, "t1",
		model.Group{Label: "control", LowerBound: 1, UpperBound: 10},
		model.Group{Label: "treatment", LowerBound: 15, UpperBound: 20},
	)

	source := &countingSource{value: 12}
	engine := New(source, zap.NewNop())
	customer := &model.Customer{}

	_, err := engine.Toss(db, "t1", customer)
	assert.ErrorIs(t, err, model.ErrInconsistentPartition)
	assert.Equal(t, 1, source.calls, "no second draw against a damaged partition")
	assert.Nil(t, customer.GroupID)
}

func TestTossWithoutGroups(t *testing.T) {
	db := setupTestDB(t)
	engine := New(fixedSource{value: 1}, zap.NewNop())

	_, err := engine.Toss(db, "t1", &model.Customer{})
	assert.ErrorIs(t, err, model.ErrInconsistentPartition)
}

func TestTossRequiresTenant(t *testing.T) {
	db := setupTestDB(t)
	engine := New(fixedSource{value: 1}, zap.NewNop())

	_, err := engine.Toss(db, "", &model.Customer{})
	assert.ErrorIs(t, err, model.ErrMissingTenant)
}

// TestTossDistribution checks that group frequencies follow the groups'
// relative widths when drawing uniformly.
func TestTossDistribution(t *testing.T) {
	db := setupTestDB(t)
	seedGroups(t, db, "t1",
		model.Group{Label: "narrow", LowerBound: 1, UpperBound: 10},
		model.Group{Label: "wide", LowerBound: 11, UpperBound: 40},
	)

	engine := New(UniformSource{}, zap.NewNop())

	const draws = 2000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		group, err := engine.Toss(db, "t1", &model.Customer{})
		require.NoError(t, err)
		counts[group.Label]++
	}

	assert.Equal(t, draws, counts["narrow"]+counts["wide"])
	// narrow covers 25% of the domain; allow a generous tolerance.
	assert.InDelta(t, draws/4, counts["narrow"], draws/8)
}
