package featureflags

import (
	"testing"

	"campusboard/internal/models"

	"github.com/stretchr/testify/assert"
)

func student(id uint) models.Caller { return models.Caller{UserID: id, Role: models.RoleStudent} }

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, student(1)), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, student(1)), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	assert.True(t, m.Enabled("always", student(1)))
	assert.True(t, m.Enabled("always", models.Caller{}))
	assert.False(t, m.Enabled("never", student(1)))
	assert.False(t, m.Enabled("junk", student(1)))

	first := m.Enabled("canary", student(42))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", student(42)), "rollout must be deterministic per user")
	}
	assert.False(t, m.Enabled("canary", models.Caller{}), "percentage rollout requires a user")
}

func TestEnabled_RoleTargeting(t *testing.T) {
	m := NewManager("realtime_feed=roles:faculty|Admin")

	assert.True(t, m.Enabled(RealtimeFeed, models.Caller{UserID: 1, Role: models.RoleFaculty}))
	assert.True(t, m.Enabled(RealtimeFeed, models.Caller{UserID: 2, Role: models.RoleAdmin}))
	assert.False(t, m.Enabled(RealtimeFeed, student(3)))
	assert.False(t, m.Enabled(RealtimeFeed, models.Caller{Role: models.RoleFaculty}))
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, m.Raw())

	snap := m.Snapshot(student(123))
	assert.Len(t, snap, 3)
	assert.True(t, snap["x"])
	assert.False(t, snap["z"])
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(RealtimeFeed, student(1)))
	assert.Empty(t, m.Raw())
	assert.Empty(t, m.Snapshot(student(1)))
}
