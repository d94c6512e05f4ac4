package retention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// SortNewestFirst Tests
// =============================================================================

func TestSortNewestFirst_OrdersDescending(t *testing.T) {
	deployments := []Deployment{
		{ID: "b", CreatedOn: "2026-01-02T00:00:00Z"},
		{ID: "c", CreatedOn: "2026-01-03T00:00:00Z"},
		{ID: "a", CreatedOn: "2026-01-01T00:00:00Z"},
	}

	SortNewestFirst(deployments)

	assert.Equal(t, "c", deployments[0].ID)
	assert.Equal(t, "b", deployments[1].ID)
	assert.Equal(t, "a", deployments[2].ID)
}

func TestSortNewestFirst_MissingTimestampsSortLast(t *testing.T) {
	deployments := []Deployment{
		{ID: "no-timestamp"},
		{ID: "old", CreatedOn: "2025-06-01T00:00:00Z"},
		{ID: "new", CreatedOn: "2026-01-01T00:00:00Z"},
	}

	SortNewestFirst(deployments)

	assert.Equal(t, "new", deployments[0].ID)
	assert.Equal(t, "old", deployments[1].ID)
	assert.Equal(t, "no-timestamp", deployments[2].ID)
}

func TestSortNewestFirst_StableForEqualTimestamps(t *testing.T) {
	deployments := []Deployment{
		{ID: "first", CreatedOn: "2026-01-01T00:00:00Z"},
		{ID: "second", CreatedOn: "2026-01-01T00:00:00Z"},
		{ID: "third", CreatedOn: "2026-01-01T00:00:00Z"},
	}

	SortNewestFirst(deployments)

	assert.Equal(t, "first", deployments[0].ID)
	assert.Equal(t, "second", deployments[1].ID)
	assert.Equal(t, "third", deployments[2].ID)
}

func TestSortNewestFirst_Empty(t *testing.T) {
	deployments := []Deployment{}
	SortNewestFirst(deployments)
	assert.Empty(t, deployments)
}
