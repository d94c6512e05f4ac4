package retention

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Scanner Tests
// =============================================================================

func TestScanner_Scan_CombinesOlderProductionAndPreviews(t *testing.T) {
	lister := &fakeLister{
		production: []Deployment{
			{ID: "prod-3", Environment: "production", CreatedOn: "2026-03-01T00:00:00Z"},
			{ID: "prod-2", Environment: "production", CreatedOn: "2026-02-01T00:00:00Z"},
			{ID: "prod-1", Environment: "production", CreatedOn: "2026-01-01T00:00:00Z"},
		},
		previews: []Deployment{
			{ID: "prev-2", Environment: "preview", CreatedOn: "2026-02-15T00:00:00Z"},
			{ID: "prev-1", Environment: "preview", CreatedOn: "2026-01-15T00:00:00Z"},
		},
	}
	scanner := NewScanner(lister, nil)

	candidates, err := scanner.Scan(context.Background(), "prod-3")
	require.NoError(t, err)

	// Older production first, then previews, newest first within each group.
	ids := make([]string, 0, len(candidates))
	for _, d := range candidates {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"prod-2", "prod-1", "prev-2", "prev-1"}, ids)
}

func TestScanner_Scan_NeverIncludesKeepID(t *testing.T) {
	// keep_id excluded even when the listings misreport it outside the
	// newest production slot.
	lister := &fakeLister{
		production: []Deployment{
			{ID: "prod-2", Environment: "production", CreatedOn: "2026-02-01T00:00:00Z"},
			{ID: "keep", Environment: "production", CreatedOn: "2026-01-01T00:00:00Z"},
		},
		previews: []Deployment{
			{ID: "keep", Environment: "preview", CreatedOn: "2026-01-20T00:00:00Z"},
			{ID: "prev-1", Environment: "preview", CreatedOn: "2026-01-15T00:00:00Z"},
		},
	}
	scanner := NewScanner(lister, nil)

	candidates, err := scanner.Scan(context.Background(), "keep")
	require.NoError(t, err)

	for _, d := range candidates {
		assert.NotEqual(t, "keep", d.ID)
	}
	assert.Len(t, candidates, 2)
}

func TestScanner_Scan_SkipsEntriesWithoutID(t *testing.T) {
	lister := &fakeLister{
		production: []Deployment{
			{ID: "prod-2", Environment: "production", CreatedOn: "2026-02-01T00:00:00Z"},
			{Environment: "production", CreatedOn: "2026-01-10T00:00:00Z"},
			{ID: "prod-1", Environment: "production", CreatedOn: "2026-01-01T00:00:00Z"},
		},
		previews: []Deployment{
			{Environment: "preview", CreatedOn: "2026-01-15T00:00:00Z"},
			{ID: "prev-1", Environment: "preview", CreatedOn: "2026-01-05T00:00:00Z"},
		},
	}
	scanner := NewScanner(lister, nil)

	candidates, err := scanner.Scan(context.Background(), "prod-2")
	require.NoError(t, err)

	ids := make([]string, 0, len(candidates))
	for _, d := range candidates {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"prod-1", "prev-1"}, ids)
}

func TestScanner_Scan_EmptyWhenOnlyKeepRemains(t *testing.T) {
	lister := &fakeLister{
		production: []Deployment{
			{ID: "keep", Environment: "production", CreatedOn: "2026-02-01T00:00:00Z"},
		},
	}
	scanner := NewScanner(lister, nil)

	candidates, err := scanner.Scan(context.Background(), "keep")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestScanner_Scan_EmptyProduction(t *testing.T) {
	lister := &fakeLister{
		previews: []Deployment{
			{ID: "prev-1", Environment: "preview", CreatedOn: "2026-01-15T00:00:00Z"},
		},
	}
	scanner := NewScanner(lister, nil)

	candidates, err := scanner.Scan(context.Background(), "keep")
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Equal(t, "prev-1", candidates[0].ID)
}

func TestScanner_Scan_ListErrorPropagates(t *testing.T) {
	lister := &fakeLister{err: errors.New("api unreachable")}
	scanner := NewScanner(lister, nil)

	_, err := scanner.Scan(context.Background(), "keep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list production deployments")
}
