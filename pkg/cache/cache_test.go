package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartmann/staffing-recommender-go/pkg/models"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "cache.json"), zerolog.Nop())
}

func sampleOutput(id string) models.Output {
	return models.Output{
		AssignmentInfo: models.AssignmentResult{
			Feasible: true,
			Pairs: []models.ScoredCandidateRow{
				{
					CandidateRow: models.CandidateRow{
						EmployeeID: id,
						ClientID:   "C1",
					},
					AbnormalityLabel: models.LabelNormal,
					AbnormalityScore: -0.4,
				},
			},
			ObjectiveValue: -0.4,
		},
	}
}

func TestNormalizeOrderInvariance(t *testing.T) {
	a := models.HardConstraints{
		ForcedAssignments: [][2]string{{"E2", "C2"}, {"C1", "E1"}},
		ForcedEmployees:   []string{"E3", "E1"},
		BannedAssignments: [][2]string{{"C9", "E9"}},
	}
	b := models.HardConstraints{
		ForcedAssignments: [][2]string{{"E1", "C1"}, {"C2", "E2"}},
		ForcedEmployees:   []string{"E1", "E3"},
		BannedAssignments: [][2]string{{"E9", "C9"}},
	}

	assert.Equal(t, Normalize(a), Normalize(b))
	assert.Equal(t, Hash(a), Hash(b))
}

func TestNormalizeEmptyEqualsOmitted(t *testing.T) {
	empty := models.HardConstraints{
		ForcedAssignments: [][2]string{},
		ForcedEmployees:   []string{},
		ForcedClients:     []string{},
		BannedAssignments: [][2]string{},
	}

	assert.Equal(t, Normalize(models.HardConstraints{}), Normalize(empty))
	assert.Equal(t, Hash(models.HardConstraints{}), Hash(empty))
}

func TestNormalizeDistinctConstraintsDiffer(t *testing.T) {
	a := models.HardConstraints{ForcedEmployees: []string{"E1"}}
	b := models.HardConstraints{ForcedEmployees: []string{"E2"}}

	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	hc := models.HardConstraints{
		ForcedEmployees:   []string{"E3", "E1"},
		BannedAssignments: [][2]string{{"E2", "C1"}, {"E1", "C1"}},
	}

	Normalize(hc)

	assert.Equal(t, []string{"E3", "E1"}, hc.ForcedEmployees)
	assert.Equal(t, [][2]string{{"E2", "C1"}, {"E1", "C1"}}, hc.BannedAssignments)
}

func TestStoreAndLookup(t *testing.T) {
	c := newTestCache(t)
	hc := models.HardConstraints{ForcedAssignments: [][2]string{{"E1", "C1"}}}

	_, ok := c.Lookup(hc)
	assert.False(t, ok)

	c.Store(hc, sampleOutput("E1"))

	got, ok := c.Lookup(hc)
	require.True(t, ok)
	assert.Equal(t, sampleOutput("E1"), got)
}

func TestLookupMatchesReorderedConstraints(t *testing.T) {
	c := newTestCache(t)
	c.Store(models.HardConstraints{
		ForcedAssignments: [][2]string{{"E1", "C1"}, {"E2", "C2"}},
	}, sampleOutput("E1"))

	got, ok := c.Lookup(models.HardConstraints{
		ForcedAssignments: [][2]string{{"C2", "E2"}, {"C1", "E1"}},
	})
	require.True(t, ok)
	assert.Equal(t, sampleOutput("E1"), got)
}

func TestStoreIdempotent(t *testing.T) {
	c := newTestCache(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	hc := models.HardConstraints{ForcedEmployees: []string{"E1"}}

	c.Store(hc, sampleOutput("E1"))
	c.now = func() time.Time { return base.Add(time.Hour) }
	c.Store(hc, sampleOutput("E2"))

	history := c.History()
	require.Len(t, history, 1)
	assert.Equal(t, sampleOutput("E2"), history[0].Output)
	assert.Equal(t, base, history[0].CachedAt)
	assert.Equal(t, base.Add(time.Hour), history[0].LastAccess)
}

func TestLookupMovesEntryToEnd(t *testing.T) {
	c := newTestCache(t)
	first := models.HardConstraints{ForcedEmployees: []string{"E1"}}
	second := models.HardConstraints{ForcedEmployees: []string{"E2"}}

	c.Store(first, sampleOutput("E1"))
	c.Store(second, sampleOutput("E2"))

	_, ok := c.Lookup(first)
	require.True(t, ok)

	history := c.History()
	require.Len(t, history, 2)
	assert.Equal(t, Hash(second), history[0].ConstraintHash)
	assert.Equal(t, Hash(first), history[1].ConstraintHash)
}

func TestLookupAdvancesLastAccess(t *testing.T) {
	c := newTestCache(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	hc := models.HardConstraints{ForcedClients: []string{"C1"}}

	c.Store(hc, sampleOutput("E1"))
	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, ok := c.Lookup(hc)
	require.True(t, ok)

	history := c.History()
	require.Len(t, history, 1)
	assert.Equal(t, base, history[0].CachedAt)
	assert.Equal(t, base.Add(2*time.Hour), history[0].LastAccess)
}

func TestHistoryStoresNormalizedConstraints(t *testing.T) {
	c := newTestCache(t)
	c.Store(models.HardConstraints{
		ForcedAssignments: [][2]string{{"C1", "E1"}},
		ForcedEmployees:   []string{},
	}, sampleOutput("E1"))

	history := c.History()
	require.Len(t, history, 1)
	assert.Equal(t, [][2]string{{"C1", "E1"}}, history[0].HardConstraints.ForcedAssignments)
	assert.Nil(t, history[0].HardConstraints.ForcedEmployees)
}

func TestClear(t *testing.T) {
	c := newTestCache(t)
	c.Store(models.HardConstraints{}, sampleOutput("E1"))

	c.Clear()

	assert.Empty(t, c.History())
	_, ok := c.Lookup(models.HardConstraints{})
	assert.False(t, ok)
}

func TestPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	hc := models.HardConstraints{BannedAssignments: [][2]string{{"E1", "C1"}}}

	New(path, zerolog.Nop()).Store(hc, sampleOutput("E1"))

	got, ok := New(path, zerolog.Nop()).Lookup(hc)
	require.True(t, ok)
	assert.Equal(t, sampleOutput("E1"), got)
}

func TestCorruptFileFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	c := New(path, zerolog.Nop())

	_, ok := c.Lookup(models.HardConstraints{})
	assert.False(t, ok)

	// the cache must stay usable after the corrupt file is overwritten
	c.Store(models.HardConstraints{}, sampleOutput("E1"))
	got, ok := c.Lookup(models.HardConstraints{})
	require.True(t, ok)
	assert.Equal(t, sampleOutput("E1"), got)
}
