package fetching

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mhartmann/staffing-recommender-go/pkg/database"
	"github.com/mhartmann/staffing-recommender-go/pkg/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&database.EmployeeRecord{}, &database.ClientRecord{}, &database.DistanceRecord{},
		&database.CoverageGapRecord{}, &database.PriorAssignmentRecord{}, &database.ExperienceLogRecord{},
	))
	return db
}

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create([]database.EmployeeRecord{
		{
			ID:             "E1",
			Name:           "Anna",
			HasCar:         true,
			Qualifications: `["first_aid","sign_language"]`,
			Availability:   `{"montag":"08:00-16:00"}`,
		},
		{ID: "E2", Name: "Ben"},
	}).Error)
	require.NoError(t, db.Create([]database.ClientRecord{
		{ID: "C1", Name: "Client One", SchoolID: "S1", NeededQualifications: `["first_aid"]`},
		{ID: "C2", Name: "Client Two", SchoolID: "S2"},
	}).Error)
	require.NoError(t, db.Create([]database.DistanceRecord{
		{EmployeeID: "E1", SchoolID: "S1", Minutes: 20},
		{EmployeeID: "E2", SchoolID: "S1", Minutes: 45},
	}).Error)
	require.NoError(t, db.Create([]database.PriorAssignmentRecord{
		{ClientID: "C1", Priority: 2},
	}).Error)
	require.NoError(t, db.Create([]database.CoverageGapRecord{
		{ClientID: "C1", Type: "mabw", StartDate: "2026-03-01", EndDate: "2026-03-10"},
		{ClientID: "C2", Type: "mabw", StartDate: "2026-02-01", EndDate: "2026-02-05"},
		{ClientID: "C2", Type: "krank", StartDate: "2026-03-01", EndDate: "2026-03-10"},
	}).Error)
	require.NoError(t, db.Create([]database.ExperienceLogRecord{
		{EmployeeID: "E1", ClientID: "C1", SchoolID: "S1", Date: "2026-01-10"},
		{EmployeeID: "E1", ClientID: "C1", SchoolID: "S1", Date: "2026-03-01"},
		{EmployeeID: "E2", ClientID: "C2", SchoolID: "S2", Date: "2026-02-01"},
	}).Error)
}

func TestEmployees(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	f := New(db)

	ref := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	employees, err := f.employees(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, employees, 2)

	byID := make(map[string]models.Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
	}
	e1, ok := byID["E1"]
	require.True(t, ok)
	assert.True(t, e1.HasCar)
	assert.Equal(t, []string{"first_aid", "sign_language"}, e1.Qualifications)
	assert.Equal(t, map[string]string{"montag": "08:00-16:00"}, e1.Availability)
	assert.Equal(t, map[string]float64{"S1": 20}, e1.TimeToSchool)
	assert.Equal(t, map[string]float64{"C1": 2}, e1.ClientExperience)
	assert.Equal(t, map[string]float64{"S1": 2}, e1.SchoolExperience)
	// only the 2026-03-01 deployment falls inside the recent window
	assert.Equal(t, map[string]float64{"C1": 1}, e1.RecentClientExperience)

	e2, ok := byID["E2"]
	require.True(t, ok)
	assert.Nil(t, e2.Qualifications)
	assert.Nil(t, e2.RecentClientExperience)
}

func TestClients(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	f := New(db)

	clients, err := f.Clients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 2)

	byID := make(map[string]models.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}
	c1 := byID["C1"]
	assert.Equal(t, "S1", c1.School)
	assert.Equal(t, []string{"first_aid"}, c1.NeededQualifications)
	assert.Equal(t, 2.0, c1.Priority)

	// no operator weight recorded: lowest priority
	assert.Equal(t, 100.0, byID["C2"].Priority)
}

func TestCoverageGaps(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	f := New(db)

	gaps, err := f.CoverageGaps(context.Background(), time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// C2's substitute gap ended in February and its March gap is not a
	// substitute gap
	require.Len(t, gaps, 1)
	assert.Equal(t, "C1", gaps[0].ClientID)
}

func TestDayInputs(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	f := New(db)

	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	inputs, err := f.DayInputs(context.Background(), date)
	require.NoError(t, err)

	assert.Equal(t, []string{"C1"}, inputs.OpenClientIDs)
	require.Len(t, inputs.OpenEmployeeIDs, 1)
	assert.Contains(t, []string{"E1", "E2"}, inputs.OpenEmployeeIDs[0])

	for _, c := range inputs.Clients {
		if c.ID == "C1" {
			assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), c.AvailableUntil)
		}
	}
	for _, e := range inputs.Employees {
		assert.True(t, e.AvailableUntil.After(date))
	}
}

func TestDayInputsDeterministic(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	f := New(db)

	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	first, err := f.DayInputs(context.Background(), date)
	require.NoError(t, err)
	second, err := f.DayInputs(context.Background(), date)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSampleEmployees(t *testing.T) {
	known := []string{"E1", "E2", "E3", "E4", "E5", "E6"}

	sample := sampleEmployees(known, 5)
	assert.Len(t, sample, 3)
	assert.True(t, sort.StringsAreSorted(sample))
	for _, id := range sample {
		assert.Contains(t, known, id)
	}

	// same inputs, same subset
	assert.Equal(t, sample, sampleEmployees(known, 5))
}

func TestSampleEmployeesSmallGap(t *testing.T) {
	known := []string{"E1", "E2", "E3"}

	// fewer than three open clients falls back to one employee per client
	assert.Len(t, sampleEmployees(known, 2), 2)
	assert.Len(t, sampleEmployees(known, 1), 1)
	assert.Nil(t, sampleEmployees(known, 0))
	assert.Nil(t, sampleEmployees(nil, 5))
}

func TestResolveIDs(t *testing.T) {
	corpus := []string{"a", "b", "c", "d"}

	got := ResolveIDs([]string{"d", "b"}, corpus, func(s string) string { return s })
	assert.Equal(t, []string{"b", "d"}, got)
	assert.Nil(t, ResolveIDs(nil, corpus, func(s string) string { return s }))
}
