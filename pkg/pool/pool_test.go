package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartmann/staffing-recommender-go/pkg/models"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	day, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return day
}

func testEmployee(id string) models.Employee {
	return models.Employee{
		ID:           id,
		Availability: BaseAvailability(),
		HasCar:       true,
		TimeToSchool: map[string]float64{"school-1": 25},
		ClientExperience: map[string]float64{
			"client-1": 3,
		},
		SchoolExperience: map[string]float64{
			"school-1": 5,
		},
	}
}

func testClient(id string) models.Client {
	return models.Client{
		ID:       id,
		School:   "school-1",
		Priority: 10,
	}
}

func TestBuildRow(t *testing.T) {
	row, ok := BuildRow(testEmployee("emp-1"), testClient("client-1"))
	require.True(t, ok)

	assert.Equal(t, "emp-1", row.EmployeeID)
	assert.Equal(t, "client-1", row.ClientID)
	assert.Equal(t, 25.0, row.TimeToSchool)
	require.NotNil(t, row.ClientExperience)
	assert.Equal(t, 3.0, *row.ClientExperience)
	require.NotNil(t, row.SchoolExperience)
	assert.Equal(t, 5.0, *row.SchoolExperience)
	assert.Nil(t, row.RecentClientExperience)
	assert.True(t, row.AvailabilityMatch)
	assert.True(t, row.Mobility)
	assert.False(t, row.SexConstraintActive)
	assert.True(t, row.QualificationsMet)
}

func TestBuildRowExcludesFailedJoin(t *testing.T) {
	emp := testEmployee("emp-1")
	client := testClient("client-1")
	client.School = "school-unknown"

	_, ok := BuildRow(emp, client)
	assert.False(t, ok, "pair without a travel-time entry must be excluded, not sentinel-costed")
}

func TestBuildRowNullVsZeroExperience(t *testing.T) {
	emp := testEmployee("emp-1")
	emp.ClientExperience = map[string]float64{"client-1": 0}

	row, ok := BuildRow(emp, testClient("client-1"))
	require.True(t, ok)

	// zero prior experience is a value; no recorded history is nil
	require.NotNil(t, row.ClientExperience)
	assert.Equal(t, 0.0, *row.ClientExperience)
	assert.Nil(t, row.RecentClientExperience)
}

func TestBuildRowQualifications(t *testing.T) {
	emp := testEmployee("emp-1")
	emp.Qualifications = []string{"first-aid"}
	client := testClient("client-1")
	client.NeededQualifications = []string{"first-aid", "sign-language"}

	row, ok := BuildRow(emp, client)
	require.True(t, ok)
	assert.False(t, row.QualificationsMet)

	emp.Qualifications = []string{"sign-language", "first-aid", "extra"}
	row, ok = BuildRow(emp, client)
	require.True(t, ok)
	assert.True(t, row.QualificationsMet)
}

func TestBuildCrossProduct(t *testing.T) {
	employees := []models.Employee{testEmployee("emp-2"), testEmployee("emp-1")}
	clients := []models.Client{testClient("client-2"), testClient("client-1")}

	rows := Build(employees, clients,
		[]string{"emp-2", "emp-1"}, []string{"client-1", "client-2"})
	require.Len(t, rows, 4)

	// lexicographic order regardless of input ordering
	assert.Equal(t, "emp-1", rows[0].EmployeeID)
	assert.Equal(t, "client-1", rows[0].ClientID)
	assert.Equal(t, "emp-1", rows[1].EmployeeID)
	assert.Equal(t, "client-2", rows[1].ClientID)
	assert.Equal(t, "emp-2", rows[2].EmployeeID)
}

func TestBuildSkipsUnknownIDs(t *testing.T) {
	employees := []models.Employee{testEmployee("emp-1")}
	clients := []models.Client{testClient("client-1")}

	rows := Build(employees, clients,
		[]string{"emp-1", "emp-ghost"}, []string{"client-1", "client-ghost"})
	require.Len(t, rows, 1)
}

func TestMatchesBaseAvailability(t *testing.T) {
	assert.True(t, MatchesBaseAvailability(BaseAvailability()))

	partial := BaseAvailability()
	partial["montag"] = "08:00-12:00"
	assert.False(t, MatchesBaseAvailability(partial))

	reduced := BaseAvailability()
	delete(reduced, "freitag")
	assert.False(t, MatchesBaseAvailability(reduced))
}

func TestWeekday(t *testing.T) {
	// 2025-03-21 was a Friday
	day := mustDate(t, "2025-03-21")
	assert.Equal(t, "freitag", Weekday(day))
}
