package pool

import (
	"sort"
	"time"

	"github.com/mhartmann/staffing-recommender-go/pkg/models"
)

// weekdayNames maps time.Weekday to the names the planning records use
var weekdayNames = map[time.Weekday]string{
	time.Monday:    "montag",
	time.Tuesday:   "dienstag",
	time.Wednesday: "mittwoch",
	time.Thursday:  "donnerstag",
	time.Friday:    "freitag",
	time.Saturday:  "samstag",
	time.Sunday:    "sonntag",
}

// Weekday returns the record-layer name for the weekday of t
func Weekday(t time.Time) string {
	return weekdayNames[t.Weekday()]
}

// BaseAvailability is the full-availability pattern a fully flexible employee
// carries. AvailabilityMatch on a candidate row means the employee's calendar
// equals this baseline exactly.
func BaseAvailability() map[string]string {
	return map[string]string{
		"montag":     "08:00-16:00",
		"dienstag":   "08:00-16:00",
		"mittwoch":   "08:00-16:00",
		"donnerstag": "08:00-16:00",
		"freitag":    "08:00-16:00",
	}
}

// MatchesBaseAvailability reports whether an availability calendar equals the
// baseline full-availability pattern
func MatchesBaseAvailability(availability map[string]string) bool {
	base := BaseAvailability()
	if len(availability) != len(base) {
		return false
	}
	for day, window := range base {
		if availability[day] != window {
			return false
		}
	}
	return true
}

// BuildRow joins one employee with one client. The second return value is
// false when the join fails structurally (no travel time for the client's
// school); such pairs are excluded from the pool rather than given a sentinel
// cost. Missing experience entries resolve to nil, not zero.
func BuildRow(emp models.Employee, client models.Client) (models.CandidateRow, bool) {
	timeToSchool, ok := emp.TimeToSchool[client.School]
	if !ok {
		return models.CandidateRow{}, false
	}

	return models.CandidateRow{
		EmployeeID:             emp.ID,
		ClientID:               client.ID,
		TimeToSchool:           timeToSchool,
		ClientExperience:       lookup(emp.ClientExperience, client.ID),
		SchoolExperience:       lookup(emp.SchoolExperience, client.School),
		RecentClientExperience: lookup(emp.RecentClientExperience, client.ID),
		Priority:               client.Priority,
		AvailabilityMatch:      MatchesBaseAvailability(emp.Availability),
		Mobility:               emp.HasCar,
		SexConstraintActive:    client.RequiredSex != nil,
		QualificationsMet:      qualificationsMet(emp.Qualifications, client.NeededQualifications),
	}, true
}

// Build produces one candidate row per (open employee, open client) pair whose
// join keys resolve. Pure: output depends only on the arguments. Rows come out
// in lexicographic (employee ID, client ID) order.
func Build(employees []models.Employee, clients []models.Client, openEmployeeIDs, openClientIDs []string) []models.CandidateRow {
	empByID := make(map[string]models.Employee, len(employees))
	for _, e := range employees {
		empByID[e.ID] = e
	}
	clientByID := make(map[string]models.Client, len(clients))
	for _, c := range clients {
		clientByID[c.ID] = c
	}

	empIDs := sortedUnique(openEmployeeIDs)
	clientIDs := sortedUnique(openClientIDs)

	var rows []models.CandidateRow
	for _, eid := range empIDs {
		emp, ok := empByID[eid]
		if !ok {
			continue
		}
		for _, cid := range clientIDs {
			client, ok := clientByID[cid]
			if !ok {
				continue
			}
			if row, ok := BuildRow(emp, client); ok {
				rows = append(rows, row)
			}
		}
	}
	return rows
}

func lookup(m map[string]float64, key string) *float64 {
	if m == nil {
		return nil
	}
	v, ok := m[key]
	if !ok {
		return nil
	}
	return &v
}

func qualificationsMet(held, needed []string) bool {
	for _, n := range needed {
		found := false
		for _, h := range held {
			if h == n {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
