// Package fetching is the data retrieval collaborator: it reads raw upstream
// records and assembles the engine's inputs for one planning date. The core
// never reads storage itself.
package fetching

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/mhartmann/staffing-recommender-go/pkg/database"
	"github.com/mhartmann/staffing-recommender-go/pkg/models"
)

const (
	dateLayout = "2006-01-02"

	// recentWindowDays is the lookback for the recent-experience counters
	recentWindowDays = 14

	// gapTypeSubstitute marks coverage gaps that actually need a substitute
	gapTypeSubstitute = "mabw"

	// sampleSeed fixes the open-employee sampling. The sampled subset is a
	// collaborator-level input to the core; the core itself stays
	// deterministic for whatever subset it is handed.
	sampleSeed = 42
)

// DayInputs is everything the engine needs for one planning date
type DayInputs struct {
	Employees       []models.Employee
	Clients         []models.Client
	OpenEmployeeIDs []string
	OpenClientIDs   []string
}

// Fetcher reads upstream records from the gorm-backed store
type Fetcher struct {
	db *gorm.DB
}

// New creates a fetcher on top of an initialized database
func New(db *gorm.DB) *Fetcher {
	return &Fetcher{db: db}
}

// Employees returns all employee records with experience counters computed
// against the current date
func (f *Fetcher) Employees(ctx context.Context) ([]models.Employee, error) {
	return f.employees(ctx, time.Now())
}

// Clients returns all client records with their priority weights resolved
func (f *Fetcher) Clients(ctx context.Context) ([]models.Client, error) {
	var records []database.ClientRecord
	if err := f.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: clients: %v", models.ErrDataUnavailable, err)
	}
	priorities, err := f.priorities(ctx)
	if err != nil {
		return nil, err
	}

	clients := make([]models.Client, 0, len(records))
	for _, r := range records {
		client := models.Client{
			ID:          r.ID,
			Name:        r.Name,
			School:      r.SchoolID,
			Priority:    100, // lowest priority unless an operator weighted it
			RequiredSex: r.RequiredSex,
		}
		if p, ok := priorities[r.ID]; ok {
			client.Priority = p
		}
		if r.NeededQualifications != "" {
			if err := json.Unmarshal([]byte(r.NeededQualifications), &client.NeededQualifications); err != nil {
				return nil, fmt.Errorf("%w: client %s qualifications: %v", models.ErrDataUnavailable, r.ID, err)
			}
		}
		clients = append(clients, client)
	}
	return clients, nil
}

// CoverageGaps returns the substitute-coverage gaps active on date
func (f *Fetcher) CoverageGaps(ctx context.Context, date time.Time) ([]database.CoverageGapRecord, error) {
	var gaps []database.CoverageGapRecord
	if err := f.db.WithContext(ctx).Where("type = ?", gapTypeSubstitute).Find(&gaps).Error; err != nil {
		return nil, fmt.Errorf("%w: coverage gaps: %v", models.ErrDataUnavailable, err)
	}
	day := date.Format(dateLayout)
	active := gaps[:0]
	for _, g := range gaps {
		if g.StartDate <= day && day <= g.EndDate {
			active = append(active, g)
		}
	}
	return active, nil
}

// PriorAssignments returns the operator-set priority records
func (f *Fetcher) PriorAssignments(ctx context.Context) ([]database.PriorAssignmentRecord, error) {
	var records []database.PriorAssignmentRecord
	if err := f.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: prior assignments: %v", models.ErrDataUnavailable, err)
	}
	return records, nil
}

// ExperienceLog returns all past deployment records
func (f *Fetcher) ExperienceLog(ctx context.Context) ([]database.ExperienceLogRecord, error) {
	var records []database.ExperienceLogRecord
	if err := f.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: experience log: %v", models.ErrDataUnavailable, err)
	}
	return records, nil
}

// DayInputs assembles the engine's inputs for one planning date: the full
// record sets plus the open-client set (from active coverage gaps) and a
// sampled open-employee subset drawn from employees the experience log knows.
func (f *Fetcher) DayInputs(ctx context.Context, date time.Time) (DayInputs, error) {
	employees, err := f.employees(ctx, date)
	if err != nil {
		return DayInputs{}, err
	}
	clients, err := f.Clients(ctx)
	if err != nil {
		return DayInputs{}, err
	}
	gaps, err := f.CoverageGaps(ctx, date)
	if err != nil {
		return DayInputs{}, err
	}
	log, err := f.ExperienceLog(ctx)
	if err != nil {
		return DayInputs{}, err
	}

	// Open clients: one per active gap; AvailableUntil comes from the gap's
	// end date.
	gapEnd := make(map[string]time.Time, len(gaps))
	var openClientIDs []string
	for _, g := range gaps {
		if _, ok := gapEnd[g.ClientID]; ok {
			continue
		}
		end, err := time.Parse(dateLayout, g.EndDate)
		if err != nil {
			return DayInputs{}, fmt.Errorf("%w: gap end date %q: %v", models.ErrDataUnavailable, g.EndDate, err)
		}
		gapEnd[g.ClientID] = end
		openClientIDs = append(openClientIDs, g.ClientID)
	}
	sort.Strings(openClientIDs)
	for i := range clients {
		if end, ok := gapEnd[clients[i].ID]; ok {
			clients[i].AvailableUntil = end
		}
	}

	known := knownEmployees(log)
	openEmployeeIDs := sampleEmployees(known, len(openClientIDs))

	// Employee availability horizon is not tracked upstream yet; mirror the
	// upstream placeholder of a short random horizon from the planning date.
	rng := rand.New(rand.NewSource(sampleSeed))
	for i := range employees {
		employees[i].AvailableUntil = date.AddDate(0, 0, 1+rng.Intn(10))
	}

	return DayInputs{
		Employees:       employees,
		Clients:         clients,
		OpenEmployeeIDs: openEmployeeIDs,
		OpenClientIDs:   openClientIDs,
	}, nil
}

// ResolveIDs filters a corpus down to the records whose ID is in ids,
// preserving corpus order
func ResolveIDs[T any](ids []string, corpus []T, idOf func(T) string) []T {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []T
	for _, item := range corpus {
		if wanted[idOf(item)] {
			out = append(out, item)
		}
	}
	return out
}

func (f *Fetcher) employees(ctx context.Context, ref time.Time) ([]models.Employee, error) {
	var records []database.EmployeeRecord
	if err := f.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: employees: %v", models.ErrDataUnavailable, err)
	}
	var distances []database.DistanceRecord
	if err := f.db.WithContext(ctx).Find(&distances).Error; err != nil {
		return nil, fmt.Errorf("%w: distances: %v", models.ErrDataUnavailable, err)
	}
	log, err := f.ExperienceLog(ctx)
	if err != nil {
		return nil, err
	}

	travel := make(map[string]map[string]float64)
	for _, d := range distances {
		if travel[d.EmployeeID] == nil {
			travel[d.EmployeeID] = make(map[string]float64)
		}
		travel[d.EmployeeID][d.SchoolID] = d.Minutes
	}

	recentCutoff := ref.AddDate(0, 0, -recentWindowDays).Format(dateLayout)
	clientExp := make(map[string]map[string]float64)
	schoolExp := make(map[string]map[string]float64)
	recentExp := make(map[string]map[string]float64)
	for _, e := range log {
		bump(clientExp, e.EmployeeID, e.ClientID)
		bump(schoolExp, e.EmployeeID, e.SchoolID)
		if e.Date >= recentCutoff {
			bump(recentExp, e.EmployeeID, e.ClientID)
		}
	}

	employees := make([]models.Employee, 0, len(records))
	for _, r := range records {
		emp := models.Employee{
			ID:                     r.ID,
			Name:                   r.Name,
			HasCar:                 r.HasCar,
			TimeToSchool:           travel[r.ID],
			ClientExperience:       clientExp[r.ID],
			SchoolExperience:       schoolExp[r.ID],
			RecentClientExperience: recentExp[r.ID],
		}
		if r.Qualifications != "" {
			if err := json.Unmarshal([]byte(r.Qualifications), &emp.Qualifications); err != nil {
				return nil, fmt.Errorf("%w: employee %s qualifications: %v", models.ErrDataUnavailable, r.ID, err)
			}
		}
		if r.Availability != "" {
			if err := json.Unmarshal([]byte(r.Availability), &emp.Availability); err != nil {
				return nil, fmt.Errorf("%w: employee %s availability: %v", models.ErrDataUnavailable, r.ID, err)
			}
		}
		employees = append(employees, emp)
	}
	return employees, nil
}

func (f *Fetcher) priorities(ctx context.Context) (map[string]float64, error) {
	records, err := f.PriorAssignments(ctx)
	if err != nil {
		return nil, err
	}
	priorities := make(map[string]float64, len(records))
	for _, r := range records {
		priorities[r.ClientID] = r.Priority
	}
	return priorities, nil
}

func knownEmployees(log []database.ExperienceLogRecord) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range log {
		if !seen[e.EmployeeID] {
			seen[e.EmployeeID] = true
			ids = append(ids, e.EmployeeID)
		}
	}
	sort.Strings(ids)
	return ids
}

// sampleEmployees draws the open-employee subset: two fewer than the open
// clients, from the employees the experience log knows. Fixed seed, so the
// same data always yields the same subset.
func sampleEmployees(known []string, openClients int) []string {
	n := openClients - 2
	if n < 1 {
		n = openClients
	}
	if n > len(known) {
		n = len(known)
	}
	if n <= 0 {
		return nil
	}
	shuffled := append([]string(nil), known...)
	rng := rand.New(rand.NewSource(sampleSeed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	sample := shuffled[:n]
	sort.Strings(sample)
	return sample
}

func bump(m map[string]map[string]float64, outer, inner string) {
	if m[outer] == nil {
		m[outer] = make(map[string]float64)
	}
	m[outer][inner]++
}
