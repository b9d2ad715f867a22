package models

import "time"

// Abnormality labels assigned by the scorer.
const (
	LabelNormal  = "normal"
	LabelOutlier = "outlier"
)

// Employee represents a staff member available for substitute coverage
type Employee struct {
	ID                     string             `json:"id"`
	Name                   string             `json:"name,omitempty"`
	Availability           map[string]string  `json:"availability"`             // weekday -> time window
	HasCar                 bool               `json:"has_car"`
	Qualifications         []string           `json:"qualifications"`
	TimeToSchool           map[string]float64 `json:"time_to_school"`           // school ID -> minutes
	ClientExperience       map[string]float64 `json:"client_experience"`        // client ID -> all-time count
	SchoolExperience       map[string]float64 `json:"school_experience"`        // school ID -> all-time count
	RecentClientExperience map[string]float64 `json:"recent_client_experience"` // client ID -> recent-window count
	AvailableUntil         time.Time          `json:"available_until"`
}

// Client represents a person requiring substitute coverage
type Client struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name,omitempty"`
	School               string    `json:"school"`
	Priority             float64   `json:"priority"` // lower = higher priority
	NeededQualifications []string  `json:"needed_qualifications"`
	RequiredSex          *string   `json:"required_sex"`
	AvailableUntil       time.Time `json:"available_until"`
}

// CandidateRow is one scoreable (employee, client) pairing.
// Experience fields are nil when the employee has no recorded history for the
// client or school; nil must stay distinguishable from an explicit zero.
type CandidateRow struct {
	EmployeeID             string   `json:"employee_id"`
	ClientID               string   `json:"client_id"`
	TimeToSchool           float64  `json:"time_to_school"`
	ClientExperience       *float64 `json:"client_experience"`
	SchoolExperience       *float64 `json:"school_experience"`
	RecentClientExperience *float64 `json:"recent_client_experience"`
	Priority               float64  `json:"priority"`
	AvailabilityMatch      bool     `json:"availability_match"`
	Mobility               bool     `json:"mobility"`
	SexConstraintActive    bool     `json:"sex_constraint_active"`
	QualificationsMet      bool     `json:"qualifications_met"`
}

// ScoredCandidateRow is a CandidateRow plus the model's verdict.
// Never mutated after scoring.
type ScoredCandidateRow struct {
	CandidateRow
	AbnormalityLabel string  `json:"abnormality_label"`
	AbnormalityScore float64 `json:"abnormality_score"` // lower = more anomalous
}

// HardConstraints are the operator-supplied requirements for one request.
// All fields are optional; nil means the constraint kind is absent.
type HardConstraints struct {
	ForcedAssignments [][2]string `json:"forced_assignments,omitempty"`
	ForcedEmployees   []string    `json:"forced_employees,omitempty"`
	ForcedClients     []string    `json:"forced_clients,omitempty"`
	BannedAssignments [][2]string `json:"banned_assignments,omitempty"`
}

// IsZero reports whether no constraint of any kind is present
func (hc HardConstraints) IsZero() bool {
	return len(hc.ForcedAssignments) == 0 &&
		len(hc.ForcedEmployees) == 0 &&
		len(hc.ForcedClients) == 0 &&
		len(hc.BannedAssignments) == 0
}

// AssignmentResult is the optimizer's answer for one solve. An infeasible
// result carries no pairs; an empty pair list never means "zero recommended
// pairs".
type AssignmentResult struct {
	Pairs          []ScoredCandidateRow `json:"assigned_pairs"`
	ObjectiveValue float64              `json:"objective_value"`
	Feasible       bool                 `json:"feasible"`
}

// Output is the full recommendation payload returned to the caller and stored
// in the cache: the chosen pairs plus the scored pool and both input sides.
type Output struct {
	AssignmentInfo AssignmentResult     `json:"assignment_info"`
	ScoredPool     []ScoredCandidateRow `json:"scored_pool"`
	Employees      []Employee           `json:"employees"`
	Clients        []Client             `json:"clients"`
}

// Contribution is one feature's signed share of a row's anomaly score
type Contribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}
