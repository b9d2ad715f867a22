package database

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// APIKey represents the api_keys table
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Key        string     `gorm:"unique;not null" json:"key"`
	Name       string     `gorm:"not null" json:"name"`
	KeyPreview string     `json:"key_preview"`
	RateLimit  int        `gorm:"default:10000" json:"rate_limit"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`
}

// APIUsage represents the api_usage table
type APIUsage struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	KeyID          uint   `gorm:"uniqueIndex:idx_key_date;not null" json:"key_id"`
	Date           string `gorm:"uniqueIndex:idx_key_date;not null" json:"date"`
	RequestCount   int    `gorm:"default:0" json:"request_count"`
	TotalClients   int    `gorm:"default:0" json:"total_clients"`
	TotalEmployees int    `gorm:"default:0" json:"total_employees"`
}

// MasterUser represents the master_users table
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// EmployeeRecord is the raw upstream employee row. List-valued attributes are
// stored as JSON strings, the way the upstream system delivers them.
type EmployeeRecord struct {
	ID             string `gorm:"primaryKey" json:"id"`
	Name           string `json:"name"`
	HasCar         bool   `json:"has_car"`
	Qualifications string `json:"qualifications"` // JSON list
	Availability   string `json:"availability"`   // JSON object, weekday -> window
}

// ClientRecord is the raw upstream client row
type ClientRecord struct {
	ID                   string  `gorm:"primaryKey" json:"id"`
	Name                 string  `json:"name"`
	SchoolID             string  `gorm:"index" json:"school_id"`
	NeededQualifications string  `json:"needed_qualifications"` // JSON list
	RequiredSex          *string `json:"required_sex"`
}

// DistanceRecord holds one employee's travel time to one school in minutes
type DistanceRecord struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	EmployeeID string  `gorm:"uniqueIndex:idx_emp_school" json:"employee_id"`
	SchoolID   string  `gorm:"uniqueIndex:idx_emp_school" json:"school_id"`
	Minutes    float64 `json:"minutes"`
}

// CoverageGapRecord is one substitute-coverage need; its presence on a date
// defines the "open" clients for that date.
type CoverageGapRecord struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ClientID  string `gorm:"index" json:"client_id"`
	Type      string `gorm:"index" json:"type"` // only "mabw" gaps need a substitute
	StartDate string `json:"start_date"`        // YYYY-MM-DD
	EndDate   string `json:"end_date"`          // YYYY-MM-DD
}

// PriorAssignmentRecord carries a client's operator-set priority weight
// (lower = higher priority).
type PriorAssignmentRecord struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	ClientID string  `gorm:"index" json:"client_id"`
	Priority float64 `json:"priority"`
}

// ExperienceLogRecord is one past deployment of an employee with a client
type ExperienceLogRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	EmployeeID string `gorm:"index" json:"employee_id"`
	ClientID   string `gorm:"index" json:"client_id"`
	SchoolID   string `json:"school_id"`
	Date       string `json:"date"` // YYYY-MM-DD
}

// InitDB initializes the database connection and migrates the schema
func InitDB(log zerolog.Logger) *gorm.DB {
	var db *gorm.DB
	var err error

	dsn := os.Getenv("DATABASE_URL")
	if dsn != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	} else {
		dbPath := os.Getenv("DATA_PATH")
		if dbPath == "" {
			dbPath = "recommender.db"
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	}

	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	// Auto Migration
	db.AutoMigrate(
		&APIKey{}, &APIUsage{}, &MasterUser{},
		&EmployeeRecord{}, &ClientRecord{}, &DistanceRecord{},
		&CoverageGapRecord{}, &PriorAssignmentRecord{}, &ExperienceLogRecord{},
	)

	return db
}
