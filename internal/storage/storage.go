package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/opsdesk/casetrack/internal/config"
	"github.com/opsdesk/casetrack/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrLeadNotFound       = errors.New("lead not found")
	ErrCaseNotFound       = errors.New("case not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrOpenCaseExists     = errors.New("an open case already exists for this lead")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id uint, upd models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id uint) error

	SearchLeads(ctx context.Context, query string, limit int) ([]models.Lead, error)
	GetLeadByCkt(ctx context.Context, ckt string) (*models.Lead, error)

	ListCases(ctx context.Context, scope models.CaseScope) ([]models.Case, error)
	GetCase(ctx context.Context, id uint) (*models.Case, error)
	CreateCase(ctx context.Context, c *models.Case) error
	UpdateCase(ctx context.Context, id uint, upd models.CaseUpdate) (*models.Case, error)
	DeleteCase(ctx context.Context, id uint) error
	HasOpenCase(ctx context.Context, leadCkt string) (bool, error)
}

// Open connects to Postgres with a bounded connection pool.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(BuildDSN(cfg)), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// Migrate creates the schema. The partial unique index backs the
// one-open-case-per-lead rule so the check-then-insert in CreateCase cannot
// race two writers into a duplicate.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Lead{}, &models.Case{}); err != nil {
		return err
	}
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_cases_open_lead ON cases (lead_ckt) WHERE status <> 'Completed'`,
	).Error
}

func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
}

// caseRow is the joined shape produced by the case listing queries.
type caseRow struct {
	ID             uint
	LeadCkt        string
	IPAddress      string `gorm:"column:ip_address"`
	Connectivity   models.Connectivity
	AssignedDate   time.Time
	DueDate        time.Time
	CaseRemarks    string
	Status         models.CaseStatus
	TimeSpent      int
	Device         string
	CreatedBy      uint
	AssignedTo     *uint
	CreatedAt      time.Time
	LastUpdated    time.Time
	CreatedByUser  *string
	AssignedToUser *string
	CompanyName    *string
}

func (r caseRow) toCase() models.Case {
	c := models.Case{
		ID:             r.ID,
		LeadCkt:        r.LeadCkt,
		IPAddress:      r.IPAddress,
		Connectivity:   r.Connectivity,
		AssignedDate:   r.AssignedDate,
		DueDate:        r.DueDate,
		CaseRemarks:    r.CaseRemarks,
		Status:         r.Status,
		TimeSpent:      r.TimeSpent,
		Device:         r.Device,
		CreatedBy:      r.CreatedBy,
		AssignedTo:     r.AssignedTo,
		CreatedAt:      r.CreatedAt,
		LastUpdated:    r.LastUpdated,
		AssignedToUser: r.AssignedToUser,
	}
	if r.CreatedByUser != nil {
		c.CreatedByUser = *r.CreatedByUser
	}
	if r.CompanyName != nil {
		c.CompanyName = *r.CompanyName
	}
	return c
}
