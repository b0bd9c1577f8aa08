package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/opsdesk/casetrack/internal/models"
)

// GormStorage runs against any gorm dialect; production uses Postgres via
// Open, tests run the same code on sqlite.
type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

const caseSelect = `
SELECT c.id,
       c.lead_ckt,
       c.ip_address,
       c.connectivity,
       c.assigned_date,
       c.due_date,
       c.case_remarks,
       c.status,
       c.time_spent,
       c.device,
       c.created_by,
       c.assigned_to,
       c.created_at,
       c.last_updated,
       cu.username AS created_by_user,
       au.username AS assigned_to_user,
       l.cust_name AS company_name
FROM cases c
LEFT JOIN users cu ON cu.id = c.created_by
LEFT JOIN users au ON au.id = c.assigned_to
LEFT JOIN lead_demo_data l ON l.ckt = c.lead_ckt
`

func (s *GormStorage) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err, "username") {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (s *GormStorage) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *GormStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *GormStorage) ListUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *GormStorage) UpdateUser(ctx context.Context, id uint, upd models.UserUpdate) (*models.User, error) {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if upd.Username != nil {
		updates["username"] = *upd.Username
	}
	if upd.Password != nil {
		updates["password"] = *upd.Password
	}
	if upd.Role != nil {
		updates["role"] = *upd.Role
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		if isUniqueViolation(err, "username") {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

func (s *GormStorage) DeleteUser(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *GormStorage) SearchLeads(ctx context.Context, query string, limit int) ([]models.Lead, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	leads := make([]models.Lead, 0)
	err := s.db.WithContext(ctx).
		Where(`LOWER(ckt) LIKE ?
			OR LOWER(cust_name) LIKE ?
			OR LOWER(contact_name) LIKE ?
			OR LOWER(email_id) LIKE ?
			OR LOWER(sales_person) LIKE ?
			OR LOWER(address) LIKE ?`,
			like, like, like, like, like, like).
		Order("ckt ASC").
		Limit(limit).
		Find(&leads).Error
	if err != nil {
		return nil, err
	}
	return leads, nil
}

func (s *GormStorage) GetLeadByCkt(ctx context.Context, ckt string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, "ckt = ?", ckt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	return &lead, nil
}

func (s *GormStorage) ListCases(ctx context.Context, scope models.CaseScope) ([]models.Case, error) {
	q := caseSelect
	args := make([]interface{}, 0, 1)
	if scope.AssigneeID != nil {
		q += "WHERE c.assigned_to = ?\n"
		args = append(args, *scope.AssigneeID)
	}
	q += "ORDER BY c.created_at DESC"

	rows := make([]caseRow, 0)
	if err := s.db.WithContext(ctx).Raw(q, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]models.Case, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toCase())
	}
	return result, nil
}

func (s *GormStorage) GetCase(ctx context.Context, id uint) (*models.Case, error) {
	rows := make([]caseRow, 0, 1)
	if err := s.db.WithContext(ctx).Raw(caseSelect+"WHERE c.id = ?", id).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrCaseNotFound
	}
	c := rows[0].toCase()
	return &c, nil
}

func (s *GormStorage) CreateCase(ctx context.Context, c *models.Case) error {
	if c.Status.Open() {
		open, err := s.HasOpenCase(ctx, c.LeadCkt)
		if err != nil {
			return err
		}
		if open {
			return ErrOpenCaseExists
		}
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.LastUpdated = now

	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err, "idx_cases_open_lead") || isUniqueViolation(err, "lead_ckt") {
			return ErrOpenCaseExists
		}
		return err
	}
	return nil
}

func (s *GormStorage) UpdateCase(ctx context.Context, id uint, upd models.CaseUpdate) (*models.Case, error) {
	if _, err := s.GetCase(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"last_updated": time.Now().UTC()}
	if upd.IPAddress != nil {
		updates["ip_address"] = *upd.IPAddress
	}
	if upd.Connectivity != nil {
		updates["connectivity"] = *upd.Connectivity
	}
	if upd.AssignedDate != nil {
		updates["assigned_date"] = *upd.AssignedDate
	}
	if upd.DueDate != nil {
		updates["due_date"] = *upd.DueDate
	}
	if upd.CaseRemarks != nil {
		updates["case_remarks"] = *upd.CaseRemarks
	}
	if upd.Status != nil {
		updates["status"] = *upd.Status
	}
	if upd.TimeSpent != nil {
		updates["time_spent"] = *upd.TimeSpent
	}
	if upd.Device != nil {
		updates["device"] = *upd.Device
	}
	if upd.AssignedTo != nil {
		if *upd.AssignedTo == 0 {
			updates["assigned_to"] = nil
		} else {
			updates["assigned_to"] = *upd.AssignedTo
		}
	}

	if err := s.db.WithContext(ctx).Model(&models.Case{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		if isUniqueViolation(err, "idx_cases_open_lead") || isUniqueViolation(err, "lead_ckt") {
			return nil, ErrOpenCaseExists
		}
		return nil, err
	}
	return s.GetCase(ctx, id)
}

func (s *GormStorage) DeleteCase(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Case{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCaseNotFound
	}
	return nil
}

func (s *GormStorage) HasOpenCase(ctx context.Context, leadCkt string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Case{}).
		Where("lead_ckt = ? AND status <> ?", leadCkt, models.StatusCompleted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func isUniqueViolation(err error, hint string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, strings.ToLower(hint)) &&
		(strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate"))
}
