package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opsdesk/casetrack/internal/models"
)

// InMemoryStorage mirrors GormStorage semantics for handler tests and local
// experimentation. Not meant for production use.
type InMemoryStorage struct {
	mu         sync.RWMutex
	users      map[uint]*models.User
	leads      map[string]*models.Lead
	cases      map[uint]*models.Case
	nextUserID uint
	nextCaseID uint
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		users: make(map[uint]*models.User),
		leads: make(map[string]*models.Lead),
		cases: make(map[uint]*models.Case),
	}
}

// AddLead seeds a lead record; the application itself never writes leads.
func (s *InMemoryStorage) AddLead(lead models.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.Ckt] = &lead
}

func (s *InMemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username {
			return ErrUsernameTaken
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *InMemoryStorage) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *InMemoryStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *InMemoryStorage) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *InMemoryStorage) UpdateUser(ctx context.Context, id uint, upd models.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	if upd.Username != nil {
		for _, u := range s.users {
			if u.ID != id && u.Username == *upd.Username {
				return nil, ErrUsernameTaken
			}
		}
		user.Username = *upd.Username
	}
	if upd.Password != nil {
		user.Password = *upd.Password
	}
	if upd.Role != nil {
		user.Role = *upd.Role
	}
	user.UpdatedAt = time.Now().UTC()

	cp := *user
	return &cp, nil
}

func (s *InMemoryStorage) DeleteUser(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *InMemoryStorage) SearchLeads(ctx context.Context, query string, limit int) ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	matches := make([]models.Lead, 0)
	for _, lead := range s.leads {
		if leadMatches(lead, needle) {
			matches = append(matches, *lead)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Ckt < matches[j].Ckt })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func leadMatches(lead *models.Lead, needle string) bool {
	for _, field := range []string{
		lead.Ckt, lead.CustName, lead.ContactName, lead.EmailID, lead.SalesPerson, lead.Address,
	} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (s *InMemoryStorage) GetLeadByCkt(ctx context.Context, ckt string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[ckt]
	if !ok {
		return nil, ErrLeadNotFound
	}
	cp := *lead
	return &cp, nil
}

func (s *InMemoryStorage) ListCases(ctx context.Context, scope models.CaseScope) ([]models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cases := make([]models.Case, 0, len(s.cases))
	for _, c := range s.cases {
		if scope.AssigneeID != nil {
			if c.AssignedTo == nil || *c.AssignedTo != *scope.AssigneeID {
				continue
			}
		}
		cases = append(cases, s.decorate(*c))
	}
	sort.Slice(cases, func(i, j int) bool {
		if cases[i].CreatedAt.Equal(cases[j].CreatedAt) {
			return cases[i].ID > cases[j].ID
		}
		return cases[i].CreatedAt.After(cases[j].CreatedAt)
	})
	return cases, nil
}

func (s *InMemoryStorage) GetCase(ctx context.Context, id uint) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cases[id]
	if !ok {
		return nil, ErrCaseNotFound
	}
	cp := s.decorate(*c)
	return &cp, nil
}

func (s *InMemoryStorage) CreateCase(ctx context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Status.Open() {
		for _, existing := range s.cases {
			if existing.LeadCkt == c.LeadCkt && existing.Status.Open() {
				return ErrOpenCaseExists
			}
		}
	}

	s.nextCaseID++
	c.ID = s.nextCaseID
	now := time.Now().UTC()
	c.CreatedAt = now
	c.LastUpdated = now
	cp := *c
	s.cases[c.ID] = &cp
	return nil
}

func (s *InMemoryStorage) UpdateCase(ctx context.Context, id uint, upd models.CaseUpdate) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[id]
	if !ok {
		return nil, ErrCaseNotFound
	}

	if upd.Status != nil && upd.Status.Open() && !c.Status.Open() {
		for _, existing := range s.cases {
			if existing.ID != id && existing.LeadCkt == c.LeadCkt && existing.Status.Open() {
				return nil, ErrOpenCaseExists
			}
		}
	}

	if upd.IPAddress != nil {
		c.IPAddress = *upd.IPAddress
	}
	if upd.Connectivity != nil {
		c.Connectivity = *upd.Connectivity
	}
	if upd.AssignedDate != nil {
		c.AssignedDate = *upd.AssignedDate
	}
	if upd.DueDate != nil {
		c.DueDate = *upd.DueDate
	}
	if upd.CaseRemarks != nil {
		c.CaseRemarks = *upd.CaseRemarks
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	if upd.TimeSpent != nil {
		c.TimeSpent = *upd.TimeSpent
	}
	if upd.Device != nil {
		c.Device = *upd.Device
	}
	if upd.AssignedTo != nil {
		if *upd.AssignedTo == 0 {
			c.AssignedTo = nil
		} else {
			assignee := *upd.AssignedTo
			c.AssignedTo = &assignee
		}
	}
	c.LastUpdated = time.Now().UTC()

	cp := s.decorate(*c)
	return &cp, nil
}

func (s *InMemoryStorage) DeleteCase(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cases[id]; !ok {
		return ErrCaseNotFound
	}
	delete(s.cases, id)
	return nil
}

func (s *InMemoryStorage) HasOpenCase(ctx context.Context, leadCkt string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.cases {
		if c.LeadCkt == leadCkt && c.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

// decorate fills the joined display fields the SQL path gets from LEFT JOINs.
// Callers must hold at least a read lock.
func (s *InMemoryStorage) decorate(c models.Case) models.Case {
	if creator, ok := s.users[c.CreatedBy]; ok {
		c.CreatedByUser = creator.Username
	}
	if c.AssignedTo != nil {
		if assignee, ok := s.users[*c.AssignedTo]; ok {
			name := assignee.Username
			c.AssignedToUser = &name
		}
	}
	if lead, ok := s.leads[c.LeadCkt]; ok {
		c.CompanyName = lead.CustName
	}
	return c
}
