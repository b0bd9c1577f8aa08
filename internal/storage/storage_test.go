package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/opsdesk/casetrack/internal/models"
)

func openTestStorage(t *testing.T) *GormStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "casetrack_test.db")
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dbPath,
	}, &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	return NewGormStorage(db)
}

func seedLead(t *testing.T, s *GormStorage, lead models.Lead) {
	t.Helper()
	require.NoError(t, s.db.Create(&lead).Error)
}

func seedUser(t *testing.T, s *GormStorage, username string, role models.Role) models.User {
	t.Helper()
	user := models.User{Username: username, Password: "x", Role: role}
	require.NoError(t, s.CreateUser(context.Background(), &user))
	return user
}

func testCase(ckt string, creator uint) *models.Case {
	return &models.Case{
		LeadCkt:      ckt,
		IPAddress:    "10.0.0.8",
		Connectivity: models.ConnectivityStable,
		AssignedDate: time.Now().UTC().Truncate(time.Second),
		DueDate:      time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second),
		CaseRemarks:  "link flapping",
		Status:       models.StatusPending,
		TimeSpent:    30,
		Device:       "rtr-edge-1",
		CreatedBy:    creator,
	}
}

func TestSearchLeadsMatchesAcrossFields(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	seedLead(t, s, models.Lead{Ckt: "CKT002", CustName: "Acme Fiber", ContactName: "Ravi", EmailID: "noc@acme.example", SalesPerson: "Priya", Address: "12 Hill Rd"})
	seedLead(t, s, models.Lead{Ckt: "CKT001", CustName: "ACME Broadband", ContactName: "Dana", EmailID: "ops@acmebb.example", SalesPerson: "Lee", Address: "4 Dock St"})
	seedLead(t, s, models.Lead{Ckt: "CKT003", CustName: "Northwind", ContactName: "Sam", EmailID: "sam@northwind.example", SalesPerson: "Priya", Address: "9 Bay Ave"})

	leads, err := s.SearchLeads(ctx, "acme", 50)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	// Ordered by circuit code ascending regardless of insert order.
	assert.Equal(t, "CKT001", leads[0].Ckt)
	assert.Equal(t, "CKT002", leads[1].Ckt)

	leads, err = s.SearchLeads(ctx, "priya", 50)
	require.NoError(t, err)
	require.Len(t, leads, 2)

	leads, err = s.SearchLeads(ctx, "dock st", 50)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "CKT001", leads[0].Ckt)

	leads, err = s.SearchLeads(ctx, "no-such-customer", 50)
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestSearchLeadsCapsResults(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	for i := 0; i < 55; i++ {
		seedLead(t, s, models.Lead{Ckt: fmt.Sprintf("BULK%03d", i), CustName: "Bulk Customer"})
	}

	leads, err := s.SearchLeads(ctx, "bulk", 50)
	require.NoError(t, err)
	assert.Len(t, leads, 50)
}

func TestGetLeadByCkt(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	seedLead(t, s, models.Lead{Ckt: "CKT010", CustName: "Harbor Net", Bandwidth: "100 Mbps"})

	lead, err := s.GetLeadByCkt(ctx, "CKT010")
	require.NoError(t, err)
	assert.Equal(t, "Harbor Net", lead.CustName)
	assert.Equal(t, "100 Mbps", lead.Bandwidth)

	_, err = s.GetLeadByCkt(ctx, "CKT999")
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestCaseRoundTripWithJoinedNames(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	creator := seedUser(t, s, "alice", models.RoleAdmin)
	assignee := seedUser(t, s, "bob", models.RoleUser)
	seedLead(t, s, models.Lead{Ckt: "CKT001", CustName: "Acme Fiber"})

	c := testCase("CKT001", creator.ID)
	c.AssignedTo = &assignee.ID
	require.NoError(t, s.CreateCase(ctx, c))
	require.NotZero(t, c.ID)

	got, err := s.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.LeadCkt, got.LeadCkt)
	assert.Equal(t, c.IPAddress, got.IPAddress)
	assert.Equal(t, c.Connectivity, got.Connectivity)
	assert.Equal(t, c.CaseRemarks, got.CaseRemarks)
	assert.Equal(t, c.Status, got.Status)
	assert.Equal(t, c.TimeSpent, got.TimeSpent)
	assert.Equal(t, c.Device, got.Device)
	assert.WithinDuration(t, c.AssignedDate, got.AssignedDate, time.Second)
	assert.WithinDuration(t, c.DueDate, got.DueDate, time.Second)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.LastUpdated.IsZero())

	assert.Equal(t, "alice", got.CreatedByUser)
	require.NotNil(t, got.AssignedToUser)
	assert.Equal(t, "bob", *got.AssignedToUser)
	assert.Equal(t, "Acme Fiber", got.CompanyName)
}

func TestOneOpenCasePerLead(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	creator := seedUser(t, s, "alice", models.RoleAdmin)
	seedLead(t, s, models.Lead{Ckt: "CKT001", CustName: "Acme Fiber"})

	first := testCase("CKT001", creator.ID)
	require.NoError(t, s.CreateCase(ctx, first))

	second := testCase("CKT001", creator.ID)
	assert.ErrorIs(t, s.CreateCase(ctx, second), ErrOpenCaseExists)

	// Completed cases do not hold the slot.
	done := models.StatusCompleted
	_, err := s.UpdateCase(ctx, first.ID, models.CaseUpdate{Status: &done})
	require.NoError(t, err)

	third := testCase("CKT001", creator.ID)
	require.NoError(t, s.CreateCase(ctx, third))
}

func TestUpdateCaseTouchesOnlySuppliedFields(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	creator := seedUser(t, s, "alice", models.RoleAdmin)
	assignee := seedUser(t, s, "bob", models.RoleUser)
	seedLead(t, s, models.Lead{Ckt: "CKT001", CustName: "Acme Fiber"})

	c := testCase("CKT001", creator.ID)
	c.AssignedTo = &assignee.ID
	require.NoError(t, s.CreateCase(ctx, c))

	done := models.StatusCompleted
	updated, err := s.UpdateCase(ctx, c.ID, models.CaseUpdate{Status: &done})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, c.IPAddress, updated.IPAddress)
	assert.Equal(t, c.CaseRemarks, updated.CaseRemarks)
	assert.Equal(t, c.TimeSpent, updated.TimeSpent)
	assert.Equal(t, c.Device, updated.Device)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, assignee.ID, *updated.AssignedTo)
	assert.False(t, updated.LastUpdated.Before(updated.CreatedAt))

	// AssignedTo of zero clears the assignee.
	var nobody uint
	updated, err = s.UpdateCase(ctx, c.ID, models.CaseUpdate{AssignedTo: &nobody})
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedTo)
	assert.Nil(t, updated.AssignedToUser)
	assert.Equal(t, models.StatusCompleted, updated.Status)
}

func TestUpdateCaseNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	done := models.StatusCompleted
	_, err := s.UpdateCase(ctx, 42, models.CaseUpdate{Status: &done})
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestDeleteCaseRepeatedIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	creator := seedUser(t, s, "alice", models.RoleAdmin)
	seedLead(t, s, models.Lead{Ckt: "CKT001"})

	c := testCase("CKT001", creator.ID)
	require.NoError(t, s.CreateCase(ctx, c))

	require.NoError(t, s.DeleteCase(ctx, c.ID))
	assert.ErrorIs(t, s.DeleteCase(ctx, c.ID), ErrCaseNotFound)
}

func TestListCasesScopedToAssignee(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	admin := seedUser(t, s, "alice", models.RoleAdmin)
	bob := seedUser(t, s, "bob", models.RoleUser)
	seedLead(t, s, models.Lead{Ckt: "CKT001", CustName: "Acme Fiber"})
	seedLead(t, s, models.Lead{Ckt: "CKT002", CustName: "Northwind"})

	mine := testCase("CKT001", admin.ID)
	mine.AssignedTo = &bob.ID
	require.NoError(t, s.CreateCase(ctx, mine))

	time.Sleep(20 * time.Millisecond)

	other := testCase("CKT002", admin.ID)
	other.AssignedTo = &admin.ID
	require.NoError(t, s.CreateCase(ctx, other))

	all, err := s.ListCases(ctx, models.CaseScope{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, other.ID, all[0].ID)
	assert.Equal(t, mine.ID, all[1].ID)

	scoped, err := s.ListCases(ctx, models.CaseScope{AssigneeID: &bob.ID})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, mine.ID, scoped[0].ID)
	require.NotNil(t, scoped[0].AssignedTo)
	assert.Equal(t, bob.ID, *scoped[0].AssignedTo)
}

func TestUsernameUniqueness(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	seedUser(t, s, "alice", models.RoleAdmin)
	bob := seedUser(t, s, "bob", models.RoleUser)

	err := s.CreateUser(ctx, &models.User{Username: "alice", Password: "x", Role: models.RoleUser})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	taken := "alice"
	_, err = s.UpdateUser(ctx, bob.ID, models.UserUpdate{Username: &taken})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUserUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	bob := seedUser(t, s, "bob", models.RoleUser)

	promoted := models.RoleAdmin
	updated, err := s.UpdateUser(ctx, bob.ID, models.UserUpdate{Role: &promoted})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	assert.Equal(t, "bob", updated.Username)

	require.NoError(t, s.DeleteUser(ctx, bob.ID))
	assert.ErrorIs(t, s.DeleteUser(ctx, bob.ID), ErrUserNotFound)

	_, err = s.GetUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
