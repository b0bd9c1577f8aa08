package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/casetrack/internal/models"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	c := New(server.URL)
	c.SetSession("test-token", models.User{ID: 7, Username: "alice", Role: models.RoleAdmin})
	return c, server
}

func TestListCasesUsesCacheUntilInvalidated(t *testing.T) {
	var gets, puts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cases", func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]models.Case{{ID: 1, LeadCkt: "CKT001", Status: models.StatusPending}})
	})
	mux.HandleFunc("PUT /api/cases/1", func(w http.ResponseWriter, r *http.Request) {
		puts.Add(1)
		json.NewEncoder(w).Encode(models.Case{ID: 1, LeadCkt: "CKT001", Status: models.StatusCompleted})
	})

	c, server := newTestClient(mux)
	defer server.Close()
	ctx := context.Background()

	first, err := c.ListCases(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Second read inside the stale window is served from memory.
	_, err = c.ListCases(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), gets.Load())

	// A successful mutation invalidates; the next read refetches.
	status := string(models.StatusCompleted)
	_, err = c.UpdateCase(ctx, 1, UpdateCasePayload{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int32(1), puts.Load())

	_, err = c.ListCases(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), gets.Load())
}

func TestSearchLeadsGatedAtTwoCharacters(t *testing.T) {
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer server.Close()

	leads, err := c.SearchLeads(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestSearchLeadsCachesPerQuery(t *testing.T) {
	var hits atomic.Int32
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "acme", r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode([]models.Lead{{Ckt: "CKT001", CustName: "Acme Fiber"}})
	}))
	defer server.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		leads, err := c.SearchLeads(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, leads, 1)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestCreateCaseDuplicatePrecheckUsesCachedList(t *testing.T) {
	var posts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cases", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.Case{{ID: 1, LeadCkt: "CKT001", Status: models.StatusPending}})
	})
	mux.HandleFunc("POST /api/cases", func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Case{ID: 2, LeadCkt: "CKT002"})
	})

	c, server := newTestClient(mux)
	defer server.Close()
	ctx := context.Background()

	// Prime the cached case list.
	_, err := c.ListCases(ctx)
	require.NoError(t, err)

	now := time.Now()
	_, err = c.CreateCase(ctx, CreateCasePayload{
		LeadCkt:      "CKT001",
		Connectivity: "Stable",
		AssignedDate: now,
		DueDate:      now.Add(24 * time.Hour),
		Status:       "Pending",
	})
	require.Error(t, err)
	assert.Equal(t, int32(0), posts.Load())

	// A different lead goes through.
	created, err := c.CreateCase(ctx, CreateCasePayload{
		LeadCkt:      "CKT002",
		Connectivity: "Stable",
		AssignedDate: now,
		DueDate:      now.Add(24 * time.Hour),
		Status:       "Pending",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(2), created.ID)
	assert.Equal(t, int32(1), posts.Load())
}

func TestCreateCaseRejectsBadDatesLocally(t *testing.T) {
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer server.Close()

	now := time.Now()
	_, err := c.CreateCase(context.Background(), CreateCasePayload{
		LeadCkt:      "CKT001",
		AssignedDate: now,
		DueDate:      now.Add(-time.Hour),
	})
	assert.EqualError(t, err, "dueDate must not be before assignedDate")
}

func TestFixedErrorMessagePerOperation(t *testing.T) {
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"driver: bad connection"}`, http.StatusInternalServerError)
	}))
	defer server.Close()
	ctx := context.Background()

	_, err := c.ListCases(ctx)
	assert.EqualError(t, err, "failed to fetch cases")

	_, err = c.SearchLeads(ctx, "acme")
	assert.EqualError(t, err, "failed to search leads")

	_, err = c.ListUsers(ctx)
	assert.EqualError(t, err, "failed to fetch users")

	assert.EqualError(t, c.DeleteCase(ctx, 1), "failed to delete case")
}

func TestSessionRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	loaded, err := LoadSession()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	session := &Session{
		Token: "tok",
		User:  models.User{ID: 3, Username: "alice", Role: models.RoleAdmin},
	}
	require.NoError(t, SaveSession(session))

	loaded, err = LoadSession()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "tok", loaded.Token)
	assert.Equal(t, "alice", loaded.User.Username)

	require.NoError(t, ClearSession())
	loaded, err = LoadSession()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
