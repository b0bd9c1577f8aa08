package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/casetrack/internal/api/handlers"
	"github.com/opsdesk/casetrack/internal/api/router"
	"github.com/opsdesk/casetrack/internal/config"
	"github.com/opsdesk/casetrack/internal/middleware"
	"github.com/opsdesk/casetrack/internal/models"
	"github.com/opsdesk/casetrack/internal/storage"
)

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "OK", body["status"])
}

func TestLoginIssuesTokenMatchingStoredRole(t *testing.T) {
	app, store := newTestApp(t)
	seedUser(t, store, "alice", "secret1", models.RoleAdmin)

	resp := doRequest(t, app, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: "alice",
		Password: "secret1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var body models.LoginResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "alice", body.User.Username)
	assert.Equal(t, models.RoleAdmin, body.User.Role)

	// The password hash must never appear on the wire.
	assert.NotContains(t, string(raw), "password")

	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(body.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)
	assert.Equal(t, body.User.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	app, store := newTestApp(t)
	seedUser(t, store, "alice", "secret1", models.RoleAdmin)

	wrongPassword := doRequest(t, app, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: "alice",
		Password: "nope",
	})
	unknownUser := doRequest(t, app, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: "mallory",
		Password: "nope",
	})

	require.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
	require.Equal(t, http.StatusUnauthorized, unknownUser.StatusCode)

	// Neither response may reveal which field was wrong.
	var a, b map[string]string
	decodeBody(t, wrongPassword, &a)
	decodeBody(t, unknownUser, &b)
	assert.Equal(t, a, b)
}

func TestProtectedRoutesRejectMissingOrBadToken(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/api/cases", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/cases", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChangePassword(t *testing.T) {
	app, store := newTestApp(t)
	seedUser(t, store, "bob", "oldpass", models.RoleUser)
	token := login(t, app, "bob", "oldpass")

	resp := doRequest(t, app, http.MethodPost, "/api/auth/password", token, map[string]string{
		"currentPassword": "wrong",
		"newPassword":     "newpass1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/api/auth/password", token, map[string]string{
		"currentPassword": "oldpass",
		"newPassword":     "newpass1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Old credentials stop working, new ones work.
	failed := doRequest(t, app, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: "bob",
		Password: "oldpass",
	})
	assert.Equal(t, http.StatusUnauthorized, failed.StatusCode)
	login(t, app, "bob", "newpass1")
}

func TestLoginRateLimit(t *testing.T) {
	store := newRateLimitedApp(t)
	app, backing := store.app, store.store
	seedUser(t, backing, "alice", "secret1", models.RoleAdmin)

	for i := 0; i < 2; i++ {
		resp := doRequest(t, app, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
			Username: "alice",
			Password: "bad",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := doRequest(t, app, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: "alice",
		Password: "secret1",
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

type rateLimitedApp struct {
	app   *fiber.App
	store *storage.InMemoryStorage
}

func newRateLimitedApp(t *testing.T) rateLimitedApp {
	t.Helper()

	store := storage.NewInMemoryStorage()
	app := fiber.New()

	r := router.NewRouter(
		app,
		handlers.NewAuthHandler(store, testSecret, time.Hour),
		handlers.NewLeadHandler(store),
		handlers.NewCaseHandler(store),
		handlers.NewUserHandler(store),
		middleware.NewAuthMiddleware(testSecret),
		middleware.NewRateLimiter(middleware.NewMemoryStore(), true),
		config.RateLimitConfig{Enabled: true, Limit: 2, Window: time.Minute},
	)
	r.SetupRoutes()

	return rateLimitedApp{app: app, store: store}
}
