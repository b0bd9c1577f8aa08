package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsdesk/casetrack/internal/api/handlers"
	"github.com/opsdesk/casetrack/internal/api/router"
	"github.com/opsdesk/casetrack/internal/config"
	"github.com/opsdesk/casetrack/internal/middleware"
	"github.com/opsdesk/casetrack/internal/models"
	"github.com/opsdesk/casetrack/internal/storage"
)

const testSecret = "test-secret"

func newTestApp(t *testing.T) (*fiber.App, *storage.InMemoryStorage) {
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
		middleware.NewRateLimiter(middleware.NewMemoryStore(), false),
		config.RateLimitConfig{},
	)
	r.SetupRoutes()

	return app, store
}

func seedUser(t *testing.T, store *storage.InMemoryStorage, username, password string, role models.Role) models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{Username: username, Password: string(hashed), Role: role}
	require.NoError(t, store.CreateUser(context.Background(), &user))
	return user
}

func seedLead(store *storage.InMemoryStorage, ckt, custName string) {
	store.AddLead(models.Lead{Ckt: ckt, CustName: custName})
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func login(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()

	resp := doRequest(t, app, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: username,
		Password: password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.LoginResponse
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Token)
	return body.Token
}
