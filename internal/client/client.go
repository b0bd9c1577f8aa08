// Package client is the typed access layer for the casetrack API: URL and
// body construction, auth header propagation, JSON decoding, and a
// stale-while-revalidate read cache with invalidate-on-write.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opsdesk/casetrack/internal/models"
)

type Client struct {
	baseURL string
	httpc   *http.Client
	cache   *Cache

	token string
	user  *models.User
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		cache:   NewCache(),
	}
}

// SetSession restores a previously saved identity, e.g. on CLI startup.
func (c *Client) SetSession(token string, user models.User) {
	c.token = token
	u := user
	c.user = &u
}

func (c *Client) User() *models.User { return c.user }

func (c *Client) Token() string { return c.token }

func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	var resp models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, errors.New("invalid credentials")
	}

	c.token = resp.Token
	u := resp.User
	c.user = &u
	c.cache.Reset()
	return &u, nil
}

func (c *Client) Logout() {
	c.token = ""
	c.user = nil
	c.cache.Reset()
}

func (c *Client) ChangePassword(ctx context.Context, current, updated string) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/password", map[string]string{
		"currentPassword": current,
		"newPassword":     updated,
	}, nil)
	if err != nil {
		return errors.New("failed to change password")
	}
	return nil
}

// SearchLeads returns nothing for queries shorter than two characters; the
// picker only searches once there is something to match on.
func (c *Client) SearchLeads(ctx context.Context, query string) ([]models.Lead, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return []models.Lead{}, nil
	}

	key := "leads:" + strings.ToLower(query)
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]models.Lead), nil
	}

	var leads []models.Lead
	if err := c.do(ctx, http.MethodGet, "/api/leads?q="+url.QueryEscape(query), nil, &leads); err != nil {
		return nil, errors.New("failed to search leads")
	}
	c.cache.Put(key, leads)
	return leads, nil
}

func (c *Client) GetLead(ctx context.Context, ckt string) (*models.Lead, error) {
	key := "lead:" + ckt
	if cached, ok := c.cache.Get(key); ok {
		lead := cached.(models.Lead)
		return &lead, nil
	}

	var lead models.Lead
	if err := c.do(ctx, http.MethodGet, "/api/leads/"+url.PathEscape(ckt), nil, &lead); err != nil {
		return nil, errors.New("failed to fetch lead details")
	}
	c.cache.Put(key, lead)
	return &lead, nil
}

func (c *Client) ListCases(ctx context.Context) ([]models.Case, error) {
	key := c.casesKey()
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]models.Case), nil
	}

	var cases []models.Case
	if err := c.do(ctx, http.MethodGet, "/api/cases", nil, &cases); err != nil {
		return nil, errors.New("failed to fetch cases")
	}
	c.cache.Put(key, cases)
	return cases, nil
}

type CreateCasePayload struct {
	LeadCkt      string    `json:"leadCkt"`
	IPAddress    string    `json:"ipAddress"`
	Connectivity string    `json:"connectivity"`
	AssignedDate time.Time `json:"assignedDate"`
	DueDate      time.Time `json:"dueDate"`
	CaseRemarks  string    `json:"caseRemarks"`
	Status       string    `json:"status"`
	TimeSpent    int       `json:"timeSpent"`
	Device       string    `json:"device,omitempty"`
	AssignedTo   *uint     `json:"assignedTo,omitempty"`
}

// CreateCase runs cheap local prechecks before submitting. The server
// remains authoritative for both rules.
func (c *Client) CreateCase(ctx context.Context, payload CreateCasePayload) (*models.Case, error) {
	if payload.DueDate.Before(payload.AssignedDate) {
		return nil, errors.New("dueDate must not be before assignedDate")
	}
	if cached, ok := c.cache.Get(c.casesKey()); ok {
		for _, existing := range cached.([]models.Case) {
			if existing.LeadCkt == payload.LeadCkt && existing.Status.Open() {
				return nil, errors.New("an open case already exists for this lead")
			}
		}
	}

	var created models.Case
	if err := c.do(ctx, http.MethodPost, "/api/cases", payload, &created); err != nil {
		return nil, errors.New("failed to create case")
	}
	c.cache.Invalidate(c.casesKey())
	return &created, nil
}

type UpdateCasePayload struct {
	IPAddress    *string    `json:"ipAddress,omitempty"`
	Connectivity *string    `json:"connectivity,omitempty"`
	AssignedDate *time.Time `json:"assignedDate,omitempty"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	CaseRemarks  *string    `json:"caseRemarks,omitempty"`
	Status       *string    `json:"status,omitempty"`
	TimeSpent    *int       `json:"timeSpent,omitempty"`
	Device       *string    `json:"device,omitempty"`
	AssignedTo   *uint      `json:"assignedTo,omitempty"`
}

func (c *Client) UpdateCase(ctx context.Context, id uint, payload UpdateCasePayload) (*models.Case, error) {
	var updated models.Case
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/cases/%d", id), payload, &updated); err != nil {
		return nil, errors.New("failed to update case")
	}
	c.cache.Invalidate(c.casesKey())
	return &updated, nil
}

func (c *Client) DeleteCase(ctx context.Context, id uint) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/cases/%d", id), nil, nil); err != nil {
		return errors.New("failed to delete case")
	}
	c.cache.Invalidate(c.casesKey())
	return nil
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	if cached, ok := c.cache.Get("users"); ok {
		return cached.([]models.User), nil
	}

	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, errors.New("failed to fetch users")
	}
	c.cache.Put("users", users)
	return users, nil
}

type CreateUserPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (c *Client) CreateUser(ctx context.Context, payload CreateUserPayload) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/api/users", payload, &user); err != nil {
		return nil, errors.New("failed to create user")
	}
	c.cache.Invalidate("users")
	return &user, nil
}

type UpdateUserPayload struct {
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`
}

func (c *Client) UpdateUser(ctx context.Context, id uint, payload UpdateUserPayload) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/users/%d", id), payload, &user); err != nil {
		return nil, errors.New("failed to update user")
	}
	c.cache.Invalidate("users")
	return &user, nil
}

func (c *Client) DeleteUser(ctx context.Context, id uint) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/users/%d", id), nil, nil); err != nil {
		return errors.New("failed to delete user")
	}
	c.cache.Invalidate("users")
	return nil
}

// casesKey scopes the cached case list to the logged-in identity, since the
// server filters the listing per caller.
func (c *Client) casesKey() string {
	if c.user == nil {
		return "cases:anonymous"
	}
	return fmt.Sprintf("cases:%d", c.user.ID)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
