package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var errUserNotFound = errors.New("user not found")

// AdminClient talks to the Supabase Admin API. The seed tool uses it to
// provision the demo member; request handling never does.
type AdminClient struct {
	supabaseURL string
	serviceKey  string
	httpClient  *http.Client
}

// NewAdminClient requires the service role key.
func NewAdminClient(supabaseURL, serviceKey string) *AdminClient {
	return &AdminClient{
		supabaseURL: supabaseURL,
		serviceKey:  serviceKey,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

type createUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	EmailConfirm bool   `json:"email_confirm"`
}

type adminUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type listUsersResponse struct {
	Users []adminUser `json:"users"`
}

// EnsureUser returns the id of the user with email, creating a confirmed
// account with password when none exists.
func (c *AdminClient) EnsureUser(ctx context.Context, email, password string) (id string, created bool, err error) {
	id, err = c.findUserIDByEmail(ctx, email)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, errUserNotFound) {
		return "", false, err
	}
	id, err = c.createUser(ctx, email, password)
	return id, err == nil, err
}

// DeleteUserByEmail is idempotent: a missing user is not an error.
func (c *AdminClient) DeleteUserByEmail(ctx context.Context, email string) error {
	userID, err := c.findUserIDByEmail(ctx, email)
	if errors.Is(err, errUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+userID, nil)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete user failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *AdminClient) findUserIDByEmail(ctx context.Context, email string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users", nil)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("list users failed with status %d: %s", resp.StatusCode, string(body))
	}

	var list listUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("decode list response: %w", err)
	}
	for _, user := range list.Users {
		if user.Email == email {
			return user.ID, nil
		}
	}
	return "", errUserNotFound
}

func (c *AdminClient) createUser(ctx context.Context, email, password string) (string, error) {
	payload, err := json.Marshal(createUserRequest{Email: email, Password: password, EmailConfirm: true})
	if err != nil {
		return "", fmt.Errorf("marshal create request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", payload)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create user failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user adminUser
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	return user.ID, nil
}

func (c *AdminClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.supabaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}
