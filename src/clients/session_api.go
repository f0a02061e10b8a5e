package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"reunion-member-svc/src/internal/config"
	"reunion-member-svc/src/internal/models"
)

// TokenProvider supplies the bearer token for authenticated calls. The auth
// state store implements it so the client always sends the current token.
type TokenProvider interface {
	Token() string
}

// SessionAPI is the HTTP client for the member service's session endpoints.
type SessionAPI struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
}

func NewSessionAPI(cfg *config.ClientSettings, tokens TokenProvider) *SessionAPI {
	return &SessionAPI{
		baseURL: cfg.BaseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
	}
}

// SessionInfo fetches the server-configured idle timeout in seconds.
func (c *SessionAPI) SessionInfo(ctx context.Context) (int, error) {
	var info models.SessionInfoResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/session/info", nil, &info); err != nil {
		return 0, err
	}
	if info.TimeoutSeconds <= 0 {
		return 0, fmt.Errorf("session info returned invalid timeout: %d", info.TimeoutSeconds)
	}
	return info.TimeoutSeconds, nil
}

// Ping resets the server-side idle timer. It returns models.ErrUnauthorized
// when the server answers 401/403, meaning the session is gone.
func (c *SessionAPI) Ping(ctx context.Context) (bool, error) {
	var pong models.SessionPingResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/ping", nil, &pong); err != nil {
		return false, err
	}
	return pong.Alive, nil
}

// Logout tells the server to end the session. Callers treat failures as
// best-effort; the local logout proceeds regardless.
func (c *SessionAPI) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
}

// Login authenticates a member and returns the session token.
func (c *SessionAPI) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	req := models.LoginRequest{Email: email, Password: password}
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *SessionAPI) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call member service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return models.ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("member service returned status: %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
