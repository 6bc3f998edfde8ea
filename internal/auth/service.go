package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/moodiary/moodiary/internal/config"
	"github.com/moodiary/moodiary/internal/events"
	"github.com/moodiary/moodiary/internal/models"
)

// refreshWindow is how close to expiry a token may get before
// EnsureFresh swaps it for a new one.
const refreshWindow = 5 * time.Minute

// TokenSink receives the access token whenever it changes, so the
// remote store always signs requests with the current session.
type TokenSink interface {
	SetToken(token string)
}

// Service authenticates against the remote identity endpoint and
// persists the session across restarts.
type Service struct {
	client      *http.Client
	baseURL     string
	anonKey     string
	sessionFile string
	sink        TokenSink
	logger      *events.Logger

	mu      sync.Mutex
	session *models.Session
}

// NewService creates the auth service and restores any persisted
// session. A corrupt or missing session file leaves the service
// logged out.
func NewService(cfg *config.Config, sink TokenSink, logger *events.Logger) *Service {
	s := &Service{
		client:      &http.Client{Timeout: cfg.API.Timeout},
		baseURL:     cfg.API.BaseURL,
		anonKey:     cfg.API.AnonKey,
		sessionFile: cfg.Storage.SessionFile,
		sink:        sink,
		logger:      logger.WithField("component", "auth"),
	}
	s.restore()
	return s
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         models.User `json:"user"`
}

// Login exchanges credentials for a session and persists it.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := s.tokenRequest(ctx, "password", body)
	if err != nil {
		return nil, err
	}

	session, err := s.adopt(resp)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", session.User.ID).Info("Logged in")
	return &session.User, nil
}

// EnsureFresh refreshes the session when the access token is expired
// or about to expire. It is a no-op while the token is healthy.
func (s *Service) EnsureFresh(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil {
		return models.ErrNotAuthenticated
	}
	if !session.IsExpired() && !session.ExpiresSoon(refreshWindow) {
		return nil
	}
	if session.RefreshToken == "" {
		return models.ErrAuthExpired
	}

	resp, err := s.tokenRequest(ctx, "refresh_token", map[string]string{
		"refresh_token": session.RefreshToken,
	})
	if err != nil {
		return err
	}
	if _, err := s.adopt(resp); err != nil {
		return err
	}

	s.logger.Debug("Session refreshed")
	return nil
}

// CurrentUser returns the authenticated identity, or
// ErrNotAuthenticated when there is no usable session.
func (s *Service) CurrentUser() (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, models.ErrNotAuthenticated
	}
	if s.session.IsExpired() && s.session.RefreshToken == "" {
		return nil, models.ErrNotAuthenticated
	}
	user := s.session.User
	return &user, nil
}

// Session returns a copy of the current session, or nil when logged
// out.
func (s *Service) Session() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	session := *s.session
	return &session
}

// Logout discards the session in memory and on disk.
func (s *Service) Logout() error {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.SetToken("")
	}

	if err := os.Remove(s.sessionFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	s.logger.Info("Logged out")
	return nil
}

// adopt installs a token response as the active session and persists
// it.
func (s *Service) adopt(resp *tokenResponse) (*models.Session, error) {
	session, err := models.SessionFromToken(resp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	session.RefreshToken = resp.RefreshToken
	if resp.User.ID != "" {
		session.User = resp.User
	}
	if session.ExpiresAt.IsZero() && resp.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.SetToken(session.AccessToken)
	}
	if err := s.persist(session); err != nil {
		s.logger.WithError(err).Warn("Failed to persist session")
	}
	return session, nil
}

func (s *Service) tokenRequest(ctx context.Context, grantType string, payload map[string]string) (*tokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}

	endpoint := s.baseURL + "/auth/v1/token?grant_type=" + grantType
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.anonKey != "" {
		req.Header.Set("apikey", s.anonKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", models.ErrNetworkUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &models.APIError{
			StatusCode: resp.StatusCode,
			Code:       http.StatusText(resp.StatusCode),
			Message:    authMessage(data),
		}
	}

	var token tokenResponse
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access token")
	}
	return &token, nil
}

// restore loads the persisted session, if any. Failures are logged
// and discarded; the user can log in again.
func (s *Service) restore() {
	data, err := os.ReadFile(s.sessionFile)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).Warn("Failed to read session file")
		}
		return
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		s.logger.WithError(err).Warn("Ignoring corrupt session file")
		return
	}
	if session.AccessToken == "" {
		return
	}

	s.session = &session
	if s.sink != nil {
		s.sink.SetToken(session.AccessToken)
	}
	s.logger.WithField("user_id", session.User.ID).Debug("Session restored")
}

func (s *Service) persist(session *models.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.sessionFile, data, 0600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func authMessage(data []byte) string {
	var parsed struct {
		Message     string `json:"msg"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		if parsed.Description != "" {
			return parsed.Description
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return string(data)
}
