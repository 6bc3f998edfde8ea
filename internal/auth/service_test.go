package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodiary/moodiary/internal/auth"
	"github.com/moodiary/moodiary/internal/config"
	"github.com/moodiary/moodiary/internal/events"
	"github.com/moodiary/moodiary/internal/models"
)

type tokenSink struct {
	tokens []string
}

func (s *tokenSink) SetToken(token string) {
	s.tokens = append(s.tokens, token)
}

func signedToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "email": email, "exp": exp.Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.AnonKey = "anon-key"
	cfg.Storage.SessionFile = filepath.Join(t.TempDir(), "session.json")
	return cfg
}

func testLogger() *events.Logger {
	return events.NewTestLogger(events.ErrorLevel, io.Discard)
}

func TestLoginPersistsSession(t *testing.T) {
	accessToken := signedToken(t, "user-1", "me@example.com", time.Now().Add(time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/token", r.URL.Path)
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))
		require.Equal(t, "anon-key", r.Header.Get("apikey"))

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		require.Equal(t, "me@example.com", creds["email"])
		require.Equal(t, "hunter2", creds["password"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"user":          models.User{ID: "user-1", Email: "me@example.com"},
		})
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	sink := &tokenSink{}
	svc := auth.NewService(cfg, sink, testLogger())

	user, err := svc.Login(context.Background(), "me@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, []string{accessToken}, sink.tokens)

	current, err := svc.CurrentUser()
	require.NoError(t, err)
	assert.Equal(t, "user-1", current.ID)

	// Session file survives a restart.
	restarted := auth.NewService(cfg, &tokenSink{}, testLogger())
	restored, err := restarted.CurrentUser()
	require.NoError(t, err)
	assert.Equal(t, "user-1", restored.ID)

	info, err := os.Stat(cfg.Storage.SessionFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoginBadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_description": "Invalid login credentials"}`))
	}))
	defer server.Close()

	svc := auth.NewService(testConfig(t, server.URL), nil, testLogger())
	_, err := svc.Login(context.Background(), "me@example.com", "wrong")

	var apiErr *models.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Invalid login credentials")
}

func TestCurrentUserWithoutSession(t *testing.T) {
	svc := auth.NewService(testConfig(t, "http://127.0.0.1:1"), nil, testLogger())
	_, err := svc.CurrentUser()
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
}

func TestEnsureFreshRefreshesExpiringToken(t *testing.T) {
	var refreshCalls int
	freshToken := signedToken(t, "user-1", "me@example.com", time.Now().Add(time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		require.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "refresh-old", payload["refresh_token"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  freshToken,
			"refresh_token": "refresh-new",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)

	// Seed a nearly-expired session on disk.
	stale := &models.Session{
		AccessToken:  signedToken(t, "user-1", "me@example.com", time.Now().Add(time.Minute)),
		RefreshToken: "refresh-old",
		ExpiresAt:    time.Now().Add(time.Minute),
		User:         models.User{ID: "user-1"},
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.Storage.SessionFile, data, 0600))

	sink := &tokenSink{}
	svc := auth.NewService(cfg, sink, testLogger())

	require.NoError(t, svc.EnsureFresh(context.Background()))
	assert.Equal(t, 1, refreshCalls)
	assert.Equal(t, freshToken, sink.tokens[len(sink.tokens)-1])

	// Healthy token: no further refresh.
	require.NoError(t, svc.EnsureFresh(context.Background()))
	assert.Equal(t, 1, refreshCalls)
}

func TestEnsureFreshWithoutSession(t *testing.T) {
	svc := auth.NewService(testConfig(t, "http://127.0.0.1:1"), nil, testLogger())
	assert.ErrorIs(t, svc.EnsureFresh(context.Background()), models.ErrNotAuthenticated)
}

func TestLogoutClearsEverything(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")

	session := &models.Session{
		AccessToken: signedToken(t, "user-1", "", time.Now().Add(time.Hour)),
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        models.User{ID: "user-1"},
	}
	data, err := json.Marshal(session)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.Storage.SessionFile, data, 0600))

	sink := &tokenSink{}
	svc := auth.NewService(cfg, sink, testLogger())
	require.NoError(t, svc.Logout())

	_, err = svc.CurrentUser()
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
	assert.Equal(t, "", sink.tokens[len(sink.tokens)-1])

	_, err = os.Stat(cfg.Storage.SessionFile)
	assert.True(t, os.IsNotExist(err))

	// Logging out twice is fine.
	assert.NoError(t, svc.Logout())
}

func TestRestoreIgnoresCorruptSessionFile(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	require.NoError(t, os.WriteFile(cfg.Storage.SessionFile, []byte("{not json"), 0600))

	svc := auth.NewService(cfg, nil, testLogger())
	_, err := svc.CurrentUser()
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
}
