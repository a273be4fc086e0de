package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/pkg/config"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClients(t *testing.T, handler http.Handler) *Clients {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClients(config.CollaboratorsConfig{
		AuthorityRegistryURL: server.URL,
		TokenServiceURL:      server.URL,
		CredentialServiceURL: server.URL,
		CourseRegistryURL:    server.URL,
		UserRegistryURL:      server.URL,
		APIKey:               "secret",
		Timeout:              2 * time.Second,
	})
}

func TestAuthorityRegistry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/authorities/ST1AUTHORITY", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get(apiKeyHeader))
		writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
	})
	mux.HandleFunc("/authorities/ST1BROKEN", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "down"})
	})
	clients := newTestClients(t, mux)

	ok, err := clients.Authorities.IsVerifiedAuthority(context.Background(), "ST1AUTHORITY")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = clients.Authorities.IsVerifiedAuthority(context.Background(), "ST1UNKNOWN")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = clients.Authorities.IsVerifiedAuthority(context.Background(), "ST1BROKEN")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
}

func TestTokenServiceTransferAndMint(t *testing.T) {
	var transfer transferRequest
	var mint mintRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/transfers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&transfer))
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	mux.HandleFunc("/mints", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&mint))
		if mint.Amount > 1000 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "cap"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	clients := newTestClients(t, mux)

	require.NoError(t, clients.Tokens.Transfer(context.Background(), 500, "ST1STUDENT", "ST2AUTHORITY"))
	assert.Equal(t, transferRequest{Amount: 500, From: "ST1STUDENT", To: "ST2AUTHORITY"}, transfer)

	require.NoError(t, clients.Tokens.Mint(context.Background(), 100, "ST1STUDENT"))
	assert.Equal(t, models.Principal("ST1STUDENT"), mint.Recipient)

	assert.Error(t, clients.Tokens.Mint(context.Background(), 5000, "ST1STUDENT"))
}

func TestCredentialServiceMint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/credentials", func(w http.ResponseWriter, r *http.Request) {
		var req credentialRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(1), req.CourseID)
		writeJSON(w, http.StatusCreated, map[string]int64{"credential_id": 77})
	})
	clients := newTestClients(t, mux)

	id, err := clients.Credentials.MintCredential(context.Background(), 1, "ST1STUDENT")
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
}

func TestCourseRegistryGetCourse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/courses/1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": 1, "instructor": "ST1INSTRUCTOR"})
	})
	clients := newTestClients(t, mux)

	course, err := clients.Courses.GetCourse(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.Principal("ST1INSTRUCTOR"), course.Instructor)

	_, err = clients.Courses.GetCourse(context.Background(), 2)
	assert.ErrorIs(t, err, appErrors.ErrCourseNotFound)
}

func TestUserRegistry(t *testing.T) {
	var level levelRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/users/ST1STUDENT", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"level": 3})
	})
	mux.HandleFunc("/users/ST1STUDENT/level", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&level))
		w.WriteHeader(http.StatusNoContent)
	})
	clients := newTestClients(t, mux)

	profile, err := clients.Users.GetUser(context.Background(), "ST1STUDENT")
	require.NoError(t, err)
	assert.Equal(t, int64(3), profile.Level)
	assert.Equal(t, models.Principal("ST1STUDENT"), profile.Principal)

	require.NoError(t, clients.Users.UpdateLevel(context.Background(), "ST1STUDENT", 4))
	assert.Equal(t, int64(4), level.Level)
}
