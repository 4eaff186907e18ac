package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tabkeeper/internal/client/merge"
	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/common"
	"github.com/dmitrijs2005/tabkeeper/internal/server/store"
)

type stubStore struct {
	pushErr  error
	pullErr  error
	pushed   *models.Dataset
	pushUser string
	pullUser string
	since    int64
}

func (s *stubStore) Push(_ context.Context, userID string, payload *models.Dataset) (merge.Stats, error) {
	s.pushUser, s.pushed = userID, payload
	return merge.Stats{ServerWins: 1}, s.pushErr
}

func (s *stubStore) Pull(_ context.Context, userID string, since int64) (*models.Dataset, error) {
	s.pullUser, s.since = userID, since
	if s.pullErr != nil {
		return nil, s.pullErr
	}
	return &models.Dataset{
		Workspaces:        []models.Workspace{{Syncable: models.Syncable{ID: "w1", UpdatedAt: 10}, Name: "Work"}},
		Collections:       []models.Collection{},
		Tabs:              []models.Tab{},
		LastSyncTimestamp: 777,
	}, nil
}

func staticTokens(tokens map[string]string) TokenValidator {
	return TokenValidatorFunc(func(token string) (string, error) {
		if token == "expired" {
			return "", common.ErrTokenExpired
		}
		if user, ok := tokens[token]; ok {
			return user, nil
		}
		return "", common.ErrInvalidToken
	})
}

func newTestHandler(t *testing.T, st SyncStore) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h, err := NewHTTPHandler(Dependencies{
		Store:        st,
		Tokens:       staticTokens(map[string]string{"good": "alice"}),
		MaxBodyBytes: 1 << 16,
	})
	require.NoError(t, err)
	return h
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewHTTPHandler_RequiresDependencies(t *testing.T) {
	_, err := NewHTTPHandler(Dependencies{Tokens: staticTokens(nil)})
	assert.ErrorIs(t, err, errMissingStore)

	_, err = NewHTTPHandler(Dependencies{Store: &stubStore{}})
	assert.ErrorIs(t, err, errMissingTokens)
}

func TestPing_IsPublic(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	rec := do(h, http.MethodGet, common.RoutePing, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProtectedRoutes_RequireBearerToken(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "empty bearer", header: "Bearer   "},
		{name: "unknown token", header: "Bearer nope"},
		{name: "expired token", header: "Bearer expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, route := range []string{common.RoutePush, common.RoutePull} {
				req := httptest.NewRequest(http.MethodPost, route, strings.NewReader(`{}`))
				if tt.header != "" {
					req.Header.Set(common.AuthorizationHeaderName, tt.header)
				}
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				assert.Equal(t, http.StatusUnauthorized, rec.Code, route)
			}
		})
	}
}

func TestPush_PassesPayloadAndUser(t *testing.T) {
	st := &stubStore{}
	h := newTestHandler(t, st)

	body := `{"workspaces":[{"id":"w1","order":0,"createdAt":1,"updatedAt":2,"name":"Work"}],"lastSyncTimestamp":5}`
	rec := do(h, http.MethodPost, common.RoutePush, "good", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"localWins":0,"serverWins":1}`, rec.Body.String())
	assert.Equal(t, "alice", st.pushUser)
	require.NotNil(t, st.pushed)
	require.Len(t, st.pushed.Workspaces, 1)
	assert.Equal(t, "Work", st.pushed.Workspaces[0].Name)
}

func TestPush_MalformedBody(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	rec := do(h, http.MethodPost, common.RoutePush, "good", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_request"}`, rec.Body.String())
}

func TestPush_BodyTooLarge(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	big := `{"workspaces":[{"id":"` + strings.Repeat("x", 1<<17) + `"}]}`
	rec := do(h, http.MethodPost, common.RoutePush, "good", big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPush_ValidationErrorListsViolations(t *testing.T) {
	st := &stubStore{pushErr: &store.ValidationError{Violations: []string{"a", "b"}}}
	h := newTestHandler(t, st)

	rec := do(h, http.MethodPost, common.RoutePush, "good", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error      string   `json:"error"`
		Violations []string `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_references", resp.Error)
	assert.Equal(t, []string{"a", "b"}, resp.Violations)
}

func TestPush_StoreFailure(t *testing.T) {
	h := newTestHandler(t, &stubStore{pushErr: errors.New("disk full")})

	rec := do(h, http.MethodPost, common.RoutePush, "good", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")
}

func TestPull_ReturnsChangesAndCheckpoint(t *testing.T) {
	st := &stubStore{}
	h := newTestHandler(t, st)

	rec := do(h, http.MethodPost, common.RoutePull, "good", `{"lastSyncTimestamp":42}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", st.pullUser)
	assert.Equal(t, int64(42), st.since)

	var got models.Dataset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(777), got.LastSyncTimestamp)
	require.Len(t, got.Workspaces, 1)
	assert.Equal(t, "w1", got.Workspaces[0].ID)
}

func TestPull_RejectsNegativeCheckpoint(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	rec := do(h, http.MethodPost, common.RoutePull, "good", `{"lastSyncTimestamp":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPull_StoreFailure(t *testing.T) {
	h := newTestHandler(t, &stubStore{pullErr: errors.New("boom")})

	rec := do(h, http.MethodPost, common.RoutePull, "good", `{"lastSyncTimestamp":0}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS_Preflight(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	req := httptest.NewRequest(http.MethodOptions, common.RoutePush, http.NoBody)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ShutsDownOnCancel(t *testing.T) {
	h := newTestHandler(t, &stubStore{})
	srv := NewServer("127.0.0.1:0", h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ListenError(t *testing.T) {
	srv := NewServer("256.0.0.1:bad", http.NotFoundHandler(), nil)
	assert.Error(t, srv.Run(context.Background()))
}
