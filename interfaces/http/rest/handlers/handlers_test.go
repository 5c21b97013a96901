package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"internship-backend/infrastructure/persistence/connection"
	"internship-backend/infrastructure/persistence/memory"
	"internship-backend/interfaces/http/rest/handlers"
	apperrors "internship-backend/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Count   int             `json:"count"`
}

func newResourceServer(t *testing.T, withConn bool) http.Handler {
	t.Helper()
	h := handlers.NewResourceHandler("jobs", validator.New(), apperrors.NewErrorHandler(zap.NewNop(), false), zap.NewNop())
	conn := memory.NewConnection(memory.NewStore(), "portal")
	routes := h.Routes()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if withConn {
			r = r.WithContext(connection.WithConnection(r.Context(), conn))
		}
		routes.ServeHTTP(w, r)
	})
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestResourceHandlerCRUD(t *testing.T) {
	h := newResourceServer(t, true)

	rec, env := do(t, h, http.MethodPost, "/", `{"id":"client-chosen","title":"Backend intern","city":"Lahore"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	id, _ := created["id"].(string)
	assert.NotEqual(t, "client-chosen", id)
	assert.Len(t, id, 36)
	assert.NotEmpty(t, created["createdAt"])
	assert.Equal(t, created["createdAt"], created["updatedAt"])

	_, _ = do(t, h, http.MethodPost, "/", `{"title":"Frontend intern","city":"Karachi"}`)

	t.Run("list filters by query parameters", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/?city=Lahore", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, env.Count)

		rec, env = do(t, h, http.MethodGet, "/?limit=1&offset=0", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, env.Count)
	})

	t.Run("get", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/"+id, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), "Backend intern")
	})

	t.Run("patch merges and keeps identity", func(t *testing.T) {
		rec, env := do(t, h, http.MethodPatch, "/"+id, `{"id":"other","title":"Senior backend intern"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var updated map[string]interface{}
		require.NoError(t, json.Unmarshal(env.Data, &updated))
		assert.Equal(t, id, updated["id"])
		assert.Equal(t, "Senior backend intern", updated["title"])
		assert.Equal(t, "Lahore", updated["city"])
		assert.Equal(t, created["createdAt"], updated["createdAt"])
	})

	t.Run("delete then 404", func(t *testing.T) {
		rec, _ := do(t, h, http.MethodDelete, "/"+id, "")
		require.Equal(t, http.StatusOK, rec.Code)

		for _, method := range []string{http.MethodGet, http.MethodDelete} {
			rec, env := do(t, h, method, "/"+id, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, "jobs not found", env.Message)
		}
		rec, _ = do(t, h, http.MethodPut, "/"+id, `{"title":"x"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestResourceHandlerValidation(t *testing.T) {
	h := newResourceServer(t, true)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{name: "limit zero", method: http.MethodGet, target: "/?limit=0", want: http.StatusBadRequest},
		{name: "limit too large", method: http.MethodGet, target: "/?limit=501", want: http.StatusBadRequest},
		{name: "limit not a number", method: http.MethodGet, target: "/?limit=ten", want: http.StatusBadRequest},
		{name: "negative offset", method: http.MethodGet, target: "/?offset=-1", want: http.StatusBadRequest},
		{name: "max limit", method: http.MethodGet, target: "/?limit=500", want: http.StatusOK},
		{name: "missing body", method: http.MethodPost, target: "/", want: http.StatusBadRequest},
		{name: "array body", method: http.MethodPost, target: "/", body: `[1,2]`, want: http.StatusBadRequest},
		{name: "null body", method: http.MethodPost, target: "/", body: `null`, want: http.StatusBadRequest},
		{name: "body over 10MB", method: http.MethodPost, target: "/", body: fmt.Sprintf(`{"blob":"%s"}`, strings.Repeat("x", handlers.MaxBodyBytes)), want: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.want < 300, env.Success)
		})
	}
}

func TestResourceHandlerWithoutConnection(t *testing.T) {
	h := newResourceServer(t, false)

	rec, env := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
}

type healthSource struct {
	configured bool
	state      connection.State
}

func (s healthSource) Configured() bool        { return s.configured }
func (s healthSource) State() connection.State { return s.state }

func TestHealthHandler(t *testing.T) {
	t.Run("health without configuration is still 200", func(t *testing.T) {
		h := handlers.NewHealthHandler(healthSource{}, "development", false, zap.NewNop())
		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body handlers.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "OK", body.Status)
		assert.False(t, body.Database.Connected)
		assert.False(t, body.Database.ConfigPresent)
		assert.Equal(t, 0, body.Database.ReadyState)
	})

	t.Run("health reports connecting", func(t *testing.T) {
		h := handlers.NewHealthHandler(healthSource{configured: true, state: connection.Connecting}, "production", true, zap.NewNop())
		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		var body handlers.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 2, body.Database.ReadyState)
		assert.True(t, body.Database.ConfigPresent)
		assert.True(t, body.Database.MongoURISet)
		assert.Equal(t, "production", body.Environment)
	})

	t.Run("root", func(t *testing.T) {
		h := handlers.NewHealthHandler(healthSource{}, "production", true, zap.NewNop())
		rec := httptest.NewRecorder()
		h.Root(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body handlers.RootResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Backend is running", body.Message)
		assert.True(t, body.IsServerless)
		assert.Equal(t, "/health", body.HealthEndpoint)
		assert.GreaterOrEqual(t, body.Uptime, 0.0)
	})
}
