package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/infra/config"
	httproutes "github.com/jebauza/VetFlow/internal/transport/http/routes"
	"github.com/jebauza/VetFlow/internal/usecase"
)

type stubTokens struct{}

func (stubTokens) Principal(_ context.Context, raw string) (domain.Principal, error) {
	if raw != "good" {
		return domain.Principal{}, usecase.ErrInvalidAccessToken
	}
	return domain.Principal{UserID: "0f8fad5b-d9cb-469f-a165-70867728950e"}, nil
}

type stubAuthz struct {
	allowed map[string]bool
}

func (s stubAuthz) Authorize(_ context.Context, _ domain.Principal, names ...string) error {
	for _, name := range names {
		if s.allowed[name] {
			return nil
		}
	}
	return usecase.ErrForbidden
}

func (stubAuthz) AssignRoles(context.Context, string, []string) error           { return nil }
func (stubAuthz) SyncRoles(context.Context, string, []string) error             { return nil }
func (stubAuthz) AssignPermissions(context.Context, string, []string) error     { return nil }
func (stubAuthz) SyncPermissions(context.Context, string, []string) error       { return nil }
func (stubAuthz) AssignRolePermissions(context.Context, string, []string) error { return nil }

type stubPermissions struct{}

func (stubPermissions) List(context.Context, string) ([]domain.Permission, error) {
	return []domain.Permission{{ID: "7c9e6679-7425-40de-944b-e07fc1f90ae7", Name: domain.PermissionRoleList}}, nil
}

func newEngine(t *testing.T, allowed ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[name] = true
	}

	return httproutes.Register(httproutes.Dependencies{
		Config: &config.AppConfig{App: config.AppSettings{Env: "test"}},
		Logger: zaptest.NewLogger(t),
		Services: httproutes.ServiceSet{
			Tokens:        stubTokens{},
			Authorization: stubAuthz{allowed: set},
			Permissions:   stubPermissions{},
		},
	})
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newEngine(t)

	w := serve(r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Header().Get("X-Trace-ID") == "" {
		t.Fatalf("expected trace id header on every response")
	}
}

func TestPermissionsRequireToken(t *testing.T) {
	r := newEngine(t, domain.PermissionRoleList)

	w := serve(r, http.MethodGet, "/api/v1/permissions", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "Unauthenticated." {
		t.Fatalf("unexpected message %v", body["message"])
	}
}

func TestPermissionsGatedByRoleList(t *testing.T) {
	denied := newEngine(t)
	if w := serve(denied, http.MethodGet, "/api/v1/permissions", "good"); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	allowed := newEngine(t, domain.PermissionRoleList)
	w := serve(allowed, http.MethodGet, "/api/v1/permissions", "good")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Message string `json:"message"`
		Data    []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != "OK" || len(body.Data) != 1 || body.Data[0].Name != domain.PermissionRoleList {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	r := newEngine(t)
	if w := serve(r, http.MethodGet, "/api/v1/nope", "good"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
