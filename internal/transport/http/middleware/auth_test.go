package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/usecase"
)

type fakeResolver struct {
	principal domain.Principal
	err       error
	seen      string
}

func (f *fakeResolver) Principal(_ context.Context, raw string) (domain.Principal, error) {
	f.seen = raw
	return f.principal, f.err
}

type fakeAuthorizer struct {
	err   error
	names []string
}

func (f *fakeAuthorizer) Authorize(_ context.Context, _ domain.Principal, names ...string) error {
	f.names = names
	return f.err
}

func newAuthRouter(t *testing.T, resolver PrincipalResolver, authz Authorizer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	router := gin.New()
	router.Use(EnrichContext())
	router.GET("/guarded",
		RequireAuth(resolver, log),
		RequirePermission(authz, log, domain.PermissionStaffList),
		func(c *gin.Context) {
			principal, _ := GetPrincipal(c)
			c.String(http.StatusOK, principal.UserID)
		},
	)
	return router
}

func TestRequireAuthRejectsMissingBearer(t *testing.T) {
	resolver := &fakeResolver{}
	router := newAuthRouter(t, resolver, &fakeAuthorizer{})

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rr.Code)
		}
		var body ErrorBody
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Message != "Unauthenticated." {
			t.Fatalf("unexpected message %q", body.Message)
		}
	}
	if resolver.seen != "" {
		t.Fatalf("resolver should not be called, got %q", resolver.seen)
	}
}

func TestRequireAuthHidesRejectionReason(t *testing.T) {
	for _, cause := range []error{usecase.ErrExpiredAccessToken, usecase.ErrRevokedAccessToken, usecase.ErrInvalidAccessToken} {
		router := newAuthRouter(t, &fakeResolver{err: cause}, &fakeAuthorizer{})

		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		req.Header.Set("Authorization", "Bearer token")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%v: expected 401, got %d", cause, rr.Code)
		}
		var body ErrorBody
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Message != "Unauthenticated." || body.Errors != nil {
			t.Fatalf("%v: response leaks detail: %+v", cause, body)
		}
	}
}

func TestRequireAuthStoresPrincipal(t *testing.T) {
	resolver := &fakeResolver{principal: domain.Principal{UserID: "user-1"}}
	authz := &fakeAuthorizer{}
	router := newAuthRouter(t, resolver, authz)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "bearer  raw-token ")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "user-1" {
		t.Fatalf("unexpected principal %q", rr.Body.String())
	}
	if resolver.seen != "raw-token" {
		t.Fatalf("expected trimmed token, got %q", resolver.seen)
	}
	if len(authz.names) != 1 || authz.names[0] != domain.PermissionStaffList {
		t.Fatalf("unexpected permission check %v", authz.names)
	}
	if rr.Header().Get(TraceIDHeader) == "" {
		t.Fatal("expected trace id header")
	}
}

func TestRequirePermissionForbidden(t *testing.T) {
	router := newAuthRouter(t, &fakeResolver{principal: domain.Principal{UserID: "user-1"}}, &fakeAuthorizer{err: usecase.ErrForbidden})

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequirePermissionInternalError(t *testing.T) {
	router := newAuthRouter(t, &fakeResolver{principal: domain.Principal{UserID: "user-1"}}, &fakeAuthorizer{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if got := rr.Body.String(); got == "" || !json.Valid([]byte(got)) {
		t.Fatalf("expected JSON body, got %q", got)
	}
}
