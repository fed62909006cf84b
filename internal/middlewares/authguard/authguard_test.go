package authguard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/opsdeck/console/internal/auth"
	"github.com/opsdeck/console/model"
)

type fakeAuthorizer struct {
	claims *auth.Claims
	err    error
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, token string) (*auth.Claims, error) {
	return f.claims, f.err
}

func newTestApp(authorizer Authorizer) *fiber.App {
	app := fiber.New()
	app.Use(New(Config{Authorizer: authorizer, CookieName: "console_session"}))
	app.Get("/protected", func(ctx *fiber.Ctx) error {
		return ctx.SendString("ok")
	})
	app.Get("/admin", RequireRole(model.RoleSuperAdmin), func(ctx *fiber.Ctx) error {
		return ctx.SendString("admin ok")
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, path string, decorate func(*http.Request)) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if decorate != nil {
		decorate(req)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestMissingTokenRedirectsBrowser(t *testing.T) {
	app := newTestApp(&fakeAuthorizer{})
	resp := doRequest(t, app, "/protected", func(req *http.Request) {
		req.Header.Set("Accept", "text/html")
	})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestMissingTokenRejectsAPIClient(t *testing.T) {
	app := newTestApp(&fakeAuthorizer{})
	resp := doRequest(t, app, "/protected", func(req *http.Request) {
		req.Header.Set("Accept", "application/json")
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestBearerTokenAccepted(t *testing.T) {
	claims := &auth.Claims{Email: "alice@example.com", Role: model.RoleMember}
	app := newTestApp(&fakeAuthorizer{claims: claims})
	resp := doRequest(t, app, "/protected", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer some-token")
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestCookieTokenAccepted(t *testing.T) {
	claims := &auth.Claims{Email: "alice@example.com", Role: model.RoleMember}
	app := newTestApp(&fakeAuthorizer{claims: claims})
	resp := doRequest(t, app, "/protected", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "console_session", Value: "some-token"})
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestRejectionHeaders(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"suspended account", auth.ErrAccountSuspended, http.StatusForbidden, ReasonAccountSuspended},
		{"inactive company", auth.ErrCompanyInactive, http.StatusForbidden, ReasonCompanyInactive},
		{"dead session", auth.ErrSessionInvalid, http.StatusUnauthorized, ReasonInvalidSession},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&fakeAuthorizer{err: tt.err})
			resp := doRequest(t, app, "/protected", func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer some-token")
			})
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if reason := resp.Header.Get(HeaderAuthError); reason != tt.wantReason {
				t.Errorf("%s = %q, want %q", HeaderAuthError, reason, tt.wantReason)
			}
		})
	}
}

func TestInvalidTokenHasNoReasonHeader(t *testing.T) {
	app := newTestApp(&fakeAuthorizer{err: auth.ErrTokenInvalid})
	resp := doRequest(t, app, "/protected", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer garbage")
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if reason := resp.Header.Get(HeaderAuthError); reason != "" {
		t.Errorf("unexpected %s header %q", HeaderAuthError, reason)
	}
}

func TestRequireRole(t *testing.T) {
	member := &auth.Claims{Email: "alice@example.com", Role: model.RoleMember}
	app := newTestApp(&fakeAuthorizer{claims: member})
	resp := doRequest(t, app, "/admin", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer some-token")
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("member status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	admin := &auth.Claims{Email: "root@example.com", Role: model.RoleSuperAdmin}
	app = newTestApp(&fakeAuthorizer{claims: admin})
	resp = doRequest(t, app, "/admin", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer some-token")
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("super admin status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
