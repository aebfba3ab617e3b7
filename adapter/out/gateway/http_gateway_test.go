package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/kareemamged/rashadai-sub002/core/port/out"
	"github.com/kareemamged/rashadai-sub002/pkg/apperr"
)

type fakeAuthServer struct {
	mu           sync.Mutex
	password     string
	userID       string
	email        string
	accessToken  string
	refreshToken string
	refreshes    int
	logouts      int
	failAll      bool
}

func (s *fakeAuthServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failAll {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)

		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["password"] != s.password {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		case "refresh_token":
			if body["refresh_token"] != s.refreshToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			s.refreshes++
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  s.accessToken,
			"refresh_token": s.refreshToken,
			"expires_in":    3600,
			"user":          map[string]any{"id": s.userID, "email": s.email},
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failAll {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.accessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": s.userID, "email": s.email})
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.logouts++
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newTestGateway(t *testing.T) (*HTTPGateway, *fakeAuthServer) {
	t.Helper()
	srv := &fakeAuthServer{
		password:     "secret",
		userID:       "gw-1",
		email:        "a@b.com",
		accessToken:  "access-1",
		refreshToken: "refresh-1",
	}
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)
	return NewHTTPGateway(ts.URL, "anon-key", 5*time.Second), srv
}

func TestSignInWithPassword(t *testing.T) {
	g, _ := newTestGateway(t)

	var events []out.GatewayEvent
	g.OnAuthStateChange(func(e out.GatewayEvent) { events = append(events, e) })

	user, err := g.SignInWithPassword(context.Background(), "a@b.com", "secret")
	if err != nil {
		t.Fatalf("SignInWithPassword() error = %v", err)
	}
	if user.ID != "gw-1" {
		t.Errorf("ID = %q, want gw-1", user.ID)
	}
	if len(events) != 1 || events[0].Kind != out.GatewayEventSignedIn {
		t.Errorf("events = %v, want one SIGNED_IN", events)
	}
}

func TestSignInWithPassword_Rejected(t *testing.T) {
	g, _ := newTestGateway(t)

	_, err := g.SignInWithPassword(context.Background(), "a@b.com", "wrong")
	if !apperr.HasCode(err, apperr.CodeInvalidCredentials) {
		t.Fatalf("error = %v, want INVALID_CREDENTIALS", err)
	}
}

func TestSignInWithPassword_ServerDown(t *testing.T) {
	g, srv := newTestGateway(t)
	srv.mu.Lock()
	srv.failAll = true
	srv.mu.Unlock()

	_, err := g.SignInWithPassword(context.Background(), "a@b.com", "secret")
	if !apperr.HasCode(err, apperr.CodeTransientRemote) {
		t.Fatalf("error = %v, want TRANSIENT_REMOTE", err)
	}
}

func TestCurrentUser(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	// No session yet.
	user, err := g.CurrentUser(ctx)
	if user != nil || err != nil {
		t.Fatalf("CurrentUser() with no session = %v, %v; want nil, nil", user, err)
	}

	if _, err := g.SignInWithPassword(ctx, "a@b.com", "secret"); err != nil {
		t.Fatal(err)
	}
	user, err = g.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user == nil || user.ID != "gw-1" {
		t.Errorf("CurrentUser() = %v, want gw-1", user)
	}
}

func TestCurrentUser_RefreshesExpiredToken(t *testing.T) {
	g, srv := newTestGateway(t)
	ctx := context.Background()

	if _, err := g.SignInWithPassword(ctx, "a@b.com", "secret"); err != nil {
		t.Fatal(err)
	}

	// Force expiry; the next lookup must transparently refresh.
	g.mu.Lock()
	g.token.Expiry = time.Now().Add(-time.Minute)
	g.mu.Unlock()

	user, err := g.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user == nil || user.ID != "gw-1" {
		t.Fatalf("CurrentUser() = %v, want gw-1 after refresh", user)
	}
	srv.mu.Lock()
	refreshes := srv.refreshes
	srv.mu.Unlock()
	if refreshes != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshes)
	}
}

func TestCurrentUser_RevokedSession(t *testing.T) {
	g, srv := newTestGateway(t)
	ctx := context.Background()

	if _, err := g.SignInWithPassword(ctx, "a@b.com", "secret"); err != nil {
		t.Fatal(err)
	}

	// Rotate the token server-side so the held one stops verifying.
	srv.mu.Lock()
	srv.accessToken = "rotated"
	srv.mu.Unlock()

	user, err := g.CurrentUser(ctx)
	if user != nil || err != nil {
		t.Fatalf("CurrentUser() after revocation = %v, %v; want nil, nil", user, err)
	}
	// The dead session is dropped, not retried.
	if user, _ := g.CurrentUser(ctx); user != nil {
		t.Error("gateway kept a session the server no longer honors")
	}
}

func TestSignOut(t *testing.T) {
	g, srv := newTestGateway(t)
	ctx := context.Background()

	var events []out.GatewayEvent
	g.OnAuthStateChange(func(e out.GatewayEvent) { events = append(events, e) })

	if _, err := g.SignInWithPassword(ctx, "a@b.com", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := g.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}

	srv.mu.Lock()
	logouts := srv.logouts
	srv.mu.Unlock()
	if logouts != 1 {
		t.Errorf("logout calls = %d, want 1", logouts)
	}
	if user, _ := g.CurrentUser(ctx); user != nil {
		t.Error("session survived SignOut")
	}

	last := events[len(events)-1]
	if last.Kind != out.GatewayEventSignedOut {
		t.Errorf("last event = %v, want SIGNED_OUT", last.Kind)
	}
}

func TestSignOut_WithoutSession(t *testing.T) {
	g, srv := newTestGateway(t)

	if err := g.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() without session error = %v", err)
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.logouts != 0 {
		t.Error("logout endpoint called with no session to revoke")
	}
}
