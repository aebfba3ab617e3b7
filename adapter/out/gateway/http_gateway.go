// Package gateway implements the hosted auth provider adapter over its
// REST interface.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/kareemamged/rashadai-sub002/core/port/out"
	"github.com/kareemamged/rashadai-sub002/pkg/apperr"
	"github.com/kareemamged/rashadai-sub002/pkg/logger"
)

// HTTPGateway implements out.AuthGateway against a GoTrue-style auth
// endpoint. The issued session is kept as an oauth2.Token so expiry
// checks and refresh bookkeeping follow the standard shape.
type HTTPGateway struct {
	baseURL string
	anonKey string
	client  *http.Client

	mu        sync.Mutex
	token     *oauth2.Token
	user      *out.GatewayUser
	listeners []func(out.GatewayEvent)
}

// NewHTTPGateway creates a gateway adapter. timeout bounds every call.
func NewHTTPGateway(baseURL, anonKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		anonKey: anonKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	User         gatewayUser `json:"user"`
}

type gatewayUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *gatewayUser) toPort() *out.GatewayUser {
	return &out.GatewayUser{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (g *HTTPGateway) post(ctx context.Context, path string, body any, bearer string) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return g.client.Do(req)
}

// SignInWithPassword runs the gateway's native credential check.
func (g *HTTPGateway) SignInWithPassword(ctx context.Context, email, password string) (*out.GatewayUser, error) {
	resp, err := g.post(ctx, "/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		return nil, apperr.TransientRemote("auth-gateway", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// handled below
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return nil, apperr.InvalidCredentials()
	default:
		return nil, apperr.TransientRemote("auth-gateway",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, apperr.TransientRemote("auth-gateway", err)
	}

	user := tr.User.toPort()
	g.setSession(&tr, user)
	g.emit(out.GatewayEvent{Kind: out.GatewayEventSignedIn, User: user})
	return user, nil
}

// CurrentUser returns the gateway's current user, refreshing an expired
// token when a refresh token is available. nil means no session.
func (g *HTTPGateway) CurrentUser(ctx context.Context) (*out.GatewayUser, error) {
	g.mu.Lock()
	token := g.token
	g.mu.Unlock()

	if token == nil {
		return nil, nil
	}
	if !token.Valid() {
		if err := g.refresh(ctx, token.RefreshToken); err != nil {
			return nil, err
		}
		g.mu.Lock()
		token = g.token
		g.mu.Unlock()
		if token == nil {
			return nil, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", g.anonKey)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, apperr.TransientRemote("auth-gateway", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var u gatewayUser
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return nil, apperr.TransientRemote("auth-gateway", err)
		}
		user := u.toPort()
		g.mu.Lock()
		g.user = user
		g.mu.Unlock()
		return user, nil
	case resp.StatusCode == http.StatusUnauthorized:
		// The gateway no longer honors this session.
		g.dropSession()
		return nil, nil
	default:
		return nil, apperr.TransientRemote("auth-gateway",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

func (g *HTTPGateway) refresh(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		g.dropSession()
		return nil
	}
	resp, err := g.post(ctx, "/token?grant_type=refresh_token", map[string]string{
		"refresh_token": refreshToken,
	}, "")
	if err != nil {
		return apperr.TransientRemote("auth-gateway", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		g.dropSession()
		return nil
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return apperr.TransientRemote("auth-gateway", err)
	}
	user := tr.User.toPort()
	g.setSession(&tr, user)
	g.emit(out.GatewayEvent{Kind: out.GatewayEventRefreshed, User: user})
	return nil
}

// SignOut revokes the gateway-side session. The local session is dropped
// regardless of the outcome.
func (g *HTTPGateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	token := g.token
	g.mu.Unlock()

	g.dropSession()
	g.emit(out.GatewayEvent{Kind: out.GatewayEventSignedOut})

	if token == nil {
		return nil
	}
	resp, err := g.post(ctx, "/logout", nil, token.AccessToken)
	if err != nil {
		return apperr.TransientRemote("auth-gateway", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return apperr.TransientRemote("auth-gateway",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

// OnAuthStateChange registers a callback for remote session events.
func (g *HTTPGateway) OnAuthStateChange(fn func(out.GatewayEvent)) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

func (g *HTTPGateway) setSession(tr *tokenResponse, user *out.GatewayUser) {
	g.mu.Lock()
	g.token = &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	g.user = user
	g.mu.Unlock()
}

func (g *HTTPGateway) dropSession() {
	g.mu.Lock()
	g.token = nil
	g.user = nil
	g.mu.Unlock()
}

func (g *HTTPGateway) emit(event out.GatewayEvent) {
	g.mu.Lock()
	listeners := make([]func(out.GatewayEvent), len(g.listeners))
	copy(listeners, g.listeners)
	g.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
	logger.WithField("kind", string(event.Kind)).Debug("gateway auth event")
}
