package out

import (
	"context"
	"time"
)

// GatewayUser is the hosted auth provider's notion of a user. It carries
// only what the gateway knows; the full profile lives in the profile
// store.
type GatewayUser struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// GatewayEventKind classifies gateway-side session events.
type GatewayEventKind string

const (
	GatewayEventSignedIn  GatewayEventKind = "SIGNED_IN"
	GatewayEventSignedOut GatewayEventKind = "SIGNED_OUT"
	GatewayEventRefreshed GatewayEventKind = "TOKEN_REFRESHED"
)

// GatewayEvent is delivered on remote-side login/logout events.
type GatewayEvent struct {
	Kind GatewayEventKind
	User *GatewayUser
}

// AuthGateway is the outbound port for the hosted auth provider.
type AuthGateway interface {
	// SignInWithPassword runs the gateway's native credential check.
	// Rejected credentials return an INVALID_CREDENTIALS error; transport
	// failures return TRANSIENT_REMOTE.
	SignInWithPassword(ctx context.Context, email, password string) (*GatewayUser, error)

	// CurrentUser returns the gateway's current user, or nil when the
	// gateway holds no session.
	CurrentUser(ctx context.Context) (*GatewayUser, error)

	// SignOut revokes the gateway-side session.
	SignOut(ctx context.Context) error

	// OnAuthStateChange registers a callback for remote session events.
	OnAuthStateChange(fn func(GatewayEvent))
}
