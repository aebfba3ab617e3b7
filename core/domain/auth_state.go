package domain

// AuthState is the reconciler's lifecycle state.
type AuthState int

const (
	StateSignedOut AuthState = iota
	StateAuthenticating
	StateSignedIn
	StateReconciling
)

func (s AuthState) String() string {
	switch s {
	case StateSignedOut:
		return "signed_out"
	case StateAuthenticating:
		return "authenticating"
	case StateSignedIn:
		return "signed_in"
	case StateReconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}

// AuthEvent is published to subscribers whenever the Current-User View
// changes. User is nil when State is StateSignedOut.
type AuthEvent struct {
	State AuthState
	User  *UserProfile
}
