// Package session implements the Session Reconciler: the single producer
// of the Current-User View from two independent session sources (local
// vault, hosted auth gateway) and two profile sources (local cache,
// hosted profile store).
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kareemamged/rashadai-sub002/core/domain"
	"github.com/kareemamged/rashadai-sub002/core/port/out"
	"github.com/kareemamged/rashadai-sub002/pkg/apperr"
	"github.com/kareemamged/rashadai-sub002/pkg/detach"
	"github.com/kareemamged/rashadai-sub002/pkg/logger"
)

// subscriberBuffer bounds a subscriber channel; a slow subscriber loses
// intermediate events, never the producer.
const subscriberBuffer = 8

// Reconciler owns the Current-User View. All other components treat the
// view as read-only; profile edits go through MutateCurrent.
type Reconciler struct {
	gateway out.AuthGateway
	store   out.ProfileStore
	cache   out.ProfileCache
	vault   out.SessionVault
	runner  *detach.Runner
	log     *logger.Logger

	mu          sync.RWMutex
	state       domain.AuthState
	current     *domain.UserProfile
	subscribers map[chan domain.AuthEvent]struct{}

	reconciling atomic.Bool
	now         func() time.Time
}

// New creates a Reconciler and subscribes it to the gateway's own
// session events. Remote-side events funnel into Reload; a trigger while
// a reconciliation is in flight is dropped, not queued.
func New(gateway out.AuthGateway, store out.ProfileStore, cache out.ProfileCache,
	vault out.SessionVault, runner *detach.Runner) *Reconciler {

	r := &Reconciler{
		gateway:     gateway,
		store:       store,
		cache:       cache,
		vault:       vault,
		runner:      runner,
		log:         logger.WithField("component", "reconciler"),
		state:       domain.StateSignedOut,
		subscribers: make(map[chan domain.AuthEvent]struct{}),
		now:         time.Now,
	}

	gateway.OnAuthStateChange(func(event out.GatewayEvent) {
		if event.Kind == out.GatewayEventSignedIn {
			// Our own SignIn already reconciled; Reload would only
			// duplicate the remote fetch and be dropped by the guard.
			return
		}
		runner.Go("gateway-event-reload", func(ctx context.Context) error {
			return r.Reload(ctx)
		})
	})

	return r
}

// SetClock overrides the reconciler clock. Tests only.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// CurrentUser returns the Current-User View, or nil when signed out.
func (r *Reconciler) CurrentUser() *domain.UserProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Clone()
}

// State returns the reconciler's lifecycle state.
func (r *Reconciler) State() domain.AuthState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Subscribe returns a channel of view changes. Slow consumers miss
// intermediate events; the latest state is always retrievable through
// CurrentUser.
func (r *Reconciler) Subscribe() <-chan domain.AuthEvent {
	ch := make(chan domain.AuthEvent, subscriberBuffer)
	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (r *Reconciler) Unsubscribe(ch <-chan domain.AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subscribers {
		if sub == ch {
			delete(r.subscribers, sub)
			close(sub)
			return
		}
	}
}

// publish updates the view and state, then notifies subscribers without
// ever blocking on them.
func (r *Reconciler) publish(state domain.AuthState, user *domain.UserProfile) {
	r.mu.Lock()
	r.state = state
	r.current = user.Clone()
	event := domain.AuthEvent{State: state, User: r.current.Clone()}
	subs := make([]chan domain.AuthEvent, 0, len(r.subscribers))
	for sub := range r.subscribers {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- event:
		default:
		}
	}
}

// stillCurrent reports whether an async result for userID may still be
// applied. Stale responses arriving after a sign-out or user switch are
// discarded.
func (r *Reconciler) stillCurrent(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current != nil && r.current.ID == userID
}

// MutateCurrent applies fn to the Current-User View under the view lock
// and publishes the result. It is the coordinator's write path; returns
// NOT_AUTHENTICATED when the view is empty.
func (r *Reconciler) MutateCurrent(fn func(*domain.UserProfile)) (*domain.UserProfile, error) {
	r.mu.Lock()
	if r.current == nil {
		r.mu.Unlock()
		return nil, apperr.NotAuthenticated()
	}
	fn(r.current)
	updated := r.current.Clone()
	state := r.state
	event := domain.AuthEvent{State: state, User: updated.Clone()}
	subs := make([]chan domain.AuthEvent, 0, len(r.subscribers))
	for sub := range r.subscribers {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- event:
		default:
		}
	}
	return updated, nil
}

// SignIn authenticates with (email, password) and publishes the merged
// profile. The primary path verifies the password against the profile
// store's credential state; the gateway's native check is only a
// fallback for transient primary failures, never for rejected
// credentials.
func (r *Reconciler) SignIn(ctx context.Context, email, password string) (*domain.UserProfile, error) {
	email = domain.NormalizeEmail(email)
	r.publish(domain.StateAuthenticating, nil)

	profile, err := r.signInPrimary(ctx, email, password)
	if err != nil {
		if apperr.IsTerminal(err) {
			r.publish(domain.StateSignedOut, nil)
			return nil, err
		}
		r.log.WithError(err).Warn("primary sign-in path degraded, falling back to gateway")
		profile, err = r.signInFallback(ctx, email, password)
		if err != nil {
			r.publish(domain.StateSignedOut, nil)
			return nil, err
		}
	}

	merged := r.completeSignIn(ctx, profile)
	return merged, nil
}

// signInPrimary is the self-issued session flow: block handling against
// the remote record, then password verification against the profile
// store.
func (r *Reconciler) signInPrimary(ctx context.Context, email, password string) (*domain.UserProfile, error) {
	remote, err := r.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, apperr.InvalidCredentials()
	}

	if remote.Status == domain.StatusBlocked {
		switch {
		case remote.BlockExpiresAt == nil:
			return nil, apperr.AccountBlockedPermanently()
		case remote.BlockExpiresAt.After(r.now()):
			return nil, apperr.AccountBlocked(*remote.BlockExpiresAt)
		default:
			// The block expired; clear it and continue.
			if err := r.store.ClearBlock(ctx, remote.ID); err != nil {
				return nil, err
			}
			remote.Status = domain.StatusActive
			remote.BlockExpiresAt = nil
		}
	}

	if remote.Status == domain.StatusPendingDeletion || remote.Deletion != nil {
		days := 0
		if remote.Deletion != nil {
			days = remote.Deletion.DaysRemaining
		}
		return nil, apperr.AccountPendingDeletion(days)
	}

	ok, err := r.store.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidCredentials()
	}
	return remote, nil
}

// signInFallback runs the gateway's native credential check and builds
// the best available profile for the returned user.
func (r *Reconciler) signInFallback(ctx context.Context, email, password string) (*domain.UserProfile, error) {
	gatewayUser, err := r.gateway.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return r.bestProfileFor(ctx, gatewayUser), nil
}

// bestProfileFor returns the richest profile reachable for a gateway
// user: remote record if the store answers, else the cached snapshot,
// else a minimal profile from the gateway's own fields.
func (r *Reconciler) bestProfileFor(ctx context.Context, gatewayUser *out.GatewayUser) *domain.UserProfile {
	remote, err := r.store.GetByID(ctx, gatewayUser.ID)
	if err != nil {
		r.log.WithError(err).WithUser(gatewayUser.ID).Warn("profile store unavailable, using local data")
	}
	if remote != nil {
		return remote
	}

	cached, err := r.cache.Get(ctx, gatewayUser.ID)
	if err != nil {
		r.log.WithError(err).WithUser(gatewayUser.ID).Warn("profile cache read failed")
	}
	if cached != nil {
		return cached
	}

	return &domain.UserProfile{
		ID:        gatewayUser.ID,
		Email:     domain.NormalizeEmail(gatewayUser.Email),
		CreatedAt: gatewayUser.CreatedAt,
		UpdatedAt: r.now().UTC(),
		Status:    domain.StatusActive,
	}
}

// completeSignIn merges remote and cached state, persists both local
// stores, publishes the view and emits the login activity record.
func (r *Reconciler) completeSignIn(ctx context.Context, remote *domain.UserProfile) *domain.UserProfile {
	cached, err := r.cache.Get(ctx, remote.ID)
	if err != nil {
		r.log.WithError(err).WithUser(remote.ID).Warn("profile cache read failed")
	}

	merged, divergent := mergeProfiles(remote, cached)
	if divergent {
		push := merged.Clone()
		r.runner.Go("push-local-profile", func(ctx context.Context) error {
			return r.store.Upsert(ctx, push)
		})
	}

	if err := r.cache.Put(ctx, merged); err != nil {
		r.log.WithError(err).WithUser(merged.ID).Warn("profile cache write failed")
	}
	if err := r.cache.SetLastLoginEmail(ctx, merged.Email); err != nil {
		r.log.WithError(err).Warn("last-login flag write failed")
	}

	record := domain.NewSessionRecord(*merged.Clone(), "", r.now().UTC())
	if err := r.vault.Store(ctx, record); err != nil {
		// The session still works for this process; it just won't
		// survive a restart.
		r.log.WithError(err).WithUser(merged.ID).Error("session vault write failed")
	}

	r.publish(domain.StateSignedIn, merged)

	userID := merged.ID
	r.runner.Go("record-login-activity", func(ctx context.Context) error {
		return r.store.RecordActivity(ctx, userID, "login", map[string]any{"source": "client"})
	})
	return merged
}

// Reload re-derives the Current-User View without credentials. The vault
// is consulted synchronously so a signed-in state never waits on the
// network; the gateway is reconciled afterwards. Only one reconciliation
// runs at a time; re-entrant triggers are dropped.
func (r *Reconciler) Reload(ctx context.Context) error {
	if !r.reconciling.CompareAndSwap(false, true) {
		r.log.Debug("reconciliation already in flight, trigger dropped")
		return nil
	}
	defer r.reconciling.Store(false)

	record, err := r.vault.Load(ctx)
	if err != nil {
		r.log.WithError(err).Warn("session vault read failed")
	}
	if record != nil {
		if r.State() == domain.StateSignedIn {
			r.publish(domain.StateReconciling, &record.User)
		}
		r.publish(domain.StateSignedIn, &record.User)
	}

	gatewayUser, err := r.gateway.CurrentUser(ctx)
	if err != nil {
		// Transient gateway failure: the vault's answer stands.
		r.log.WithError(err).Warn("gateway current-user lookup degraded")
		if record == nil {
			r.publish(domain.StateSignedOut, nil)
		}
		return nil
	}

	switch {
	case gatewayUser == nil && record == nil:
		r.publish(domain.StateSignedOut, nil)

	case gatewayUser == nil:
		// The gateway has no session but the vault does. The vault is an
		// independent session source; its absence remotely is not an
		// authentication failure.

	case record == nil || record.User.ID != gatewayUser.ID:
		// The two sources disagree; the gateway's user wins and gets the
		// full merge treatment.
		profile := r.bestProfileFor(ctx, gatewayUser)
		r.applyReconciled(ctx, profile)

	default:
		// Sources agree. Refresh the profile in the background so the UI
		// keeps its immediate (possibly stale) view.
		userID := record.User.ID
		r.runner.Go("background-profile-refresh", func(ctx context.Context) error {
			remote, err := r.store.GetByID(ctx, userID)
			if err != nil || remote == nil {
				return err
			}
			if !r.stillCurrent(userID) {
				return nil
			}
			r.applyReconciled(ctx, remote)
			return nil
		})
	}
	return nil
}

// applyReconciled merges a fresh remote record with the cache and
// propagates the result to the view and both local stores.
func (r *Reconciler) applyReconciled(ctx context.Context, remote *domain.UserProfile) {
	cached, err := r.cache.Get(ctx, remote.ID)
	if err != nil {
		r.log.WithError(err).WithUser(remote.ID).Warn("profile cache read failed")
	}
	merged, divergent := mergeProfiles(remote, cached)
	if divergent {
		push := merged.Clone()
		r.runner.Go("push-local-profile", func(ctx context.Context) error {
			return r.store.Upsert(ctx, push)
		})
	}

	if err := r.cache.Put(ctx, merged); err != nil {
		r.log.WithError(err).WithUser(merged.ID).Warn("profile cache write failed")
	}
	if ok, err := r.vault.Refresh(ctx, merged); err != nil {
		r.log.WithError(err).WithUser(merged.ID).Warn("session vault refresh failed")
	} else if !ok {
		record := domain.NewSessionRecord(*merged.Clone(), "", r.now().UTC())
		if err := r.vault.Store(ctx, record); err != nil {
			r.log.WithError(err).WithUser(merged.ID).Error("session vault write failed")
		}
	}

	r.publish(domain.StateSignedIn, merged)
}

// SignOut purges all local session state unconditionally; the gateway's
// own sign-out runs detached and its failure changes nothing locally.
func (r *Reconciler) SignOut(ctx context.Context) error {
	current := r.CurrentUser()

	if err := r.vault.Clear(ctx); err != nil {
		r.log.WithError(err).Error("session vault clear failed")
	}
	if current != nil {
		if err := r.cache.Delete(ctx, current.ID); err != nil {
			r.log.WithError(err).WithUser(current.ID).Warn("profile cache purge failed")
		}
	}

	r.publish(domain.StateSignedOut, nil)

	r.runner.Go("gateway-sign-out", func(ctx context.Context) error {
		return r.gateway.SignOut(ctx)
	})
	return nil
}

// CancelDeletion clears a scheduled deletion from the sign-in screen:
// the account is pending deletion, so there is no current user yet and
// the operation is credentialed.
func (r *Reconciler) CancelDeletion(ctx context.Context, email, password string) error {
	email = domain.NormalizeEmail(email)

	remote, err := r.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if remote == nil {
		return apperr.InvalidCredentials()
	}

	ok, err := r.store.VerifyPassword(ctx, email, password)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.InvalidCredentials()
	}

	if remote.Deletion == nil && remote.Status != domain.StatusPendingDeletion {
		return nil
	}
	return r.store.CancelDeletion(ctx, remote.ID)
}

// LastLoginEmail exposes the UX convenience flag for the sign-in form.
func (r *Reconciler) LastLoginEmail(ctx context.Context) string {
	email, err := r.cache.LastLoginEmail(ctx)
	if err != nil {
		return ""
	}
	return email
}
