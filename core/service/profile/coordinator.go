// Package profile implements the Profile Update Coordinator: local-first
// profile edits with best-effort remote propagation. An edit is never
// rolled back by a remote failure.
package profile

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/crypto/bcrypt"

	"github.com/kareemamged/rashadai-sub002/core/domain"
	"github.com/kareemamged/rashadai-sub002/core/port/out"
	"github.com/kareemamged/rashadai-sub002/pkg/apperr"
	"github.com/kareemamged/rashadai-sub002/pkg/detach"
	"github.com/kareemamged/rashadai-sub002/pkg/logger"
)

// ViewOwner is the reconciler's surface the coordinator writes through.
// The coordinator never owns the Current-User View.
type ViewOwner interface {
	CurrentUser() *domain.UserProfile
	MutateCurrent(fn func(*domain.UserProfile)) (*domain.UserProfile, error)
}

// Coordinator applies profile edits with local-first semantics.
type Coordinator struct {
	view    ViewOwner
	store   out.ProfileStore
	cache   out.ProfileCache
	vault   out.SessionVault
	runner  *detach.Runner
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

// NewCoordinator creates a Coordinator. The circuit breaker guards the
// structured upsert path so a flapping remote store fails over to the
// secondary path quickly instead of waiting out every timeout.
func NewCoordinator(view ViewOwner, store out.ProfileStore, cache out.ProfileCache,
	vault out.SessionVault, runner *detach.Runner) *Coordinator {

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "profile-upsert",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Coordinator{
		view:    view,
		store:   store,
		cache:   cache,
		vault:   vault,
		runner:  runner,
		breaker: breaker,
		log:     logger.WithField("component", "coordinator"),
	}
}

// UpdateProfile merges partial fields into the Current-User View and the
// cache synchronously, then propagates remotely best-effort. The only
// caller-facing error is NOT_AUTHENTICATED; the returned profile always
// reflects the edit.
func (c *Coordinator) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (*domain.UserProfile, error) {
	merged, err := c.view.MutateCurrent(func(p *domain.UserProfile) {
		patch.Apply(p)
	})
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return merged, nil
	}

	// Step 1 cannot fail from the caller's perspective: local store
	// hiccups are logged and the in-memory view stays authoritative.
	if err := c.cache.Put(ctx, merged); err != nil {
		c.log.WithError(err).WithUser(merged.ID).Warn("profile cache write failed")
	}
	if _, err := c.vault.Refresh(ctx, merged); err != nil {
		c.log.WithError(err).WithUser(merged.ID).Warn("session vault refresh failed")
	}

	// Step 2: layered best-effort remote propagation. Last remote write
	// wins across concurrent edits; the local merge above already ran in
	// call order.
	push := merged.Clone()
	fields := patch.Fields()
	c.runner.Go("profile-remote-update", func(ctx context.Context) error {
		_, err := c.breaker.Execute(func() (any, error) {
			return nil, c.store.Upsert(ctx, push)
		})
		if err == nil {
			return nil
		}
		c.log.WithError(err).WithUser(push.ID).Warn("structured upsert failed, trying field update")

		// Both layers failing leaves local state authoritative until a
		// future reconciliation; the runner logs the final error.
		return c.store.UpdateFields(ctx, push.ID, fields)
	})

	return merged, nil
}

// UpdateAvatar compresses the image, uploads it, and falls back to an
// embedded data URI when the upload fails entirely, so the avatar is
// never blank.
func (c *Coordinator) UpdateAvatar(ctx context.Context, imageData []byte) (*domain.UserProfile, error) {
	user := c.view.CurrentUser()
	if user == nil {
		return nil, apperr.NotAuthenticated()
	}

	compressed, err := CompressAvatar(imageData)
	if err != nil {
		return nil, fmt.Errorf("decode avatar image: %w", err)
	}

	avatar, err := c.store.UploadAvatar(ctx, user.ID, compressed, "image/jpeg")
	if err != nil {
		c.log.WithError(err).WithUser(user.ID).Warn("avatar upload failed, embedding data URI")
		avatar = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(compressed)
	}

	return c.UpdateProfile(ctx, domain.ProfilePatch{Avatar: &avatar})
}

// ChangePassword verifies the current password and replaces the stored
// hash. Unlike profile edits this surfaces remote errors: a silently
// dropped password change would be worse than an error.
func (c *Coordinator) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	user := c.view.CurrentUser()
	if user == nil {
		return apperr.NotAuthenticated()
	}

	ok, err := c.store.VerifyPassword(ctx, user.Email, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.InvalidCredentials()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return c.store.UpdatePassword(ctx, user.ID, string(hash))
}

// CancelDeletion clears the current user's scheduled deletion remotely
// and locally. No-op when nothing is scheduled.
func (c *Coordinator) CancelDeletion(ctx context.Context) error {
	user := c.view.CurrentUser()
	if user == nil {
		return apperr.NotAuthenticated()
	}
	if user.Deletion == nil && user.Status != domain.StatusPendingDeletion {
		return nil
	}

	if err := c.store.CancelDeletion(ctx, user.ID); err != nil {
		return err
	}

	updated, err := c.view.MutateCurrent(func(p *domain.UserProfile) {
		p.Deletion = nil
		p.Status = domain.StatusActive
		p.UpdatedAt = time.Now().UTC()
	})
	if err != nil {
		return err
	}
	if err := c.cache.Put(ctx, updated); err != nil {
		c.log.WithError(err).WithUser(updated.ID).Warn("profile cache write failed")
	}
	return nil
}
