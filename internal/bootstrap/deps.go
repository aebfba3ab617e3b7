// Package bootstrap wires the auth core for a host application. The
// module exposes no listener of its own; hosts embed Dependencies and
// drive the reconciler/coordinator from their UI layer.
package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kareemamged/rashadai-sub002/adapter/out/cache"
	"github.com/kareemamged/rashadai-sub002/adapter/out/gateway"
	"github.com/kareemamged/rashadai-sub002/adapter/out/localstore"
	"github.com/kareemamged/rashadai-sub002/adapter/out/persistence"
	"github.com/kareemamged/rashadai-sub002/config"
	"github.com/kareemamged/rashadai-sub002/core/port/out"
	"github.com/kareemamged/rashadai-sub002/core/service/profile"
	"github.com/kareemamged/rashadai-sub002/core/service/session"
	"github.com/kareemamged/rashadai-sub002/pkg/detach"
	"github.com/kareemamged/rashadai-sub002/pkg/logger"
)

// Dependencies holds the wired auth core.
type Dependencies struct {
	Config *config.Config

	// Infrastructure
	Local *badger.DB
	SQLDB *sqlx.DB
	Redis *redis.Client

	// Ports
	Gateway out.AuthGateway
	Store   out.ProfileStore
	Cache   out.ProfileCache
	Vault   out.SessionVault

	// Services
	Runner      *detach.Runner
	Reconciler  *session.Reconciler
	Coordinator *profile.Coordinator
}

// Build wires everything from configuration. With REDIS_URL set the
// profile cache lives in redis (hosted deployments); otherwise it shares
// the on-device badger store with the vault.
func Build(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	logger.Init(logger.Config{
		Level:     logger.ParseLevel(cfg.LogLevel),
		Component: "authcore",
	})
	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	local, err := localstore.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DatabaseURL)
	if err != nil {
		local.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	deps := &Dependencies{
		Config: cfg,
		Local:  local,
		SQLDB:  db,
	}

	vault, err := localstore.NewBadgerVault(local, cfg.VaultKey)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Vault = vault

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Redis = redis.NewClient(opts)
		deps.Cache = cache.NewRedisCache(deps.Redis)
		zlog.Info().Msg("profile cache backed by redis")
	} else {
		deps.Cache = localstore.NewBadgerCache(local)
	}

	deps.Gateway = gateway.NewHTTPGateway(cfg.AuthURL, cfg.AuthAnonKey, cfg.RemoteTimeout)
	deps.Store = persistence.NewProfileAdapter(db, cfg.AuthURL+"/storage")

	deps.Runner = detach.NewRunner(cfg.DetachedTimeout)
	deps.Runner.SetLogger(zlog)

	deps.Reconciler = session.New(deps.Gateway, deps.Store, deps.Cache, deps.Vault, deps.Runner)
	deps.Coordinator = profile.NewCoordinator(deps.Reconciler, deps.Store, deps.Cache, deps.Vault, deps.Runner)

	zlog.Info().Str("env", cfg.Environment).Msg("auth core wired")
	return deps, nil
}

// Close releases infrastructure. Detached tasks are waited out so a host
// shutdown never leaks a half-written remote update.
func (d *Dependencies) Close() {
	if d.Runner != nil {
		d.Runner.Wait()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.SQLDB != nil {
		d.SQLDB.Close()
	}
	if d.Local != nil {
		d.Local.Close()
	}
}
