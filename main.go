// Command authctl is a thin terminal driver around the auth core. It
// exists for local development and smoke testing; the library itself is
// consumed through internal/bootstrap by host applications.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kareemamged/rashadai-sub002/config"
	"github.com/kareemamged/rashadai-sub002/core/domain"
	"github.com/kareemamged/rashadai-sub002/internal/bootstrap"
	"github.com/kareemamged/rashadai-sub002/pkg/logger"
)

const commandTimeout = 30 * time.Second

func main() {
	logger.Init(logger.Config{
		Level:     logger.LevelInfo,
		Component: "authctl",
	})

	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	fields := flag.String("set", "", "profile edits as k=v pairs, comma separated (name, bio, website)")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		fmt.Fprintln(os.Stderr, "usage: authctl [flags] login|whoami|update|change-password|cancel-deletion|logout")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, commandTimeout)
	defer cancelTimeout()

	deps, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to wire auth core")
	}
	defer deps.Close()

	if err := run(ctx, deps, command, *email, *password, *fields); err != nil {
		logger.WithError(err).Fatal("command failed")
	}
}

func run(ctx context.Context, deps *bootstrap.Dependencies, command, email, password, fields string) error {
	switch command {
	case "login":
		user, err := deps.Reconciler.SignIn(ctx, email, password)
		if err != nil {
			return err
		}
		printProfile(user)
		return nil

	case "whoami":
		if err := deps.Reconciler.Reload(ctx); err != nil {
			return err
		}
		user := deps.Reconciler.CurrentUser()
		if user == nil {
			fmt.Println("signed out")
			if last := deps.Reconciler.LastLoginEmail(ctx); last != "" {
				fmt.Printf("last login: %s\n", last)
			}
			return nil
		}
		printProfile(user)
		return nil

	case "update":
		if err := deps.Reconciler.Reload(ctx); err != nil {
			return err
		}
		patch, err := parsePatch(fields)
		if err != nil {
			return err
		}
		user, err := deps.Coordinator.UpdateProfile(ctx, patch)
		if err != nil {
			return err
		}
		printProfile(user)
		return nil

	case "change-password":
		if err := deps.Reconciler.Reload(ctx); err != nil {
			return err
		}
		newPassword := flag.Arg(1)
		return deps.Coordinator.ChangePassword(ctx, password, newPassword)

	case "cancel-deletion":
		return deps.Reconciler.CancelDeletion(ctx, email, password)

	case "logout":
		return deps.Reconciler.SignOut(ctx)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func parsePatch(fields string) (domain.ProfilePatch, error) {
	var patch domain.ProfilePatch
	if fields == "" {
		return patch, nil
	}
	for _, pair := range strings.Split(fields, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return patch, fmt.Errorf("malformed field %q, want k=v", pair)
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "name":
			patch.Name = &value
		case "bio":
			patch.Bio = &value
		case "website":
			patch.Website = &value
		case "phone":
			patch.Phone = &value
		case "profession":
			patch.Profession = &value
		default:
			return patch, fmt.Errorf("unsupported field %q", key)
		}
	}
	return patch, nil
}

func printProfile(p *domain.UserProfile) {
	fmt.Printf("id:     %s\n", p.ID)
	fmt.Printf("email:  %s\n", p.Email)
	if p.Name != nil {
		fmt.Printf("name:   %s\n", *p.Name)
	}
	if p.Bio != nil {
		fmt.Printf("bio:    %s\n", *p.Bio)
	}
	fmt.Printf("status: %s\n", p.Status)
}
