package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixtape/internal/services"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the browser sign-in of a provider and prints the signed-in profile.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.service(ctx, cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	r.logger.Info("signing in", "provider", svc.ID())
	r.writePlain("Opening your browser to sign in to %s...\n", svc.Name())
	if err := svc.SignIn(ctx); err != nil {
		return fmt.Errorf("sign in to %s: %w", svc.Name(), err)
	}

	profile, err := svc.Profile(ctx)
	if err != nil {
		r.logger.Warn("signed in but failed to load profile", "error", err)
		return r.writePlain("✓ Signed in to %s\n", svc.Name())
	}
	return r.writePlain("✓ Signed in to %s as %s\n", svc.Name(), profileLabel(profile.Name, profile.ID))
}

// AuthLogout clears the stored session of a provider.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.service(ctx, cmd.StringArg("provider"))
	if err != nil {
		return err
	}
	if err := svc.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out of %s: %w", svc.Name(), err)
	}
	return r.writePlain("✓ Signed out of %s\n", svc.Name())
}

// AuthStatus checks each provider and prints whether its session is accepted.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	var svcs []services.Service
	if name := cmd.StringArg("provider"); name != "" {
		svc, err := r.service(ctx, name)
		if err != nil {
			return err
		}
		svcs = append(svcs, svc)
	} else {
		if err := r.open(ctx); err != nil {
			return err
		}
		for _, id := range r.registry.IDs() {
			svc, _ := r.registry.Get(id)
			svcs = append(svcs, svc)
		}
	}

	if len(svcs) == 0 {
		return r.writePlain("No providers configured. Add credentials to %s.\n", r.configPath)
	}

	for _, svc := range svcs {
		if !svc.IsAuthenticated(ctx) {
			r.writePlain("✗ %s: not signed in\n", svc.Name())
			continue
		}
		profile, err := svc.Profile(ctx)
		if err != nil {
			r.logger.Debug("profile lookup failed", "provider", svc.ID(), "error", err)
			r.writePlain("✓ %s: signed in\n", svc.Name())
			continue
		}
		r.writePlain("✓ %s: signed in as %s\n", svc.Name(), profileLabel(profile.Name, profile.ID))
	}
	return nil
}

func profileLabel(name, id string) string {
	if name == "" {
		return id
	}
	return name
}
