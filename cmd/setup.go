package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template when missing, then initializes the
// database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Created %s\n", r.configPath)
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return err
	}
	r.config = config

	r.logger.Info("initializing database", "path", config.Database.Path)
	if err := r.open(ctx); err != nil {
		return err
	}
	r.writePlain("✓ Database ready at %s\n", config.Database.Path)

	ids := r.registry.IDs()
	if len(ids) == 0 {
		r.writePlainln("No providers configured yet. Add credentials to %s.", r.configPath)
		return nil
	}
	r.writePlain("✓ Providers configured: %v\n", ids)
	r.writePlainln("Next: mixtape auth login <provider>")
	return nil
}
