package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixtape/internal/tasks"
	"github.com/desertthunder/mixtape/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for playlist transfer.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	req, err := r.transferRequest(ctx, cmd.String("source"), cmd.String("target"), nil)
	if err != nil {
		return err
	}
	source, target, err := r.signedIn(ctx, req)
	if err != nil {
		return err
	}

	// Logs would corrupt the TUI rendering.
	logPath := filepath.Join(os.TempDir(), "mixtape-tui.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()
	r.logger.SetOutput(logFile)
	defer r.logger.SetOutput(os.Stderr)

	transfer := func(ctx context.Context, req tasks.Request, decider tasks.Decider, progress chan<- tasks.ProgressUpdate) (*tasks.Summary, error) {
		orch, err := r.orchestrator(decider, 0)
		if err != nil {
			return nil, err
		}
		stopHealth := r.watchHealth(ctx)
		defer stopHealth()
		return orch.Run(ctx, req, progress)
	}

	model := ui.NewModel(ctx, ui.Options{
		Source:   source,
		Target:   target,
		Selected: req.PlaylistIDs,
		Transfer: transfer,
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
