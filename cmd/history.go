package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixtape/internal/formatter"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/repositories"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// History prints recorded transfers, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	criteria := repositories.TransferCriteria{Limit: cmd.Int("limit")}
	switch status := models.TransferStatus(cmd.String("status")); status {
	case "":
	case models.TransferRunning, models.TransferDone, models.TransferFailed, models.TransferSkipped:
		criteria.Status = status
	default:
		return fmt.Errorf("%w: --status %q", shared.ErrInvalidFlag, status)
	}

	records, err := r.transfers.List(ctx, criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := formatter.HistoryJSON(records)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}
	_, err = r.output.Write(formatter.HistoryTable(records))
	return err
}
