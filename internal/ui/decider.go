package ui

import (
	"context"

	"github.com/desertthunder/mixtape/internal/tasks"
)

// decisionRequest is what the model needs to render a failed job. It is copied out of the
// job on the orchestrator goroutine so the view never reads a live job.
type decisionRequest struct {
	playlist string
	stage    tasks.Stage
	err      error
	attempts int
}

// Decider is a [tasks.Decider] answered from the keyboard.
//
// Decide blocks the orchestrator until the model replies or ctx is done, in which case it aborts.
type Decider struct {
	requests chan decisionRequest
	answers  chan tasks.Decision
}

// NewDecider creates an unbuffered Decider.
func NewDecider() *Decider {
	return &Decider{
		requests: make(chan decisionRequest),
		answers:  make(chan tasks.Decision),
	}
}

func (d *Decider) Decide(ctx context.Context, job *tasks.Job) tasks.Decision {
	req := decisionRequest{
		playlist: job.Playlist.Name,
		stage:    job.FailedStage(),
		err:      job.LastError,
		attempts: job.Attempts,
	}
	if req.playlist == "" {
		req.playlist = job.Playlist.ID
	}

	select {
	case d.requests <- req:
	case <-ctx.Done():
		return tasks.Abort
	}
	select {
	case dec := <-d.answers:
		return dec
	case <-ctx.Done():
		return tasks.Abort
	}
}

// reply delivers the user's answer to the waiting Decide call.
func (d *Decider) reply(ctx context.Context, dec tasks.Decision) {
	select {
	case d.answers <- dec:
	case <-ctx.Done():
	}
}
