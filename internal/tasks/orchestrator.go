package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/matching"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
)

// Decision is the user's answer to a failed job.
type Decision int

const (
	Retry Decision = iota
	Skip
	Abort
)

func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case Skip:
		return "skip"
	case Abort:
		return "abort"
	default:
		return ""
	}
}

// ParseDecision parses "retry", "skip" or "abort".
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "retry", "r":
		return Retry, nil
	case "skip", "s":
		return Skip, nil
	case "abort", "a", "q":
		return Abort, nil
	default:
		return Abort, fmt.Errorf("%w: decision %q", shared.ErrInvalidArgument, s)
	}
}

// Decider chooses what happens to a job that stopped in [Error].
type Decider interface {
	Decide(ctx context.Context, job *Job) Decision
}

// DeciderFunc adapts a function to [Decider].
type DeciderFunc func(ctx context.Context, job *Job) Decision

func (f DeciderFunc) Decide(ctx context.Context, job *Job) Decision { return f(ctx, job) }

// Always returns a Decider that answers d for every failure.
func Always(d Decision) Decider {
	return DeciderFunc(func(context.Context, *Job) Decision { return d })
}

// Recorder persists transfer bookkeeping. [repositories.TransferRepository] satisfies it.
type Recorder interface {
	Create(ctx context.Context, rec *models.TransferRecord) error
	Update(ctx context.Context, rec *models.TransferRecord) error
}

// Request names the playlists to move and the providers on each side.
type Request struct {
	Source      models.ProviderID
	Target      models.ProviderID
	PlaylistIDs []string
}

// Summary is the outcome of an orchestrated run.
type Summary struct {
	Source  models.ProviderID
	Target  models.ProviderID
	Jobs    []*Job
	Aborted bool
}

// Completed counts jobs that reached [Done].
func (s *Summary) Completed() int {
	n := 0
	for _, j := range s.Jobs {
		if j.Stage == Done {
			n++
		}
	}
	return n
}

// Skipped counts jobs the decider skipped.
func (s *Summary) Skipped() int {
	n := 0
	for _, j := range s.Jobs {
		if j.Skipped {
			n++
		}
	}
	return n
}

// OrchestratorOptions configures [NewOrchestrator]. Recorder and Session are optional.
type OrchestratorOptions struct {
	Registry    *services.Registry
	Matcher     *matching.Matcher
	Decider     Decider
	Recorder    Recorder
	Session     *services.Session
	SearchDelay time.Duration
	MaxAttempts int // Retries beyond this many attempts become skips; zero means unlimited
	Logger      *log.Logger
}

// Orchestrator runs transfer jobs one at a time, asking its [Decider] whenever a job fails.
type Orchestrator struct {
	opts OrchestratorOptions
}

// NewOrchestrator creates an Orchestrator. A nil Decider aborts on the first failure.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.Decider == nil {
		opts.Decider = Always(Abort)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Orchestrator{opts: opts}
}

// Run transfers each requested playlist in order.
//
// The loop moves to the next playlist only after the current one is done or skipped. A sign-out or
// expiry of either provider cancels the run, abandoning the in-flight job.
func (o *Orchestrator) Run(ctx context.Context, req Request, progress chan<- ProgressUpdate) (*Summary, error) {
	summary := &Summary{Source: req.Source, Target: req.Target}

	if len(req.PlaylistIDs) == 0 {
		return summary, fmt.Errorf("%w: no playlists selected", shared.ErrMissingArgument)
	}
	if req.Source == req.Target {
		return summary, fmt.Errorf("%w: source and target must differ (%s)", shared.ErrInvalidArgument, req.Source)
	}
	source, err := o.opts.Registry.Get(req.Source)
	if err != nil {
		return summary, err
	}
	target, err := o.opts.Registry.Get(req.Target)
	if err != nil {
		return summary, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if o.opts.Session != nil {
		events, unsubscribe := o.opts.Session.Subscribe(8)
		defer unsubscribe()
		go watchSession(events, req, cancel)
	}

	pipeline := NewPipeline(source, target, o.opts.Matcher, o.opts.SearchDelay, o.opts.Logger)
	for i, id := range req.PlaylistIDs {
		job := NewJob(models.Playlist{ID: id}, req.Source, req.Target)
		summary.Jobs = append(summary.Jobs, job)
		sendProgress(progress, transferringUpdate(i+1, len(req.PlaylistIDs), job))

		if err := o.runJob(ctx, pipeline, job, progress); err != nil {
			if errors.Is(err, shared.ErrTransferAborted) {
				summary.Aborted = true
			}
			return summary, err
		}
	}
	return summary, nil
}

// runJob runs job until it is done or skipped. It returns an error only when the whole run must stop.
func (o *Orchestrator) runJob(ctx context.Context, pipeline *Pipeline, job *Job, progress chan<- ProgressUpdate) error {
	logger := shared.WithLogger(o.opts.Logger, "job", job.ID)
	o.create(ctx, job, logger)

	for {
		job.Attempts++
		err := pipeline.Run(ctx, job, progress)
		o.update(ctx, job, logger)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}

		decision := o.opts.Decider.Decide(ctx, job)
		if decision == Retry && o.opts.MaxAttempts > 0 && job.Attempts >= o.opts.MaxAttempts {
			logger.Warn("retry limit reached, skipping", "playlist", job.Playlist.Name, "attempts", job.Attempts)
			decision = Skip
		}
		logger.Info("job failed", "playlist", job.Playlist.Name, "decision", decision, "error", job.LastError)

		switch decision {
		case Retry:
			job.Reset()
		case Skip:
			job.Skipped = true
			o.update(ctx, job, logger)
			return nil
		default:
			return fmt.Errorf("%w: %s: %v", shared.ErrTransferAborted, job.Playlist.Name, job.LastError)
		}
	}
}

// watchSession cancels the run when the source or target provider signs out or expires.
func watchSession(events <-chan services.SessionEvent, req Request, cancel context.CancelCauseFunc) {
	for e := range events {
		if e.Kind == services.SignedIn || (e.Provider != req.Source && e.Provider != req.Target) {
			continue
		}
		cancel(fmt.Errorf("%w: %s %s", shared.ErrNotAuthenticated, e.Provider, e.Kind))
		return
	}
}

func (o *Orchestrator) create(ctx context.Context, job *Job, logger *log.Logger) {
	if o.opts.Recorder == nil {
		return
	}
	if err := o.opts.Recorder.Create(ctx, job.Record()); err != nil {
		logger.Warn("failed to record transfer", "error", err)
	}
}

func (o *Orchestrator) update(ctx context.Context, job *Job, logger *log.Logger) {
	if o.opts.Recorder == nil {
		return
	}
	// Bookkeeping outlives a cancelled run.
	ctx = context.WithoutCancel(ctx)
	if err := o.opts.Recorder.Update(ctx, job.Record()); err != nil {
		logger.Warn("failed to update transfer record", "error", err)
	}
}
