package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/mixtape/internal/formatter"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/tasks"
	"github.com/urfave/cli/v3"
)

// TransferRun transfers the requested playlists, printing progress and asking what to do when one fails.
func (r *Runner) TransferRun(ctx context.Context, cmd *cli.Command) error {
	onError := strings.ToLower(cmd.String("on-error"))
	if onError != "prompt" {
		if _, err := tasks.ParseDecision(onError); err != nil {
			return fmt.Errorf("%w: --on-error must be prompt, retry, skip or abort", shared.ErrInvalidFlag)
		}
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	req, err := r.transferRequest(ctx, cmd.String("source"), cmd.String("target"), cmd.StringSlice("playlist"))
	if err != nil {
		return err
	}
	if len(req.PlaylistIDs) == 0 {
		return fmt.Errorf("%w: no playlists selected (use --playlist or mixtape select playlists)", shared.ErrMissingArgument)
	}
	source, target, err := r.signedIn(ctx, req)
	if err != nil {
		return err
	}

	con := newConsole(r)
	var decider tasks.Decider = con
	if onError != "prompt" {
		d, _ := tasks.ParseDecision(onError)
		decider = tasks.Always(d)
	}
	orch, err := r.orchestrator(decider, cmd.Int("max-attempts"))
	if err != nil {
		return err
	}

	r.logger.Info("starting transfer", "source", req.Source, "target", req.Target, "playlists", len(req.PlaylistIDs))
	r.writePlain("Transferring %d playlist(s) from %s to %s\n", len(req.PlaylistIDs), source.Name(), target.Name())

	stopHealth := r.watchHealth(ctx)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		con.run(done)
		close(finished)
	}()

	summary, runErr := orch.Run(ctx, req, con.updates)
	close(done)
	<-finished
	stopHealth()

	r.printSummary(summary)

	if path := cmd.String("report"); path != "" {
		report := formatter.NewReport(summary, source.Name(), target.Name())
		if err := formatter.WriteReport(report, path); err != nil {
			return err
		}
		r.writePlain("Report written to %s\n", path)
	}
	return runErr
}

// transferRequest fills missing flags from the persisted selection.
func (r *Runner) transferRequest(ctx context.Context, source, target string, playlists []string) (tasks.Request, error) {
	sel, err := r.selection.Load(ctx)
	if err != nil {
		return tasks.Request{}, err
	}

	req := tasks.Request{Source: sel.Source, Target: sel.Target, PlaylistIDs: sel.PlaylistIDs}
	if source != "" {
		if req.Source, err = models.ParseProviderID(source); err != nil {
			return req, fmt.Errorf("%w: --source: %v", shared.ErrInvalidFlag, err)
		}
	}
	if target != "" {
		if req.Target, err = models.ParseProviderID(target); err != nil {
			return req, fmt.Errorf("%w: --target: %v", shared.ErrInvalidFlag, err)
		}
	}
	if len(playlists) > 0 {
		req.PlaylistIDs = playlists
	}

	switch {
	case req.Source == "":
		return req, fmt.Errorf("%w: source provider (use --source or mixtape select source)", shared.ErrMissingArgument)
	case req.Target == "":
		return req, fmt.Errorf("%w: target provider (use --target or mixtape select target)", shared.ErrMissingArgument)
	case req.Source == req.Target:
		return req, fmt.Errorf("%w: source and target must differ", shared.ErrInvalidArgument)
	}
	return req, nil
}

// signedIn resolves both providers of req and checks their sessions.
func (r *Runner) signedIn(ctx context.Context, req tasks.Request) (source, target services.Service, err error) {
	if source, err = r.registry.Get(req.Source); err != nil {
		return nil, nil, err
	}
	if target, err = r.registry.Get(req.Target); err != nil {
		return nil, nil, err
	}
	for _, svc := range []services.Service{source, target} {
		if !svc.IsAuthenticated(ctx) {
			return nil, nil, fmt.Errorf("%w: %s (run mixtape auth login %s)", shared.ErrNotAuthenticated, svc.Name(), svc.ID())
		}
	}
	return source, target, nil
}

func (r *Runner) orchestrator(decider tasks.Decider, maxAttempts int) (*tasks.Orchestrator, error) {
	matcher, err := r.matcher()
	if err != nil {
		return nil, err
	}
	return tasks.NewOrchestrator(tasks.OrchestratorOptions{
		Registry:    r.registry,
		Matcher:     matcher,
		Decider:     decider,
		Recorder:    r.transfers,
		Session:     r.session,
		SearchDelay: r.config.Transfer.SearchDelay,
		MaxAttempts: maxAttempts,
		Logger:      r.logger,
	}), nil
}

// watchHealth polls provider sessions until the returned stop function is called.
func (r *Runner) watchHealth(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	monitor := services.NewHealthMonitor(r.registry, r.session, r.config.Transfer.HealthInterval, r.logger)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = monitor.Run(ctx)
	}()
	return func() {
		cancel()
		<-finished
	}
}

func (r *Runner) printSummary(summary *tasks.Summary) {
	if summary == nil || len(summary.Jobs) == 0 {
		return
	}
	r.writePlain("\n")
	r.writePlainHeader("Transfer summary")
	for _, job := range summary.Jobs {
		name := job.Playlist.Name
		if name == "" {
			name = job.Playlist.ID
		}
		switch {
		case job.Stage == tasks.Done:
			r.writePlain("✓ %s: %s\n", name, job.Summary())
		case job.Skipped:
			r.writePlain("- %s: skipped after %d attempt(s): %v\n", name, job.Attempts, job.LastError)
		default:
			r.writePlain("✗ %s: %v\n", name, job.LastError)
		}
		for _, tr := range job.Unmatched {
			r.writePlain("    not found: %s\n", tr)
		}
	}
	r.writePlainln("%d of %d playlists transferred, %d skipped", summary.Completed(), len(summary.Jobs), summary.Skipped())
}

// console prints progress and prompts for decisions from a single goroutine, so a prompt always
// follows the error it is about.
type console struct {
	r        *Runner
	in       *bufio.Scanner
	updates  chan tasks.ProgressUpdate
	requests chan *tasks.Job
	answers  chan tasks.Decision
	stage    tasks.Stage
}

func newConsole(r *Runner) *console {
	return &console{
		r:        r,
		in:       bufio.NewScanner(r.input),
		updates:  make(chan tasks.ProgressUpdate, 50),
		requests: make(chan *tasks.Job),
		answers:  make(chan tasks.Decision),
		stage:    -1,
	}
}

// Decide hands job to the console goroutine and waits for the answer.
func (c *console) Decide(ctx context.Context, job *tasks.Job) tasks.Decision {
	select {
	case c.requests <- job:
	case <-ctx.Done():
		return tasks.Abort
	}
	select {
	case d := <-c.answers:
		return d
	case <-ctx.Done():
		return tasks.Abort
	}
}

func (c *console) run(done <-chan struct{}) {
	for {
		select {
		case u := <-c.updates:
			c.print(u)
		case job := <-c.requests:
			c.drain()
			select {
			case c.answers <- c.prompt(job):
			case <-done:
				return
			}
		case <-done:
			c.drain()
			return
		}
	}
}

func (c *console) drain() {
	for {
		select {
		case u := <-c.updates:
			c.print(u)
		default:
			return
		}
	}
}

func (c *console) print(u tasks.ProgressUpdate) {
	if _, ok := u.Data.(models.Track); ok {
		c.r.logger.Debug(u.Message)
		return
	}
	if _, ok := u.Data.(*tasks.Job); ok && u.Stage == tasks.LoadingSourceTracks {
		c.stage = -1
		c.r.writePlain("\n%s\n", u.Message)
		return
	}

	switch u.Stage {
	case tasks.Done:
		c.r.writePlain("✓ %s\n", u.Message)
	case tasks.Error:
		c.r.writePlain("✗ %s\n", u.Message)
	default:
		if u.Stage != c.stage {
			c.stage = u.Stage
			c.r.writePlain("▸ %s\n", u.Stage.Title())
		}
		c.r.writePlain("    %s\n", u.Message)
	}
}

// prompt asks until it reads a valid answer. End of input aborts.
func (c *console) prompt(job *tasks.Job) tasks.Decision {
	for {
		c.r.writePlain("Retry, skip or abort %q? [r/s/a]: ", job.Playlist.Name)
		if !c.in.Scan() {
			c.r.writePlain("\n")
			return tasks.Abort
		}
		d, err := tasks.ParseDecision(c.in.Text())
		if err == nil {
			return d
		}
		c.r.writePlain("Please answer r, s or a.\n")
	}
}
