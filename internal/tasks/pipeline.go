package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/matching"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
)

// Pipeline drives a [Job] through its stages between one source and one target service.
type Pipeline struct {
	source       services.Service
	target       services.Service
	resolver     *Resolver
	materializer *Materializer
	inserter     *Inserter
	logger       *log.Logger
}

// NewPipeline wires the resolver, materializer and inserter for a source and target pair.
func NewPipeline(source, target services.Service, matcher *matching.Matcher, searchDelay time.Duration, logger *log.Logger) *Pipeline {
	return &Pipeline{
		source:       source,
		target:       target,
		resolver:     NewResolver(target, matcher, searchDelay, logger),
		materializer: NewMaterializer(target, logger),
		inserter:     NewInserter(target, logger),
		logger:       logger,
	}
}

// Run executes the job from its current stage until [Done].
//
// A failing stage moves the job to [Error] and returns the error. A job in [Error] must be
// [Job.Reset] before it runs again.
func (p *Pipeline) Run(ctx context.Context, job *Job, progress chan<- ProgressUpdate) error {
	switch job.Stage {
	case Done:
		return nil
	case Error:
		return fmt.Errorf("%w: %s", shared.ErrJobNotReset, job.ID)
	}

	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now()
	}

	for job.Stage != Done {
		if err := p.step(ctx, job, progress); err != nil {
			job.fail(err)
			p.logger.Error("transfer stage failed", "playlist", job.Playlist.Name, "stage", job.failedStage, "error", err)
			sendProgress(progress, errorUpdate(job))
			return err
		}
	}

	job.CompletedAt = time.Now()
	p.logger.Info("transfer done", "playlist", job.Playlist.Name, "result", job.Summary())
	sendProgress(progress, doneUpdate(job))
	return nil
}

func (p *Pipeline) step(ctx context.Context, job *Job, progress chan<- ProgressUpdate) error {
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}

	switch job.Stage {
	case LoadingSourceTracks:
		if err := p.loadSource(ctx, job, progress); err != nil {
			return err
		}
		return job.advance(CreatingTargetPlaylist)
	case CreatingTargetPlaylist:
		id, created, err := p.materializer.Materialize(ctx, job.Playlist)
		if err != nil {
			return err
		}
		job.TargetPlaylistID, job.Created = id, created
		sendProgress(progress, playlistReadyUpdate(job.Playlist.Name, id, p.target.Name(), created))
		return job.advance(LoadingTargetTracks)
	case LoadingTargetTracks:
		sendProgress(progress, checkingExistingUpdate(p.target.Name()))
		existing, err := p.inserter.Existing(ctx, job.TargetPlaylistID)
		if err != nil {
			return err
		}
		job.ExistingTrackIDs = existing
		return job.advance(AddingTracks)
	case AddingTracks:
		result, err := p.inserter.Insert(ctx, job.TargetPlaylistID, job.TargetTrackIDs, job.ExistingTrackIDs, progress)
		job.Inserted = result
		if err != nil {
			return err
		}
		return job.advance(Done)
	default:
		return fmt.Errorf("unexpected stage %s", job.Stage)
	}
}

// loadSource fills in the playlist, lists its tracks and resolves them against the target.
func (p *Pipeline) loadSource(ctx context.Context, job *Job, progress chan<- ProgressUpdate) error {
	if job.Playlist.Name == "" {
		pl, err := p.source.GetPlaylist(ctx, job.Playlist.ID)
		if err != nil {
			return fmt.Errorf("get playlist %s: %w", job.Playlist.ID, err)
		}
		job.Playlist = *pl
	}

	sendProgress(progress, loadingSourceUpdate(job, p.source.Name()))
	tracks, err := p.source.ListPlaylistTracks(ctx, job.Playlist.ID)
	if err != nil {
		return fmt.Errorf("list source tracks: %w", err)
	}
	if tracks == nil {
		tracks = []models.Track{}
	}

	res, err := p.resolver.Resolve(ctx, tracks, progress)
	if err != nil {
		return err
	}

	job.SourceTracks = tracks
	job.TargetTrackIDs = res.TrackIDs
	job.Matches = res.Matches
	job.Unmatched = res.Unmatched
	return nil
}
