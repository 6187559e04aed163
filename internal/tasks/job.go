package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

// Job is the in-memory state of one playlist transfer.
type Job struct {
	ID               string
	Playlist         models.Playlist // Source playlist; only ID is required before the first run
	Source           models.ProviderID
	Target           models.ProviderID
	TargetPlaylistID string         // Empty until the target playlist is materialized
	Created          bool           // Target playlist was created rather than reused
	SourceTracks     []models.Track // Nil until loaded
	TargetTrackIDs   []string       // Nil until resolved
	Matches          []Match
	Unmatched        []models.Track
	ExistingTrackIDs []string // Nil until the target playlist is read
	Inserted         InsertResult
	Stage            Stage
	LastError        error
	Attempts         int
	Skipped          bool
	StartedAt        time.Time
	CompletedAt      time.Time

	failedStage Stage
}

// NewJob creates a job for the source playlist pl at [LoadingSourceTracks].
func NewJob(pl models.Playlist, source, target models.ProviderID) *Job {
	return &Job{
		ID:       shared.GenerateID(),
		Playlist: pl,
		Source:   source,
		Target:   target,
		Stage:    LoadingSourceTracks,
	}
}

// Reset returns the job to [LoadingSourceTracks] and discards everything learned by earlier attempts.
func (j *Job) Reset() {
	j.TargetPlaylistID = ""
	j.Created = false
	j.SourceTracks = nil
	j.TargetTrackIDs = nil
	j.Matches = nil
	j.Unmatched = nil
	j.ExistingTrackIDs = nil
	j.Inserted = InsertResult{}
	j.LastError = nil
	j.Skipped = false
	j.CompletedAt = time.Time{}
	j.failedStage = LoadingSourceTracks
	j.Stage = LoadingSourceTracks
}

// FailedStage is the stage that was running when the job entered [Error].
func (j *Job) FailedStage() Stage { return j.failedStage }

// Transferred is the number of resolved tracks present in the target playlist.
func (j *Job) Transferred() int {
	return j.Inserted.Added + j.Inserted.Existing
}

// Summary is the one-line result, e.g. "2 of 3 tracks transferred".
func (j *Job) Summary() string {
	return fmt.Sprintf("%d of %d tracks transferred", j.Transferred(), len(j.SourceTracks))
}

// advance moves the job to next. Stages only move forward.
func (j *Job) advance(next Stage) error {
	if j.Stage == Error || next <= j.Stage || next == Error {
		return fmt.Errorf("invalid transition %s -> %s", j.Stage, next)
	}
	j.Stage = next
	return nil
}

func (j *Job) fail(err error) {
	j.failedStage = j.Stage
	j.LastError = err
	j.Stage = Error
}

// Record maps the job onto its persisted bookkeeping row.
func (j *Job) Record() *models.TransferRecord {
	rec := &models.TransferRecord{
		ID:                 j.ID,
		SourceService:      j.Source,
		SourcePlaylistID:   j.Playlist.ID,
		SourcePlaylistName: j.Playlist.Name,
		TargetService:      j.Target,
		TargetPlaylistID:   j.TargetPlaylistID,
		Status:             models.TransferRunning,
		Attempts:           j.Attempts,
		TracksTotal:        len(j.SourceTracks),
		TracksResolved:     len(j.TargetTrackIDs),
		TracksAdded:        j.Inserted.Added,
		TracksExisting:     j.Inserted.Existing,
	}

	switch {
	case j.Stage == Done:
		rec.Status = models.TransferDone
	case j.Skipped:
		rec.Status = models.TransferSkipped
	case j.Stage == Error:
		rec.Status = models.TransferFailed
	}
	if j.LastError != nil {
		rec.ErrorMessage = j.LastError.Error()
	}
	if !j.StartedAt.IsZero() {
		t := j.StartedAt
		rec.StartedAt = &t
	}
	if !j.CompletedAt.IsZero() {
		t := j.CompletedAt
		rec.CompletedAt = &t
	}
	return rec
}
