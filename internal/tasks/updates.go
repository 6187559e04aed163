package tasks

import (
	"fmt"

	"github.com/desertthunder/mixtape/internal/models"
)

// ProgressUpdate represents a progress event during a transfer.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	JobID   string // Job the update belongs to
	Stage   Stage  // Pipeline stage
	Step    int    // Current step number within the stage
	Total   int    // Total steps in this stage
	Message string // Human-readable message for display
	Data    any    // Optional stage-specific data for advanced UIs
}

// Stage is a state of the per-playlist transfer pipeline.
type Stage int

const (
	LoadingSourceTracks Stage = iota
	CreatingTargetPlaylist
	LoadingTargetTracks
	AddingTracks
	Done
	Error
)

// Stages lists the working stages in pipeline order.
var Stages = []Stage{LoadingSourceTracks, CreatingTargetPlaylist, LoadingTargetTracks, AddingTracks}

func (s Stage) String() string {
	switch s {
	case LoadingSourceTracks:
		return "loading_source_tracks"
	case CreatingTargetPlaylist:
		return "creating_target_playlist"
	case LoadingTargetTracks:
		return "loading_target_tracks"
	case AddingTracks:
		return "adding_tracks"
	case Done:
		return "done"
	case Error:
		return "error"
	default:
		return ""
	}
}

// Title is the label shown next to a stage in the CLI and TUI.
func (s Stage) Title() string {
	switch s {
	case LoadingSourceTracks:
		return "Load source tracks"
	case CreatingTargetPlaylist:
		return "Create target playlist"
	case LoadingTargetTracks:
		return "Load target tracks"
	case AddingTracks:
		return "Add tracks"
	case Done:
		return "Done"
	case Error:
		return "Error"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func transferringUpdate(step, total int, job *Job) ProgressUpdate {
	return ProgressUpdate{
		JobID:   job.ID,
		Stage:   LoadingSourceTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Transferring playlist %d/%d", step, total),
		Data:    job,
	}
}

func loadingSourceUpdate(job *Job, source string) ProgressUpdate {
	return ProgressUpdate{
		JobID:   job.ID,
		Stage:   LoadingSourceTracks,
		Message: fmt.Sprintf("Loading tracks of %q from %s...", job.Playlist.Name, source),
	}
}

func resolvingUpdate(step, total int, tr models.Track, target string) ProgressUpdate {
	return ProgressUpdate{
		Stage:   LoadingSourceTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Searching %s for %s", step, total, target, tr),
		Data:    tr,
	}
}

func resolvedUpdate(res *Resolution, target string) ProgressUpdate {
	total := len(res.Matches) + len(res.Unmatched)
	return ProgressUpdate{
		Stage:   LoadingSourceTracks,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Found %d of %d tracks on %s", len(res.TrackIDs), total, target),
		Data:    res,
	}
}

func playlistReadyUpdate(name, id, target string, created bool) ProgressUpdate {
	msg := fmt.Sprintf("Playlist %q already exists in %s", name, target)
	if created {
		msg = fmt.Sprintf("Playlist %q created in %s", name, target)
	}
	return ProgressUpdate{
		Stage:   CreatingTargetPlaylist,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    id,
	}
}

func checkingExistingUpdate(target string) ProgressUpdate {
	return ProgressUpdate{
		Stage:   LoadingTargetTracks,
		Message: fmt.Sprintf("Checking what tracks already exist in %s...", target),
	}
}

func allExistUpdate(n int) ProgressUpdate {
	return ProgressUpdate{
		Stage:   AddingTracks,
		Step:    n,
		Total:   n,
		Message: "All tracks already exist",
	}
}

func addingUpdate(existing, added, total int) ProgressUpdate {
	msg := fmt.Sprintf("Adding tracks (%d/%d)", added, total)
	if existing > 0 {
		msg = fmt.Sprintf("%d tracks already exist. Adding missing tracks (%d/%d)", existing, added, total)
	}
	return ProgressUpdate{
		Stage:   AddingTracks,
		Step:    added,
		Total:   total,
		Message: msg,
	}
}

func doneUpdate(job *Job) ProgressUpdate {
	return ProgressUpdate{
		JobID:   job.ID,
		Stage:   Done,
		Step:    job.Transferred(),
		Total:   len(job.SourceTracks),
		Message: job.Summary(),
		Data:    job,
	}
}

func errorUpdate(job *Job) ProgressUpdate {
	return ProgressUpdate{
		JobID:   job.ID,
		Stage:   Error,
		Message: fmt.Sprintf("%s failed: %v", job.failedStage.Title(), job.LastError),
		Data:    job,
	}
}
