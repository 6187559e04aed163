package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/matching"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/services"
	"golang.org/x/time/rate"
)

// Match pairs a source track with the candidate chosen for it.
type Match struct {
	Source models.Track
	Result matching.Result
}

// Resolution is the outcome of resolving a source track list against the target catalog.
type Resolution struct {
	TrackIDs  []string       // Target ids in source order, unresolved tracks dropped
	Matches   []Match        // Accepted matches, aligned with TrackIDs
	Unmatched []models.Track // Source tracks with no candidate above the threshold
}

// Resolver maps source tracks to target catalog ids through fuzzy search.
type Resolver struct {
	target  services.Service
	matcher *matching.Matcher
	delay   time.Duration
	logger  *log.Logger
}

// NewResolver creates a Resolver that searches target, waiting delay between searches.
func NewResolver(target services.Service, matcher *matching.Matcher, delay time.Duration, logger *log.Logger) *Resolver {
	return &Resolver{target: target, matcher: matcher, delay: delay, logger: logger}
}

// Resolve searches the target catalog for each track in order.
//
// A track without candidates, or whose best candidate scores below the threshold, is dropped.
// A search error aborts the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, tracks []models.Track, progress chan<- ProgressUpdate) (*Resolution, error) {
	res := &Resolution{TrackIDs: make([]string, 0, len(tracks))}
	if len(tracks) == 0 {
		return res, nil
	}

	pace := newPacer(r.delay)
	target := r.target.Name()
	for i, track := range tracks {
		if err := pace.Wait(ctx); err != nil {
			return nil, err
		}

		candidates, err := r.target.SearchTracks(ctx, track.Query())
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", track.Query(), err)
		}

		best := r.matcher.Best(track, candidates)
		if best.Matched {
			res.TrackIDs = append(res.TrackIDs, best.Track.ID)
			res.Matches = append(res.Matches, Match{Source: track, Result: best})
		} else {
			res.Unmatched = append(res.Unmatched, track)
			r.logger.Debug("no match", "track", track.String(), "candidates", len(candidates), "score", best.Score)
		}

		sendProgress(progress, resolvingUpdate(i+1, len(tracks), track, target))
	}

	sendProgress(progress, resolvedUpdate(res, target))
	return res, nil
}

// newPacer returns a limiter that lets one call through per delay. The first call is not delayed.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
