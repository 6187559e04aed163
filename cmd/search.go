package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/desertthunder/mixtape/internal/matching"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// candidate is one search result with its similarity to the searched track.
type candidate struct {
	Track      models.Track `json:"track"`
	Score      float64      `json:"score"`
	Confidence string       `json:"confidence"`
	Match      bool         `json:"match"`
}

// Search queries a provider catalog the way the resolver does and prints the candidates ranked by score.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("%w: usage: mixtape search <provider> <title...>", shared.ErrMissingArgument)
	}
	svc, err := r.service(ctx, args[0])
	if err != nil {
		return err
	}
	matcher, err := r.matcher()
	if err != nil {
		return err
	}

	source := models.Track{Name: strings.Join(args[1:], " ")}
	if artist := cmd.String("artist"); artist != "" {
		source.Artists = []string{artist}
	}

	results, err := svc.SearchTracks(ctx, source.Query())
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	candidates := make([]candidate, 0, len(results))
	for _, tr := range results {
		score := matcher.Score(source, tr)
		candidates = append(candidates, candidate{
			Track:      tr,
			Score:      score,
			Confidence: matching.ConfidenceFor(score).String(),
			Match:      score >= matcher.Threshold(),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	if cmd.Bool("json") {
		return r.writeJSON(candidates, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s results for %q", svc.Name(), source.Query()))
	if len(candidates) == 0 {
		return r.writePlain("No results\n")
	}
	for i, c := range candidates {
		mark := " "
		if c.Match {
			mark = "✓"
		}
		r.writePlain("%s %d. %s  [%.2f %s]  id: %s\n", mark, i+1, c.Track, c.Score, c.Confidence, c.Track.ID)
	}
	return nil
}
