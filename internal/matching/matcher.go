// Package matching scores how likely two provider tracks are the same recording.
package matching

import (
	"fmt"
	"math"
	"slices"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/hbollon/go-edlib"
	"github.com/xrash/smetrics"
)

// Algorithm names a string similarity measure.
type Algorithm string

const (
	JaroWinkler Algorithm = "jaro-winkler"
	Levenshtein Algorithm = "levenshtein"
)

// Confidence buckets a similarity score.
type Confidence int

const (
	ConfidenceNone   Confidence = iota // Score < 0.70
	ConfidenceLow                      // Score >= 0.70
	ConfidenceMedium                   // Score >= 0.85
	ConfidenceHigh                     // Score >= 0.95
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// ConfidenceFor maps a score in [0, 1] to a [Confidence] bucket.
func ConfidenceFor(score float64) Confidence {
	switch {
	case score >= 0.95:
		return ConfidenceHigh
	case score >= 0.85:
		return ConfidenceMedium
	case score >= 0.70:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// Result is the outcome of picking the best candidate for a source track.
type Result struct {
	Track      models.Track
	Score      float64
	Confidence Confidence
	Matched    bool // Score cleared the matcher threshold
}

// Matcher picks the candidate whose title and artist are both closest to the source track.
type Matcher struct {
	threshold float64
	algorithm Algorithm
}

const (
	// titleWeight is the title's share of the combined score; the artist takes the rest.
	titleWeight = 0.6
	// fieldFloor caps the combined score at the weaker field when either falls below it, so a
	// perfect artist cannot carry an unrelated title (or the reverse).
	fieldFloor = 0.5
	// tokenThreshold is the lowest similarity at which two differing words count as the same word.
	tokenThreshold = 0.85
)

// NewMatcher returns a Matcher that accepts candidates scoring at least threshold.
func NewMatcher(threshold float64, algorithm Algorithm) (*Matcher, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [0, 1]", threshold)
	}
	switch algorithm {
	case "":
		algorithm = JaroWinkler
	case JaroWinkler, Levenshtein:
	default:
		return nil, fmt.Errorf("unknown match algorithm %q", algorithm)
	}
	return &Matcher{threshold: threshold, algorithm: algorithm}, nil
}

// Threshold returns the minimum accepted score.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Score compares title and artist separately and blends them. Each field is the token overlap
// (Jaccard) of its word sets, where near-identical words count by their similarity under the
// matcher's algorithm. Artist names embedded in a title ("Queen - Bohemian Rhapsody",
// "Senorita (feat. Camila Cabello)") are credited to the artist and stripped from the title.
// A source without artists is scored on its title alone.
func (m *Matcher) Score(source, candidate models.Track) float64 {
	srcArtists := artistTokens(source.Artists)
	candArtists := artistTokens(candidate.Artists)
	srcTitleRaw := tokenSet(source.Name)
	candTitleRaw := tokenSet(candidate.Name)

	credited := union(srcArtists, candArtists)
	title := m.overlap(
		withoutCredits(srcTitleRaw, credited, candTitleRaw),
		withoutCredits(candTitleRaw, credited, srcTitleRaw),
	)
	if len(source.Artists) == 0 {
		return title
	}

	artist := m.artistScore(source.Artists, candidate.Artists, candTitleRaw)
	if title < fieldFloor || artist < fieldFloor {
		return math.Min(title, artist)
	}
	return artist + titleWeight*(title-artist)
}

// artistScore is the best overlap between any source artist and any candidate artist, or the
// share of a source artist's words found in the candidate title when the uploader is not the artist.
func (m *Matcher) artistScore(source, candidate, candTitle []string) float64 {
	best := 0.0
	for _, s := range source {
		st := tokenSet(s)
		if len(st) == 0 {
			continue
		}
		for _, c := range candidate {
			best = math.Max(best, m.overlap(st, tokenSet(c)))
		}
		best = math.Max(best, m.common(st, candTitle)/float64(len(st)))
	}
	return best
}

// overlap is the soft Jaccard index of two word sets.
func (m *Matcher) overlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := m.common(a, b)
	return inter / (float64(len(a)+len(b)) - inter)
}

// common pairs each word of a with at most one word of b, exact matches first, and sums the
// similarity of the pairs that reach tokenThreshold.
func (m *Matcher) common(a, b []string) float64 {
	used := make([]bool, len(b))
	var rest []string
	total := 0.0
	for _, x := range a {
		if i := slices.Index(b, x); i >= 0 && !used[i] {
			used[i] = true
			total++
			continue
		}
		rest = append(rest, x)
	}
	for _, x := range rest {
		bestIdx, bestSim := -1, tokenThreshold
		for i, y := range b {
			if used[i] {
				continue
			}
			if sim := m.similarity(x, y); sim >= bestSim {
				bestIdx, bestSim = i, sim
			}
		}
		if bestIdx >= 0 {
			used[bestIdx] = true
			total += bestSim
		}
	}
	return total
}

// Best scores every candidate and returns the highest. Earlier candidates win ties, keeping
// the provider's own ranking as the tie-breaker.
func (m *Matcher) Best(source models.Track, candidates []models.Track) Result {
	var best Result
	found := false
	for _, c := range candidates {
		score := m.Score(source, c)
		if !found || score > best.Score {
			best = Result{Track: c, Score: score}
			found = true
		}
	}
	if !found {
		return Result{Confidence: ConfidenceNone}
	}
	best.Confidence = ConfidenceFor(best.Score)
	best.Matched = best.Score >= m.threshold
	return best
}

func (m *Matcher) similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	switch m.algorithm {
	case Levenshtein:
		return levenshteinSimilarity(a, b)
	default:
		return float64(edlib.JaroWinklerSimilarity(a, b))
	}
}

// levenshteinSimilarity normalizes the Wagner-Fischer edit distance by the longer string.
func levenshteinSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	distance := smetrics.WagnerFischer(a, b, 1, 1, 1)
	score := 1 - float64(distance)/float64(longest)
	if score < 0 {
		return 0
	}
	return score
}
