package matching

import (
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// noiseWords never help tell two recordings apart and are dropped before comparison.
var noiseWords = map[string]bool{
	"feat": true, "ft": true, "featuring": true, "with": true,
	"official": true, "video": true, "audio": true, "lyric": true, "lyrics": true,
	"music": true, "hd": true, "hq": true, "mv": true, "visualizer": true,
	"remaster": true, "remastered": true, "topic": true, "vevo": true,
}

// separatorRegex matches everything that is not a letter, digit or space after folding.
var separatorRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// foldAccents removes combining marks ("Beyoncé" becomes "Beyonce").
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokens lowercases s, folds accents, splits on punctuation and drops noise words.
func Tokens(s string) []string {
	s = strings.ToLower(foldAccents(s))
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "'", "")
	s = separatorRegex.ReplaceAllString(s, " ")

	var out []string
	for _, tok := range strings.Fields(s) {
		if noiseWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Key reduces s to its sorted set of distinct tokens joined by spaces.
//
// Token order and repetition are ignored, so "Artist - Title" and "Title (feat. X) Artist" compare on content only.
func Key(parts ...string) string {
	seen := make(map[string]bool)
	var uniq []string
	for _, p := range parts {
		for _, tok := range Tokens(p) {
			if !seen[tok] {
				seen[tok] = true
				uniq = append(uniq, tok)
			}
		}
	}
	sort.Strings(uniq)
	return strings.Join(uniq, " ")
}

// tokenSet returns the distinct tokens of parts in sorted order.
func tokenSet(parts ...string) []string {
	return strings.Fields(Key(parts...))
}

// artistTokens returns the distinct tokens across every artist name.
func artistTokens(artists []string) []string {
	return tokenSet(artists...)
}

// union merges two sorted token sets.
func union(a, b []string) []string {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return slices.Compact(out)
}

// withoutCredits drops artist words from title unless the other title also uses them, so a
// song named after its artist still compares on every word.
func withoutCredits(title, artists, other []string) []string {
	var out []string
	for _, tok := range title {
		if slices.Contains(artists, tok) && !slices.Contains(other, tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}
