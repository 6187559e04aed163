package matching

import (
	"testing"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func track(name string, artists ...string) models.Track {
	return models.Track{ID: name, Name: name, Artists: artists}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"sorted and lowercased", []string{"Bohemian Rhapsody", "Queen"}, "bohemian queen rhapsody"},
		{"noise words dropped", []string{"Queen - Bohemian Rhapsody (Official Video)", "Queen"}, "bohemian queen rhapsody"},
		{"accents folded", []string{"Señorita", "Beyoncé"}, "beyonce senorita"},
		{"ampersand spelled out", []string{"Simon & Garfunkel"}, "and garfunkel simon"},
		{"apostrophes joined", []string{"Don't Stop Me Now"}, "dont me now stop"},
		{"empty", []string{""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.parts...))
		})
	}
}

func TestMatcher(t *testing.T) {
	t.Run("rejects bad configuration", func(t *testing.T) {
		_, err := NewMatcher(1.5, JaroWinkler)
		assert.Error(t, err)

		_, err = NewMatcher(0.5, Algorithm("soundex"))
		assert.Error(t, err)
	})

	t.Run("defaults to jaro-winkler", func(t *testing.T) {
		m, err := NewMatcher(0.75, "")
		require.NoError(t, err)
		assert.Equal(t, JaroWinkler, m.algorithm)
		assert.Equal(t, 0.75, m.Threshold())
	})

	for _, algo := range []Algorithm{JaroWinkler, Levenshtein} {
		t.Run(string(algo), func(t *testing.T) {
			m, err := NewMatcher(0.75, algo)
			require.NoError(t, err)

			t.Run("video title variant scores exact", func(t *testing.T) {
				source := track("Bohemian Rhapsody", "Queen")
				candidate := track("Queen - Bohemian Rhapsody (Official Video)", "Queen")
				assert.Equal(t, 1.0, m.Score(source, candidate))
			})

			t.Run("featuring order is ignored", func(t *testing.T) {
				source := track("Señorita", "Shawn Mendes", "Camila Cabello")
				candidate := track("Senorita (feat. Camila Cabello)", "Shawn Mendes")
				assert.Equal(t, 1.0, m.Score(source, candidate))
			})

			t.Run("unrelated tracks fall below threshold", func(t *testing.T) {
				result := m.Best(track("xyz", "qqq"), []models.Track{track("abc", "def")})
				assert.False(t, result.Matched)
				assert.Less(t, result.Score, m.Threshold())
			})

			t.Run("same artist different song is rejected", func(t *testing.T) {
				result := m.Best(track("Hey Jude", "The Beatles"), []models.Track{track("Help!", "The Beatles")})
				assert.False(t, result.Matched)
				assert.Equal(t, ConfidenceNone, result.Confidence)
			})

			t.Run("similar title by another artist is rejected", func(t *testing.T) {
				result := m.Best(track("Bad Guy", "Billie Eilish"), []models.Track{track("Bad Habits", "Ed Sheeran")})
				assert.False(t, result.Matched)
				assert.Equal(t, ConfidenceNone, result.Confidence)
			})

			t.Run("same title by another artist is rejected", func(t *testing.T) {
				result := m.Best(track("Yesterday", "The Beatles"), []models.Track{track("Yesterday", "Leona Lewis")})
				assert.False(t, result.Matched)
			})

			t.Run("artist named only in the upload title", func(t *testing.T) {
				source := track("Hey Jude", "The Beatles")
				upload := track("The Beatles - Hey Jude", "Classic Uploads")
				assert.Equal(t, 1.0, m.Score(source, upload))
			})

			t.Run("edition suffix still matches", func(t *testing.T) {
				result := m.Best(track("Hey Jude", "The Beatles"), []models.Track{track("Hey Jude (Remastered 2015)", "The Beatles")})
				assert.True(t, result.Matched)
				assert.InDelta(t, 0.8, result.Score, 1e-9)
			})

			t.Run("title alone when the source has no artist", func(t *testing.T) {
				assert.Equal(t, 1.0, m.Score(track("Clair de Lune"), track("Clair de Lune", "Claude Debussy")))
			})

			t.Run("best candidate wins over provider order", func(t *testing.T) {
				source := track("Bohemian Rhapsody", "Queen")
				live := track("Bohemian Rhapsody (Live Aid)", "Queen")
				studio := track("Bohemian Rhapsody", "Queen")
				studio.ID = "studio"

				result := m.Best(source, []models.Track{live, studio})
				assert.True(t, result.Matched)
				assert.Equal(t, "studio", result.Track.ID)
				assert.Equal(t, ConfidenceHigh, result.Confidence)
			})
		})
	}

	t.Run("no candidates", func(t *testing.T) {
		m, err := NewMatcher(0.75, JaroWinkler)
		require.NoError(t, err)

		result := m.Best(track("Anything", "Anyone"), nil)
		assert.False(t, result.Matched)
		assert.Equal(t, ConfidenceNone, result.Confidence)
	})

	t.Run("near miss in the candidate list is skipped", func(t *testing.T) {
		m, err := NewMatcher(0.75, JaroWinkler)
		require.NoError(t, err)

		source := track("Hey Jude", "The Beatles")
		help := track("Help!", "The Beatles")
		jude := track("Hey Jude", "The Beatles")
		jude.ID = "jude"

		result := m.Best(source, []models.Track{help, jude})
		assert.True(t, result.Matched)
		assert.Equal(t, "jude", result.Track.ID)
	})

	t.Run("threshold of one only accepts exact titles", func(t *testing.T) {
		m, err := NewMatcher(1, JaroWinkler)
		require.NoError(t, err)

		result := m.Best(track("Bohemian Rhapsody", "Queen"), []models.Track{track("Bohemian Rhapsody (Live Aid)", "Queen")})
		assert.False(t, result.Matched)
	})
}

func TestConfidenceFor(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, ConfidenceFor(0.97))
	assert.Equal(t, ConfidenceMedium, ConfidenceFor(0.9))
	assert.Equal(t, ConfidenceLow, ConfidenceFor(0.72))
	assert.Equal(t, ConfidenceNone, ConfidenceFor(0.2))
	assert.Equal(t, "medium", ConfidenceMedium.String())
}
