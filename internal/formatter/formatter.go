// package formatter renders transfer reports and history to text, Markdown, CSV and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/tasks"
)

// Format names a report encoding.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "text", "txt", "":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: report format %q", shared.ErrInvalidFlag, s)
	}
}

// FormatForPath infers the format from the extension of path, defaulting to [Text].
func FormatForPath(path string) Format {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return Text
	}
	return f
}

// TrackRow is one source track and what became of it.
type TrackRow struct {
	Name       string  `json:"name"`
	Artist     string  `json:"artist"`
	Matched    bool    `json:"matched"`
	TargetID   string  `json:"targetId,omitempty"`
	TargetName string  `json:"targetName,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Confidence string  `json:"confidence,omitempty"`
}

// PlaylistReport is the outcome of one job.
type PlaylistReport struct {
	Name             string     `json:"name"`
	SourcePlaylistID string     `json:"sourcePlaylistId"`
	TargetPlaylistID string     `json:"targetPlaylistId,omitempty"`
	Created          bool       `json:"created"`
	Status           string     `json:"status"`
	Attempts         int        `json:"attempts"`
	Total            int        `json:"total"`
	Resolved         int        `json:"resolved"`
	Added            int        `json:"added"`
	Existing         int        `json:"existing"`
	Summary          string     `json:"summary"`
	Error            string     `json:"error,omitempty"`
	Tracks           []TrackRow `json:"tracks"`
}

// Report describes an orchestrated transfer run.
type Report struct {
	Source      string           `json:"source"`
	Target      string           `json:"target"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Aborted     bool             `json:"aborted"`
	Playlists   []PlaylistReport `json:"playlists"`
}

// NewReport builds a Report from summary, labelling the providers with their display names.
func NewReport(summary *tasks.Summary, source, target string) *Report {
	r := &Report{
		Source:      source,
		Target:      target,
		GeneratedAt: time.Now(),
		Aborted:     summary.Aborted,
		Playlists:   make([]PlaylistReport, 0, len(summary.Jobs)),
	}
	for _, job := range summary.Jobs {
		r.Playlists = append(r.Playlists, playlistReport(job))
	}
	return r
}

func playlistReport(job *tasks.Job) PlaylistReport {
	rec := job.Record()
	pr := PlaylistReport{
		Name:             job.Playlist.Name,
		SourcePlaylistID: job.Playlist.ID,
		TargetPlaylistID: job.TargetPlaylistID,
		Created:          job.Created,
		Status:           string(rec.Status),
		Attempts:         job.Attempts,
		Total:            len(job.SourceTracks),
		Resolved:         len(job.TargetTrackIDs),
		Added:            job.Inserted.Added,
		Existing:         job.Inserted.Existing,
		Summary:          job.Summary(),
		Error:            rec.ErrorMessage,
		Tracks:           make([]TrackRow, 0, len(job.SourceTracks)),
	}
	if pr.Name == "" {
		pr.Name = job.Playlist.ID
	}

	matches := make(map[string]tasks.Match, len(job.Matches))
	for _, m := range job.Matches {
		if _, ok := matches[m.Source.ID]; !ok {
			matches[m.Source.ID] = m
		}
	}

	for _, tr := range job.SourceTracks {
		row := TrackRow{Name: tr.Name, Artist: tr.PrimaryArtist()}
		if m, ok := matches[tr.ID]; ok {
			row.Matched = true
			row.TargetID = m.Result.Track.ID
			row.TargetName = m.Result.Track.String()
			row.Score = m.Result.Score
			row.Confidence = m.Result.Confidence.String()
		}
		pr.Tracks = append(pr.Tracks, row)
	}
	return pr
}

// Render encodes r in format f.
func Render(r *Report, f Format) ([]byte, error) {
	switch f {
	case Text:
		return ToText(r), nil
	case Markdown:
		return ToMarkdown(r), nil
	case CSV:
		return ToCSV(r)
	case JSON:
		return ToJSON(r)
	default:
		return nil, fmt.Errorf("%w: report format %q", shared.ErrInvalidFlag, f)
	}
}

// WriteReport renders r in the format implied by path and writes it there.
func WriteReport(r *Report, path string) error {
	data, err := Render(r, FormatForPath(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ToText renders r for a terminal.
func ToText(r *Report) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Transfer: %s -> %s\n", r.Source, r.Target)
	if r.Aborted {
		buf.WriteString("Status: aborted\n")
	}
	buf.WriteString("\n")

	for i, p := range r.Playlists {
		fmt.Fprintf(&buf, "%d. %s [%s] %s\n", i+1, p.Name, p.Status, p.Summary)
		if p.Error != "" {
			fmt.Fprintf(&buf, "   error: %s\n", p.Error)
		}
		for _, t := range p.Tracks {
			if !t.Matched {
				fmt.Fprintf(&buf, "   not found: %s\n", trackLabel(t))
			}
		}
	}
	return buf.Bytes()
}

// ToMarkdown renders r as a Markdown document with one section per playlist.
func ToMarkdown(r *Report) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Transfer: %s to %s\n\n", r.Source, r.Target)
	fmt.Fprintf(&buf, "**Generated**: %s\n\n", r.GeneratedAt.Format(time.RFC3339))
	if r.Aborted {
		buf.WriteString("**Status**: aborted\n\n")
	}

	for _, p := range r.Playlists {
		fmt.Fprintf(&buf, "## %s\n\n", p.Name)
		fmt.Fprintf(&buf, "**Status**: %s\n", p.Status)
		fmt.Fprintf(&buf, "**Result**: %s\n", p.Summary)
		if p.Error != "" {
			fmt.Fprintf(&buf, "**Error**: %s\n", p.Error)
		}
		buf.WriteString("\n")

		if len(p.Tracks) == 0 {
			continue
		}
		buf.WriteString("| # | Track | Match | Score |\n|---|---|---|---|\n")
		for i, t := range p.Tracks {
			match, score := "not found", ""
			if t.Matched {
				match = escapeCell(t.TargetName)
				score = fmt.Sprintf("%.2f (%s)", t.Score, t.Confidence)
			}
			fmt.Fprintf(&buf, "| %d | %s | %s | %s |\n", i+1, escapeCell(trackLabel(t)), match, score)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// ToCSV renders one row per source track with columns:
// Playlist, Track, Artist, Matched, Target ID, Target, Score, Confidence
func ToCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Playlist", "Track", "Artist", "Matched", "Target ID", "Target", "Score", "Confidence"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range r.Playlists {
		for _, t := range p.Tracks {
			score := ""
			if t.Matched {
				score = strconv.FormatFloat(t.Score, 'f', 3, 64)
			}
			record := []string{
				p.Name,
				t.Name,
				t.Artist,
				strconv.FormatBool(t.Matched),
				t.TargetID,
				t.TargetName,
				score,
				t.Confidence,
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ToJSON renders r as indented JSON.
func ToJSON(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

func trackLabel(t TrackRow) string {
	return models.Track{Name: t.Name, Artists: []string{t.Artist}}.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
