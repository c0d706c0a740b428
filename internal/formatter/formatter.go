// package formatter renders conversion reports and playlist comparisons (CSV, Markdown, JSON, plain text)
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

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
)

// Report is a conversion and its per-track outcomes, either from a live run or from history.
type Report struct {
	Conversion *models.Conversion
	Matches    []models.ConversionMatch
}

// NewReport builds a report from a finished conversion run.
func NewReport(result *tasks.ConversionResult) *Report {
	return &Report{Conversion: result.Conversion, Matches: result.Matches()}
}

type reportSummary struct {
	ID               string                   `json:"id,omitempty"`
	Sequence         int                      `json:"sequence,omitempty"`
	Direction        string                   `json:"direction"`
	Source           string                   `json:"source"`
	SourcePlaylistID string                   `json:"source_playlist_id"`
	SourcePlaylist   string                   `json:"source_playlist,omitempty"`
	Target           string                   `json:"target"`
	TargetPlaylistID string                   `json:"target_playlist_id,omitempty"`
	Status           string                   `json:"status"`
	Total            int                      `json:"total"`
	Matched          int                      `json:"matched"`
	Failed           int                      `json:"failed"`
	MatchRate        float64                  `json:"match_rate"`
	Error            string                   `json:"error,omitempty"`
	StartedAt        *time.Time               `json:"started_at,omitempty"`
	CompletedAt      *time.Time               `json:"completed_at,omitempty"`
	Matches          []models.ConversionMatch `json:"matches"`
}

// Title names the report after the source playlist, falling back to its ID.
func (r *Report) Title() string {
	if r.Conversion == nil {
		return "Conversion"
	}
	if name := r.Conversion.SourcePlaylistName(); name != "" {
		return name
	}
	return r.Conversion.SourcePlaylistID()
}

// ReportToCSV converts matches to CSV with columns:
// Position, Found, Score, Source Title, Source Artist, Match ID, Match Title, Match Artist, Query, Cached
func ReportToCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Found", "Score", "Source Title", "Source Artist", "Match ID", "Match Title", "Match Artist", "Query", "Cached"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range r.Matches {
		record := []string{
			strconv.Itoa(m.Position + 1),
			strconv.FormatBool(m.Found),
			strconv.FormatFloat(m.Score, 'f', 3, 64),
			m.SourceTitle,
			m.SourceArtist,
			m.CandidateID,
			m.CandidateTitle,
			m.CandidateArtist,
			m.Query,
			strconv.FormatBool(m.Cached),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReportToMarkdown converts a report to Markdown with a summary and matched/unmatched sections
func ReportToMarkdown(r *Report) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", r.Title()))

	if c := r.Conversion; c != nil {
		buf.WriteString(fmt.Sprintf("**Direction**: %s\n", c.Direction()))
		buf.WriteString(fmt.Sprintf("**Status**: %s\n", c.Status()))
		buf.WriteString(fmt.Sprintf("**Matched**: %d/%d (%.1f%%)\n", c.TracksMatched(), c.TracksTotal(), c.MatchRate()))
		if c.TargetPlaylistID() != "" {
			buf.WriteString(fmt.Sprintf("**Destination**: %s %s\n", c.TargetService(), c.TargetPlaylistID()))
		}
		if c.ErrorMessage() != "" {
			buf.WriteString(fmt.Sprintf("**Error**: %s\n", c.ErrorMessage()))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Matched\n\n")
	for _, m := range r.Matches {
		if !m.Found {
			continue
		}
		cached := ""
		if m.Cached {
			cached = " (cached)"
		}
		buf.WriteString(fmt.Sprintf("%d. %s → %s [%.2f]%s\n", m.Position+1, sourceLabel(m), matchLabel(m), m.Score, cached))
	}

	buf.WriteString("\n## Not Found\n\n")
	for _, m := range r.Matches {
		if m.Found {
			continue
		}
		buf.WriteString(fmt.Sprintf("%d. %s\n", m.Position+1, sourceLabel(m)))
	}

	return buf.Bytes()
}

// ReportToText converts a report to plain text
func ReportToText(r *Report) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", r.Title()))
	if c := r.Conversion; c != nil {
		buf.WriteString(fmt.Sprintf("Direction: %s\n", c.Direction()))
		buf.WriteString(fmt.Sprintf("Status: %s\n", c.Status()))
	}
	found := 0
	for _, m := range r.Matches {
		if m.Found {
			found++
		}
	}
	buf.WriteString(fmt.Sprintf("Matched: %d/%d\n\n", found, len(r.Matches)))

	for _, m := range r.Matches {
		if m.Found {
			buf.WriteString(fmt.Sprintf("%d. [x] %s -> %s\n", m.Position+1, sourceLabel(m), matchLabel(m)))
		} else {
			buf.WriteString(fmt.Sprintf("%d. [ ] %s\n", m.Position+1, sourceLabel(m)))
		}
	}

	return buf.Bytes()
}

// ReportToJSON converts a report to indented JSON
func ReportToJSON(r *Report) ([]byte, error) {
	summary := reportSummary{Matches: r.Matches}
	if summary.Matches == nil {
		summary.Matches = []models.ConversionMatch{}
	}
	if c := r.Conversion; c != nil {
		summary.ID = c.ID()
		summary.Sequence = c.Sequence()
		summary.Direction = c.Direction()
		summary.Source = c.SourceService()
		summary.SourcePlaylistID = c.SourcePlaylistID()
		summary.SourcePlaylist = c.SourcePlaylistName()
		summary.Target = c.TargetService()
		summary.TargetPlaylistID = c.TargetPlaylistID()
		summary.Status = c.Status()
		summary.Total = c.TracksTotal()
		summary.Matched = c.TracksMatched()
		summary.Failed = c.TracksFailed()
		summary.MatchRate = c.MatchRate()
		summary.Error = c.ErrorMessage()
		summary.StartedAt = c.StartedAt()
		summary.CompletedAt = c.CompletedAt()
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// ComparisonToText renders a playlist comparison as plain text
func ComparisonToText(c *tasks.ComparisonResult) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Source: %s (%d tracks)\n", c.SourcePlaylist.Playlist.Name, len(c.SourcePlaylist.Tracks)))
	buf.WriteString(fmt.Sprintf("Destination: %s (%d tracks)\n", c.DestPlaylist.Playlist.Name, len(c.DestPlaylist.Tracks)))
	buf.WriteString(fmt.Sprintf("Matched: %d\n", c.MatchedCount()))

	if len(c.MissingInDest) > 0 {
		buf.WriteString(fmt.Sprintf("\nMissing in destination (%d):\n", len(c.MissingInDest)))
		for _, t := range c.MissingInDest {
			buf.WriteString(fmt.Sprintf("  - %s\n", trackLabel(t)))
		}
	}

	if len(c.ExtraInDest) > 0 {
		buf.WriteString(fmt.Sprintf("\nOnly in destination (%d):\n", len(c.ExtraInDest)))
		for _, t := range c.ExtraInDest {
			buf.WriteString(fmt.Sprintf("  + %s\n", trackLabel(t)))
		}
	}

	return buf.Bytes()
}

// WriteReport writes a report to path, choosing the format from its extension:
// .csv, .md, .json, anything else is plain text.
//
// Defaults to conversion_{sequence}.md as the filename.
func WriteReport(r *Report, path string) (string, error) {
	if path == "" {
		seq := 0
		if r.Conversion != nil {
			seq = r.Conversion.Sequence()
		}
		path = fmt.Sprintf("conversion_%d.md", seq)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err = ReportToCSV(r)
	case ".md", ".markdown":
		data = ReportToMarkdown(r)
	case ".json":
		data, err = ReportToJSON(r)
	default:
		data = ReportToText(r)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("%w: failed to create report directory: %w", shared.ErrInvalidArgument, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}

func sourceLabel(m models.ConversionMatch) string {
	if m.SourceArtist == "" {
		return m.SourceTitle
	}
	return fmt.Sprintf("%s - %s", m.SourceArtist, m.SourceTitle)
}

func matchLabel(m models.ConversionMatch) string {
	if m.CandidateArtist == "" {
		return m.CandidateTitle
	}
	return fmt.Sprintf("%s - %s", m.CandidateArtist, m.CandidateTitle)
}

func trackLabel(t models.Track) string {
	if t.Artist == "" {
		return t.Title
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}
