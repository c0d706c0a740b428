package models

import (
	"fmt"
	"time"
)

// Conversion statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusPartial   = "partial" // interrupted or no destination playlist was created
	StatusFailed    = "failed"
)

var validStatuses = map[string]bool{
	StatusPending: true, StatusRunning: true, StatusCompleted: true, StatusPartial: true, StatusFailed: true,
}

// Conversion records one playlist conversion run.
type Conversion struct {
	id                 string
	sequence           int
	direction          string
	sourceService      string
	sourcePlaylistID   string
	sourcePlaylistName string
	targetService      string
	targetPlaylistID   string
	status             string
	tracksTotal        int
	tracksMatched      int
	tracksFailed       int
	errorMessage       string
	startedAt          *time.Time
	completedAt        *time.Time
	createdAt          time.Time
	updatedAt          time.Time
	deletedAt          *time.Time
}

// NewConversion creates a pending conversion.
func NewConversion(direction, sourceService, sourcePlaylistID, targetService string) *Conversion {
	now := time.Now()
	return &Conversion{
		direction:        direction,
		sourceService:    sourceService,
		sourcePlaylistID: sourcePlaylistID,
		targetService:    targetService,
		status:           StatusPending,
		createdAt:        now,
		updatedAt:        now,
	}
}

func (c *Conversion) ID() string                 { return c.id }
func (c *Conversion) Sequence() int              { return c.sequence }
func (c *Conversion) Direction() string          { return c.direction }
func (c *Conversion) SourceService() string      { return c.sourceService }
func (c *Conversion) SourcePlaylistID() string   { return c.sourcePlaylistID }
func (c *Conversion) SourcePlaylistName() string { return c.sourcePlaylistName }
func (c *Conversion) TargetService() string      { return c.targetService }
func (c *Conversion) TargetPlaylistID() string   { return c.targetPlaylistID }
func (c *Conversion) Status() string             { return c.status }
func (c *Conversion) TracksTotal() int           { return c.tracksTotal }
func (c *Conversion) TracksMatched() int         { return c.tracksMatched }
func (c *Conversion) TracksFailed() int          { return c.tracksFailed }
func (c *Conversion) ErrorMessage() string       { return c.errorMessage }
func (c *Conversion) StartedAt() *time.Time      { return c.startedAt }
func (c *Conversion) CompletedAt() *time.Time    { return c.completedAt }
func (c *Conversion) CreatedAt() time.Time       { return c.createdAt }
func (c *Conversion) UpdatedAt() time.Time       { return c.updatedAt }
func (c *Conversion) DeletedAt() *time.Time      { return c.deletedAt }

func (c *Conversion) SetID(id string)                { c.id = id }
func (c *Conversion) SetSequence(n int)              { c.sequence = n }
func (c *Conversion) SetSourcePlaylistName(n string) { c.sourcePlaylistName = n }
func (c *Conversion) SetTargetPlaylistID(id string)  { c.targetPlaylistID = id }
func (c *Conversion) SetStatus(s string)             { c.status = s }
func (c *Conversion) SetErrorMessage(m string)       { c.errorMessage = m }
func (c *Conversion) SetStartedAt(t *time.Time)      { c.startedAt = t }
func (c *Conversion) SetCompletedAt(t *time.Time)    { c.completedAt = t }
func (c *Conversion) SetCreatedAt(t time.Time)       { c.createdAt = t }
func (c *Conversion) SetUpdatedAt(t time.Time)       { c.updatedAt = t }
func (c *Conversion) SetDeletedAt(t *time.Time)      { c.deletedAt = t }

// SetCounts records the totals of a run.
func (c *Conversion) SetCounts(total, matched int) {
	c.tracksTotal = total
	c.tracksMatched = matched
	c.tracksFailed = total - matched
}

// MatchRate is the percentage of matched tracks.
func (c *Conversion) MatchRate() float64 {
	if c.tracksTotal == 0 {
		return 0
	}
	return float64(c.tracksMatched) / float64(c.tracksTotal) * 100
}

// Validate checks required fields and count consistency.
func (c *Conversion) Validate() error {
	switch {
	case c.id == "":
		return fmt.Errorf("conversion id is required")
	case c.direction == "":
		return fmt.Errorf("direction is required")
	case c.sourceService == "" || c.targetService == "":
		return fmt.Errorf("source and target services are required")
	case c.sourcePlaylistID == "":
		return fmt.Errorf("source playlist id is required")
	case !validStatuses[c.status]:
		return fmt.Errorf("invalid status %q", c.status)
	case c.tracksMatched < 0 || c.tracksMatched > c.tracksTotal:
		return fmt.Errorf("matched count %d outside [0, %d]", c.tracksMatched, c.tracksTotal)
	}
	return nil
}

// ConversionMatch is the stored outcome for one source track, in playlist order.
type ConversionMatch struct {
	ConversionID    string  `json:"conversion_id"`
	Position        int     `json:"position"`
	SourceID        string  `json:"source_id,omitempty"`
	SourceTitle     string  `json:"source_title"`
	SourceArtist    string  `json:"source_artist,omitempty"`
	Found           bool    `json:"found"`
	CandidateID     string  `json:"candidate_id,omitempty"`
	CandidateTitle  string  `json:"candidate_title,omitempty"`
	CandidateArtist string  `json:"candidate_artist,omitempty"`
	Score           float64 `json:"score"`
	Query           string  `json:"query,omitempty"`
	Cached          bool    `json:"cached"`
}
