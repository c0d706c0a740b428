package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

const conversionColumns = `
	id, sequence, direction, source_service, source_playlist_id, source_playlist_name,
	target_service, target_playlist_id, status, tracks_total, tracks_matched, tracks_failed,
	error_message, started_at, completed_at, created_at, updated_at, deleted_at`

// ConversionRepository implements models.Repository[*models.Conversion] for conversion history.
//
// Handles conversion CRUD operations with soft delete support, plus the per-track match rows.
type ConversionRepository struct {
	db *sql.DB
}

// NewConversionRepository creates a new ConversionRepository with the given database connection
func NewConversionRepository(db *sql.DB) *ConversionRepository {
	return &ConversionRepository{db: db}
}

// Create inserts a new conversion into the database with generated ID and sequence
func (r *ConversionRepository) Create(c *models.Conversion) error {
	sequence, err := NextSequence(r.db, "conversions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	c.SetID(shared.GenerateID())
	c.SetSequence(sequence)

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO conversions (
			id, sequence, direction, source_service, source_playlist_id, source_playlist_name,
			target_service, target_playlist_id, status, tracks_total, tracks_matched, tracks_failed,
			error_message, started_at, completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		c.ID(),
		sequence,
		c.Direction(),
		c.SourceService(),
		c.SourcePlaylistID(),
		nullable(c.SourcePlaylistName()),
		c.TargetService(),
		nullable(c.TargetPlaylistID()),
		c.Status(),
		c.TracksTotal(),
		c.TracksMatched(),
		c.TracksFailed(),
		nullable(c.ErrorMessage()),
		c.StartedAt(),
		c.CompletedAt(),
		c.CreatedAt(),
		c.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversion: %w", err)
	}

	return nil
}

// Get retrieves a conversion by ID, excluding soft-deleted conversions
func (r *ConversionRepository) Get(id string) (*models.Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE id = ? AND deleted_at IS NULL`
	return scanConversion(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a conversion by its sequence number, as shown in history listings
func (r *ConversionRepository) GetBySequence(sequence int) (*models.Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE sequence = ? AND deleted_at IS NULL`
	return scanConversion(r.db.QueryRow(query, sequence))
}

// Update modifies an existing conversion in the database
func (r *ConversionRepository) Update(c *models.Conversion) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	c.SetUpdatedAt(now)

	query := `
		UPDATE conversions
		SET source_playlist_name = ?, target_playlist_id = ?, status = ?, tracks_total = ?,
			tracks_matched = ?, tracks_failed = ?, error_message = ?, started_at = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		nullable(c.SourcePlaylistName()),
		nullable(c.TargetPlaylistID()),
		c.Status(),
		c.TracksTotal(),
		c.TracksMatched(),
		c.TracksFailed(),
		nullable(c.ErrorMessage()),
		c.StartedAt(),
		c.CompletedAt(),
		now,
		c.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update conversion: %w", err)
	}

	return expectAffected(result, c.ID())
}

// Delete soft-deletes a conversion by ID
func (r *ConversionRepository) Delete(id string) error {
	query := `
		UPDATE conversions
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete conversion: %w", err)
	}

	return expectAffected(result, id)
}

// List retrieves conversions matching the given criteria, newest first, excluding soft-deleted ones.
//
// Supported criteria: "status", "source_service", "target_service" (string) and "limit" (int).
func (r *ConversionRepository) List(criteria map[string]any) ([]*models.Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE deleted_at IS NULL`
	args := []any{}

	for _, key := range []string{"status", "source_service", "target_service"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + key + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	var conversions []*models.Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		conversions = append(conversions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return conversions, nil
}

// SaveMatches replaces the stored per-track decisions of a conversion.
func (r *ConversionRepository) SaveMatches(conversionID string, matches []models.ConversionMatch) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM conversion_matches WHERE conversion_id = ?`, conversionID); err != nil {
		return fmt.Errorf("failed to clear matches: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO conversion_matches (
			conversion_id, position, source_id, source_title, source_artist, found,
			candidate_id, candidate_title, candidate_artist, score, query, cached
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		_, err := stmt.Exec(
			conversionID,
			m.Position,
			nullable(m.SourceID),
			m.SourceTitle,
			nullable(m.SourceArtist),
			m.Found,
			nullable(m.CandidateID),
			nullable(m.CandidateTitle),
			nullable(m.CandidateArtist),
			m.Score,
			nullable(m.Query),
			m.Cached,
		)
		if err != nil {
			return fmt.Errorf("failed to insert match %d: %w", m.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit matches: %w", err)
	}
	return nil
}

// Matches returns the stored decisions of a conversion in playlist order.
func (r *ConversionRepository) Matches(conversionID string) ([]models.ConversionMatch, error) {
	query := `
		SELECT conversion_id, position, source_id, source_title, source_artist, found,
			candidate_id, candidate_title, candidate_artist, score, query, cached
		FROM conversion_matches
		WHERE conversion_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, conversionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []models.ConversionMatch
	for rows.Next() {
		var (
			m                                  models.ConversionMatch
			sourceID, sourceArtist             sql.NullString
			candidateID, candidateTitle, query sql.NullString
			candidateArtist                    sql.NullString
		)

		err := rows.Scan(&m.ConversionID, &m.Position, &sourceID, &m.SourceTitle, &sourceArtist, &m.Found,
			&candidateID, &candidateTitle, &candidateArtist, &m.Score, &query, &m.Cached)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}

		m.SourceID = sourceID.String
		m.SourceArtist = sourceArtist.String
		m.CandidateID = candidateID.String
		m.CandidateTitle = candidateTitle.String
		m.CandidateArtist = candidateArtist.String
		m.Query = query.String
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return matches, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanConversion scans a single row from [sql.Row] or [sql.Rows] into a [models.Conversion]
func scanConversion(row scanner) (*models.Conversion, error) {
	var (
		id, direction, sourceService, sourcePlaylistID string
		targetService, status                          string
		sourcePlaylistName, targetPlaylistID, errMsg   sql.NullString
		sequence, total, matched, failed               int
		startedAt, completedAt, deletedAt              sql.NullTime
		createdAt, updatedAt                           time.Time
	)

	err := row.Scan(&id, &sequence, &direction, &sourceService, &sourcePlaylistID, &sourcePlaylistName,
		&targetService, &targetPlaylistID, &status, &total, &matched, &failed,
		&errMsg, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", shared.ErrConversionNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversion: %w", err)
	}

	c := models.NewConversion(direction, sourceService, sourcePlaylistID, targetService)
	c.SetID(id)
	c.SetSequence(sequence)
	c.SetSourcePlaylistName(sourcePlaylistName.String)
	c.SetTargetPlaylistID(targetPlaylistID.String)
	c.SetStatus(status)
	c.SetCounts(total, matched)
	c.SetErrorMessage(errMsg.String)
	c.SetStartedAt(timePtr(startedAt))
	c.SetCompletedAt(timePtr(completedAt))
	c.SetCreatedAt(createdAt)
	c.SetUpdatedAt(updatedAt)
	c.SetDeletedAt(timePtr(deletedAt))
	return c, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func expectAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s not found or already deleted", shared.ErrConversionNotFound, id)
	}
	return nil
}
