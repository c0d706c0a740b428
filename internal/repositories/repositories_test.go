package repositories

import (
	"database/sql"
	"testing"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// every pooled connection would otherwise get its own empty in-memory database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func newConversion() *models.Conversion {
	return models.NewConversion("spotify-to-youtube", "spotify", "37i9dQZF1DX", "youtube")
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "conversions")
		if err != nil {
			t.Fatalf("NextSequence() error = %v", err)
		}
		if got != want {
			t.Errorf("NextSequence() = %d, want %d", got, want)
		}
	}
}

func TestConversionRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewConversionRepository(db)
		c := newConversion()

		if err := repo.Create(c); err != nil {
			t.Fatalf("failed to create conversion: %v", err)
		}

		if c.ID() == "" {
			t.Error("conversion ID should be set after creation")
		}
		if c.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", c.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewConversionRepository(db)
		c := newConversion()
		c.SetSourcePlaylistName("Road Trip")

		if err := repo.Create(c); err != nil {
			t.Fatalf("failed to create conversion: %v", err)
		}

		retrieved, err := repo.Get(c.ID())
		if err != nil {
			t.Fatalf("failed to get conversion: %v", err)
		}

		if retrieved.Direction() != "spotify-to-youtube" {
			t.Errorf("expected direction spotify-to-youtube, got %s", retrieved.Direction())
		}
		if retrieved.SourcePlaylistName() != "Road Trip" {
			t.Errorf("expected source name 'Road Trip', got %s", retrieved.SourcePlaylistName())
		}
		if retrieved.TargetPlaylistID() != "" {
			t.Errorf("expected empty target playlist, got %s", retrieved.TargetPlaylistID())
		}
		if retrieved.Status() != models.StatusPending {
			t.Errorf("expected pending status, got %s", retrieved.Status())
		}
		if retrieved.StartedAt() != nil {
			t.Error("expected nil started_at")
		}

		bySeq, err := repo.GetBySequence(c.Sequence())
		if err != nil {
			t.Fatalf("failed to get conversion by sequence: %v", err)
		}
		if bySeq.ID() != c.ID() {
			t.Errorf("expected ID %s, got %s", c.ID(), bySeq.ID())
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewConversionRepository(db)
		c := newConversion()

		if err := repo.Create(c); err != nil {
			t.Fatalf("failed to create conversion: %v", err)
		}

		started := time.Now().Add(-time.Minute)
		completed := time.Now()
		c.SetStartedAt(&started)
		c.SetCompletedAt(&completed)
		c.SetStatus(models.StatusCompleted)
		c.SetTargetPlaylistID("PLnew")
		c.SetCounts(10, 8)

		if err := repo.Update(c); err != nil {
			t.Fatalf("failed to update conversion: %v", err)
		}

		retrieved, err := repo.Get(c.ID())
		if err != nil {
			t.Fatalf("failed to get conversion: %v", err)
		}

		if retrieved.Status() != models.StatusCompleted {
			t.Errorf("expected completed, got %s", retrieved.Status())
		}
		if retrieved.TracksMatched() != 8 || retrieved.TracksFailed() != 2 {
			t.Errorf("expected 8 matched / 2 failed, got %d / %d", retrieved.TracksMatched(), retrieved.TracksFailed())
		}
		if retrieved.TargetPlaylistID() != "PLnew" {
			t.Errorf("expected target PLnew, got %s", retrieved.TargetPlaylistID())
		}
		if retrieved.CompletedAt() == nil {
			t.Error("expected completed_at to be set")
		}
		if retrieved.MatchRate() != 80 {
			t.Errorf("expected match rate 80, got %v", retrieved.MatchRate())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewConversionRepository(db)
		c := newConversion()

		if err := repo.Create(c); err != nil {
			t.Fatalf("failed to create conversion: %v", err)
		}

		if err := repo.Delete(c.ID()); err != nil {
			t.Fatalf("failed to delete conversion: %v", err)
		}

		if _, err := repo.Get(c.ID()); err == nil {
			t.Error("expected error when getting deleted conversion")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewConversionRepository(db)

		for i := range 3 {
			c := newConversion()
			if i == 1 {
				c.SetStatus(models.StatusFailed)
			}
			if err := repo.Create(c); err != nil {
				t.Fatalf("failed to create conversion: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list conversions: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 conversions, got %d", len(all))
		}
		if all[0].Sequence() != 3 {
			t.Errorf("expected newest first, got sequence %d", all[0].Sequence())
		}

		failed, err := repo.List(map[string]any{"status": models.StatusFailed})
		if err != nil {
			t.Fatalf("failed to list filtered conversions: %v", err)
		}
		if len(failed) != 1 || failed[0].Sequence() != 2 {
			t.Errorf("expected only conversion #2, got %d results", len(failed))
		}

		limited, err := repo.List(map[string]any{"limit": 2})
		if err != nil {
			t.Fatalf("failed to list limited conversions: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 conversions, got %d", len(limited))
		}
	})

	t.Run("Matches", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewConversionRepository(db)
		c := newConversion()
		if err := repo.Create(c); err != nil {
			t.Fatalf("failed to create conversion: %v", err)
		}

		matches := []models.ConversionMatch{
			{Position: 1, SourceTitle: "Missing", SourceArtist: "Nobody"},
			{
				Position: 0, SourceID: "t1", SourceTitle: "Shape of You", SourceArtist: "Ed Sheeran",
				Found: true, CandidateID: "JGwWNGJdvx8", CandidateTitle: "Ed Sheeran - Shape of You",
				CandidateArtist: "Ed Sheeran", Score: 0.91, Query: "Ed Sheeran Shape of You", Cached: true,
			},
		}

		if err := repo.SaveMatches(c.ID(), matches); err != nil {
			t.Fatalf("failed to save matches: %v", err)
		}

		stored, err := repo.Matches(c.ID())
		if err != nil {
			t.Fatalf("failed to load matches: %v", err)
		}
		if len(stored) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(stored))
		}

		first := stored[0]
		if first.Position != 0 || !first.Found || !first.Cached {
			t.Errorf("unexpected first match %+v", first)
		}
		if first.CandidateID != "JGwWNGJdvx8" || first.Score != 0.91 {
			t.Errorf("unexpected candidate fields %+v", first)
		}
		if stored[1].Found || stored[1].CandidateID != "" {
			t.Errorf("expected second match to be a miss, got %+v", stored[1])
		}

		if err := repo.SaveMatches(c.ID(), matches[:1]); err != nil {
			t.Fatalf("failed to replace matches: %v", err)
		}
		stored, err = repo.Matches(c.ID())
		if err != nil {
			t.Fatalf("failed to load matches: %v", err)
		}
		if len(stored) != 1 {
			t.Errorf("expected matches to be replaced, got %d", len(stored))
		}
	})
}

func TestNextSequenceUnknownTable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if _, err := NextSequence(db, "playlists; DROP TABLE conversions"); err == nil {
		t.Fatal("expected error for a table without a sequence")
	}
}
