package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // Registers the postgres driver
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/crackgov/srs/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// sqliteParams enables cascading deletes and a lexically sortable time format
// on every pooled connection.
const sqliteParams = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sqlx.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(driver, dsn string) (*DB, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
		if strings.Contains(dsn, "?") {
			dsn += "&" + sqliteParams
		} else {
			dsn += "?" + sqliteParams
		}
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const flashcardColumns = `id, owner_id, front, back, topic, content_hash, retention_level,
	review_count, correct_count, next_review, last_reviewed, created_at`

const reviewEventColumns = `id, flashcard_id, owner_id, result, time_spent, created_at`

// CreateFlashcard inserts a new card. Times are stored in UTC.
func (db *DB) CreateFlashcard(ctx context.Context, card *domain.Flashcard) error {
	card.NextReview = card.NextReview.UTC()
	card.CreatedAt = card.CreatedAt.UTC()
	card.LastReviewed = utcPtr(card.LastReviewed)

	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO flashcards (`+flashcardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		card.ID,
		card.OwnerID,
		card.Front,
		card.Back,
		card.Topic,
		card.ContentHash,
		card.RetentionLevel,
		card.ReviewCount,
		card.CorrectCount,
		card.NextReview,
		card.LastReviewed,
		card.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert flashcard %s: %w", card.ID, err)
	}
	return nil
}

// GetFlashcard retrieves a card owned by ownerID.
// It returns domain.ErrNotFound if the card is missing or owned by someone else.
func (db *DB) GetFlashcard(ctx context.Context, id, ownerID string) (*domain.Flashcard, error) {
	var card domain.Flashcard
	err := db.conn.GetContext(ctx, &card, db.conn.Rebind(`
		SELECT `+flashcardColumns+`
		FROM flashcards WHERE id = ? AND owner_id = ?
	`), id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("flashcard %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find flashcard %s: %w", id, err)
	}
	return &card, nil
}

// FindFlashcardByHash looks up an owner's card by content hash.
func (db *DB) FindFlashcardByHash(ctx context.Context, ownerID, hash string) (*domain.Flashcard, error) {
	var card domain.Flashcard
	err := db.conn.GetContext(ctx, &card, db.conn.Rebind(`
		SELECT `+flashcardColumns+`
		FROM flashcards WHERE owner_id = ? AND content_hash = ?
		LIMIT 1
	`), ownerID, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find flashcard by hash %s: %w", hash, err)
	}
	return &card, nil
}

// ListFlashcards returns all of an owner's cards, newest first.
func (db *DB) ListFlashcards(ctx context.Context, ownerID string) ([]domain.Flashcard, error) {
	cards := []domain.Flashcard{}
	err := db.conn.SelectContext(ctx, &cards, db.conn.Rebind(`
		SELECT `+flashcardColumns+`
		FROM flashcards WHERE owner_id = ?
		ORDER BY created_at DESC, id
	`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flashcards for %s: %w", ownerID, err)
	}
	return cards, nil
}

// ListDueFlashcards returns the owner's cards due at now, most overdue first.
// A limit of zero or less returns every due card.
func (db *DB) ListDueFlashcards(ctx context.Context, ownerID string, now time.Time, limit int) ([]domain.Flashcard, error) {
	query := `
		SELECT ` + flashcardColumns + `
		FROM flashcards WHERE owner_id = ? AND next_review <= ?
		ORDER BY next_review, id`
	args := []any{ownerID, now.UTC()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	cards := []domain.Flashcard{}
	if err := db.conn.SelectContext(ctx, &cards, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list due flashcards for %s: %w", ownerID, err)
	}
	return cards, nil
}

// RecordReview stores a card's new schedule and appends the review event in a
// single transaction. If the card no longer exists for its owner nothing is
// written and domain.ErrNotFound is returned.
func (db *DB) RecordReview(ctx context.Context, card *domain.Flashcard, event *domain.ReviewEvent) error {
	card.NextReview = card.NextReview.UTC()
	card.LastReviewed = utcPtr(card.LastReviewed)
	event.CreatedAt = event.CreatedAt.UTC()

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE flashcards
		SET retention_level = ?, review_count = ?, correct_count = ?, next_review = ?, last_reviewed = ?
		WHERE id = ? AND owner_id = ?
	`),
		card.RetentionLevel,
		card.ReviewCount,
		card.CorrectCount,
		card.NextReview,
		card.LastReviewed,
		card.ID,
		card.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule for flashcard %s: %w", card.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to read update result for flashcard %s: %w", card.ID, err)
	} else if n == 0 {
		return fmt.Errorf("flashcard %s: %w", card.ID, domain.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO review_events (`+reviewEventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`),
		event.ID,
		event.FlashcardID,
		event.OwnerID,
		event.Result,
		event.TimeSpent,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review event for flashcard %s: %w", card.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review for flashcard %s: %w", card.ID, err)
	}
	return nil
}

// ListReviewEvents returns a card's review history, newest first.
func (db *DB) ListReviewEvents(ctx context.Context, flashcardID, ownerID string) ([]domain.ReviewEvent, error) {
	events := []domain.ReviewEvent{}
	err := db.conn.SelectContext(ctx, &events, db.conn.Rebind(`
		SELECT `+reviewEventColumns+`
		FROM review_events WHERE flashcard_id = ? AND owner_id = ?
		ORDER BY created_at DESC, id
	`), flashcardID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review events for flashcard %s: %w", flashcardID, err)
	}
	return events, nil
}

// DeleteFlashcard removes an owner's card and its review history.
func (db *DB) DeleteFlashcard(ctx context.Context, id, ownerID string) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		DELETE FROM review_events
		WHERE flashcard_id = ? AND owner_id = ?
	`), id, ownerID); err != nil {
		return fmt.Errorf("failed to delete review events for flashcard %s: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		DELETE FROM flashcards
		WHERE id = ? AND owner_id = ?
	`), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete flashcard %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to read delete result for flashcard %s: %w", id, err)
	} else if n == 0 {
		return fmt.Errorf("flashcard %s: %w", id, domain.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of flashcard %s: %w", id, err)
	}
	return nil
}

type deckTotals struct {
	TotalCards    int `db:"total_cards"`
	DueCards      int `db:"due_cards"`
	NewCards      int `db:"new_cards"`
	MasteredCards int `db:"mastered_cards"`
	TotalReviews  int `db:"total_reviews"`
	CorrectCount  int `db:"correct_count"`
}

// Stats aggregates an owner's deck at the given time. The streak counts
// consecutive UTC days with at least one review, ending today or yesterday.
func (db *DB) Stats(ctx context.Context, ownerID string, now time.Time) (*domain.Stats, error) {
	now = now.UTC()

	var totals deckTotals
	err := db.conn.GetContext(ctx, &totals, db.conn.Rebind(`
		SELECT
			COUNT(*) AS total_cards,
			COALESCE(SUM(CASE WHEN next_review <= ? THEN 1 ELSE 0 END), 0) AS due_cards,
			COALESCE(SUM(CASE WHEN review_count = 0 THEN 1 ELSE 0 END), 0) AS new_cards,
			COALESCE(SUM(CASE WHEN retention_level >= 5 THEN 1 ELSE 0 END), 0) AS mastered_cards,
			COALESCE(SUM(review_count), 0) AS total_reviews,
			COALESCE(SUM(correct_count), 0) AS correct_count
		FROM flashcards WHERE owner_id = ?
	`), now, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate flashcards for %s: %w", ownerID, err)
	}

	var reviewedAt []time.Time
	err = db.conn.SelectContext(ctx, &reviewedAt, db.conn.Rebind(`
		SELECT created_at FROM review_events
		WHERE owner_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`), ownerID, now.AddDate(0, 0, -366))
	if err != nil {
		return nil, fmt.Errorf("failed to list review days for %s: %w", ownerID, err)
	}

	stats := &domain.Stats{
		TotalCards:    totals.TotalCards,
		DueCards:      totals.DueCards,
		NewCards:      totals.NewCards,
		MasteredCards: totals.MasteredCards,
		TotalReviews:  totals.TotalReviews,
		CorrectCount:  totals.CorrectCount,
		StreakDays:    streak(reviewedAt, now),
	}
	if stats.TotalReviews > 0 {
		stats.Accuracy = stats.CorrectCount * 100 / stats.TotalReviews
	}
	return stats, nil
}

func streak(reviewedAt []time.Time, now time.Time) int {
	days := make(map[string]bool, len(reviewedAt))
	for _, t := range reviewedAt {
		days[t.UTC().Format(time.DateOnly)] = true
	}

	day := now.UTC()
	if !days[day.Format(time.DateOnly)] {
		day = day.AddDate(0, 0, -1)
	}
	n := 0
	for days[day.Format(time.DateOnly)] {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
