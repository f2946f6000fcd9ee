package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"journalmail/pkg/metrics"
)

type EntryRepository struct {
	db *pgxpool.Pool
}

func NewEntryRepository(db *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{db: db}
}

// GetBody returns the entry text for (userID, date), with ok=false when no
// entry exists.
func (r *EntryRepository) GetBody(ctx context.Context, userID int64, date time.Time) (string, bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("select", "entries", time.Since(start)) }()

	query := `
        SELECT body
        FROM entries
        WHERE user_id = $1 AND entry_date = $2
    `
	var body string
	err := r.db.QueryRow(ctx, query, userID, date).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query entry: %w", err)
	}
	return body, true, nil
}

// OldestEntryDate returns the date of the user's first entry, with ok=false
// when the user has none.
func (r *EntryRepository) OldestEntryDate(ctx context.Context, userID int64) (time.Time, bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("select", "entries", time.Since(start)) }()

	query := `
        SELECT MIN(entry_date)
        FROM entries
        WHERE user_id = $1
    `
	var oldest *time.Time
	if err := r.db.QueryRow(ctx, query, userID).Scan(&oldest); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query oldest entry: %w", err)
	}
	if oldest == nil {
		return time.Time{}, false, nil
	}
	return *oldest, true, nil
}
