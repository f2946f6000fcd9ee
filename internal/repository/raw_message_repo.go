package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"journalmail/pkg/metrics"
)

type RawMessageRepository struct {
	db *pgxpool.Pool
}

func NewRawMessageRepository(db *pgxpool.Pool) *RawMessageRepository {
	return &RawMessageRepository{db: db}
}

// Exists reports whether a message with the given dedup key is already
// archived. The scanner uses this to skip files without re-reading them.
func (r *RawMessageRepository) Exists(ctx context.Context, dedupKey string) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("select", "raw_messages", time.Since(start)) }()

	query := `
        SELECT EXISTS (SELECT 1 FROM raw_messages WHERE dedup_key = $1)
    `
	var exists bool
	if err := r.db.QueryRow(ctx, query, dedupKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check dedup key: %w", err)
	}
	return exists, nil
}
