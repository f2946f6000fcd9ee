package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"journalmail/pkg/config"
	"journalmail/pkg/metrics"
)

// CommitRequest carries everything one message produced: the raw bytes to
// archive, and the extracted entry when the pipeline got that far.
type CommitRequest struct {
	DedupKey   string
	ReceivedAt time.Time
	Raw        []byte
	Entry      *EntryDraft // nil when there is nothing to record
}

// EntryDraft is a verified, stripped entry waiting to be recorded.
type EntryDraft struct {
	UserID int64
	Date   time.Time
	Body   string
}

type CommitResult struct {
	RawMessageID uuid.UUID
	EntryID      int64
	Recorded     bool
	Duplicate    bool
}

// IngestStore performs the one durable transaction per message: archive the
// raw bytes if absent, then record the entry. The (user_id, entry_date)
// uniqueness constraint is the only synchronization primitive; a losing
// racer simply observes the conflict and reports Duplicate.
type IngestStore struct {
	db          *pgxpool.Pool
	onDuplicate string
}

func NewIngestStore(db *pgxpool.Pool, onDuplicate string) *IngestStore {
	return &IngestStore{db: db, onDuplicate: onDuplicate}
}

func (s *IngestStore) Commit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("commit", "raw_messages", time.Since(start)) }()

	var res CommitResult

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rawID := uuid.New()
	tag, err := tx.Exec(ctx, `
        INSERT INTO raw_messages (id, received_at, dedup_key, raw)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (dedup_key) DO NOTHING
    `, rawID, req.ReceivedAt, req.DedupKey, req.Raw)
	if err != nil {
		return res, fmt.Errorf("failed to archive raw message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// already archived on a previous run; reuse that row
		err := tx.QueryRow(ctx,
			`SELECT id FROM raw_messages WHERE dedup_key = $1`, req.DedupKey,
		).Scan(&rawID)
		if err != nil {
			return res, fmt.Errorf("failed to load archived raw message: %w", err)
		}
	}
	res.RawMessageID = rawID

	if req.Entry != nil {
		if s.onDuplicate == config.OnDuplicateReplace {
			err = tx.QueryRow(ctx, `
                INSERT INTO entries (user_id, entry_date, body, raw_message_id)
                VALUES ($1, $2, $3, $4)
                ON CONFLICT (user_id, entry_date) DO UPDATE SET
                    body = EXCLUDED.body,
                    raw_message_id = EXCLUDED.raw_message_id,
                    created_at = NOW()
                RETURNING id
            `, req.Entry.UserID, req.Entry.Date, req.Entry.Body, rawID).Scan(&res.EntryID)
			if err != nil {
				return res, fmt.Errorf("failed to record entry: %w", err)
			}
			res.Recorded = true
		} else {
			err = tx.QueryRow(ctx, `
                INSERT INTO entries (user_id, entry_date, body, raw_message_id)
                VALUES ($1, $2, $3, $4)
                ON CONFLICT (user_id, entry_date) DO NOTHING
                RETURNING id
            `, req.Entry.UserID, req.Entry.Date, req.Entry.Body, rawID).Scan(&res.EntryID)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				// first entry wins; the new message stays archived
				res.Duplicate = true
			case err != nil:
				return res, fmt.Errorf("failed to record entry: %w", err)
			default:
				res.Recorded = true
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("failed to commit: %w", err)
	}
	return res, nil
}
