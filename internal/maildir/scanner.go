// Package maildir enumerates the mail drop and drives each not-yet-seen
// message through the ingest pipeline. Files are never moved or deleted;
// their lifecycle belongs to the mail transport agent.
package maildir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"journalmail/internal/model"
	"journalmail/pkg/metrics"
)

// Pipeline processes one message and returns its terminal outcome.
type Pipeline interface {
	Process(ctx context.Context, dedupKey string, raw []byte) (model.Outcome, error)
}

// ArchiveIndex answers whether a dedup key is already durably archived.
type ArchiveIndex interface {
	Exists(ctx context.Context, dedupKey string) (bool, error)
}

// SeenCache is an optional fast-path in front of the archive index; it may
// be nil. It must fail open: claiming "not seen" is always safe.
type SeenCache interface {
	Seen(ctx context.Context, key string) bool
	MarkSeen(ctx context.Context, key string)
}

type Scanner struct {
	dir      string
	pipeline Pipeline
	archive  ArchiveIndex
	cache    SeenCache
	logger   *zap.Logger
}

func NewScanner(dir string, pipeline Pipeline, archive ArchiveIndex, cache SeenCache, logger *zap.Logger) *Scanner {
	return &Scanner{
		dir:      dir,
		pipeline: pipeline,
		archive:  archive,
		cache:    cache,
		logger:   logger,
	}
}

// Summary aggregates one scan's per-file results.
type Summary struct {
	Outcomes      map[model.Outcome]int
	Skipped       int
	StoreFailures int
}

func (s Summary) Fields() []zap.Field {
	fields := make([]zap.Field, 0, len(model.Outcomes)+2)
	for _, o := range model.Outcomes {
		fields = append(fields, zap.Int(o.String(), s.Outcomes[o]))
	}
	fields = append(fields,
		zap.Int("skipped", s.Skipped),
		zap.Int("store_failures", s.StoreFailures),
	)
	return fields
}

// Scan walks new/ and cur/, processing every file whose dedup key is not yet
// archived. It fails only when the mail drop itself cannot be read; per-file
// problems are counted and skipped.
func (s *Scanner) Scan(ctx context.Context) (Summary, error) {
	start := time.Now()
	defer func() { metrics.RecordScanDuration(time.Since(start)) }()

	summary := Summary{Outcomes: make(map[model.Outcome]int)}

	for _, sub := range []string{"new", "cur"} {
		dir := filepath.Join(s.dir, sub)
		dirents, err := os.ReadDir(dir)
		if err != nil {
			return summary, fmt.Errorf("failed to open mail drop %s: %w", dir, err)
		}

		for _, dirent := range dirents {
			if dirent.IsDir() {
				continue
			}
			if err := s.scanFile(ctx, filepath.Join(dir, dirent.Name()), dirent.Name(), &summary); err != nil {
				return summary, err
			}
		}
	}

	return summary, nil
}

func (s *Scanner) scanFile(ctx context.Context, path, name string, summary *Summary) error {
	key := DedupKey(name)

	if s.cache != nil && s.cache.Seen(ctx, key) {
		summary.Skipped++
		return nil
	}

	archived, err := s.archive.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check archive for %s: %w", key, err)
	}
	if archived {
		if s.cache != nil {
			s.cache.MarkSeen(ctx, key)
		}
		summary.Skipped++
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("unreadable message file", zap.String("path", path), zap.Error(err))
		summary.StoreFailures++
		return nil
	}

	outcome, err := s.pipeline.Process(ctx, key, raw)
	if err != nil {
		// storage failed; the file stays eligible for the next scan
		s.logger.Error("failed to commit message", zap.String("dedup_key", key), zap.Error(err))
		summary.StoreFailures++
		return nil
	}

	summary.Outcomes[outcome]++
	if s.cache != nil {
		s.cache.MarkSeen(ctx, key)
	}
	return nil
}

// DedupKey is the stable maildir base filename: delivery id without the
// ":2,<flags>" suffix, so flag changes by the MTA do not look like new mail.
func DedupKey(filename string) string {
	if i := strings.Index(filename, ":"); i >= 0 {
		return filename[:i]
	}
	return filename
}
