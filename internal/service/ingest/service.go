// Package ingest drives one message through decoding, correlation, quote
// stripping and the commit, and maps the result to a terminal outcome.
// Every outcome is an expected case; only a store failure is an error, and
// it leaves the file eligible for the next scan.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	mqcontracts "journalmail/contracts/mq"
	"journalmail/internal/correlate"
	"journalmail/internal/maildecode"
	"journalmail/internal/model"
	"journalmail/internal/repository"
	"journalmail/internal/strip"
	"journalmail/pkg/metrics"
)

// Committer persists one message's outcome in a single transaction.
type Committer interface {
	Commit(ctx context.Context, req repository.CommitRequest) (repository.CommitResult, error)
}

// EventPublisher publishes pipeline events; nil disables publishing.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type Service struct {
	correlator *correlate.Correlator
	committer  Committer
	publisher  EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(correlator *correlate.Correlator, committer Committer, publisher EventPublisher, logger *zap.Logger) *Service {
	return &Service{
		correlator: correlator,
		committer:  committer,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Process runs the full pipeline for one message. The raw bytes are archived
// whatever the outcome; the returned error means the archive itself did not
// durably land.
func (s *Service) Process(ctx context.Context, dedupKey string, raw []byte) (model.Outcome, error) {
	outcome, draft := s.examine(dedupKey, raw)

	res, err := s.committer.Commit(ctx, repository.CommitRequest{
		DedupKey:   dedupKey,
		ReceivedAt: s.now(),
		Raw:        raw,
		Entry:      draft,
	})
	if err != nil {
		return "", err
	}

	if draft != nil {
		if res.Recorded {
			outcome = model.OutcomeCommitted
			s.publishRecorded(res, draft)
		} else {
			outcome = model.OutcomeDuplicate
			s.logger.Info("entry already exists, keeping first",
				zap.String("dedup_key", dedupKey),
				zap.Int64("user_id", draft.UserID),
				zap.String("date", draft.Date.Format("2006-01-02")),
			)
		}
	}

	metrics.RecordIngestOutcome(outcome.String())
	return outcome, nil
}

// examine runs the storage-free part of the pipeline: decode, correlate,
// strip. It returns the terminal outcome for messages that stop early, or an
// entry draft for the committer.
func (s *Service) examine(dedupKey string, raw []byte) (model.Outcome, *repository.EntryDraft) {
	msg, err := maildecode.Decode(raw)
	if err != nil {
		s.logger.Warn("undecodable message", zap.String("dedup_key", dedupKey), zap.Error(err))
		return model.OutcomeMalformed, nil
	}

	userID, date, err := s.correlator.Resolve(msg.Header)
	if err != nil {
		return model.OutcomeUnverified, nil
	}

	text, ok := msg.PlainText()
	if !ok {
		return model.OutcomeUnsupported, nil
	}

	body, err := strip.Strip(text)
	if err != nil {
		return model.OutcomeEmpty, nil
	}

	return "", &repository.EntryDraft{UserID: userID, Date: date, Body: body}
}

func (s *Service) publishRecorded(res repository.CommitResult, draft *repository.EntryDraft) {
	if s.publisher == nil {
		return
	}
	payload := mqcontracts.EntryRecordedPayload{
		EntryID:      res.EntryID,
		UserID:       draft.UserID,
		Date:         draft.Date.Format("2006-01-02"),
		RawMessageID: res.RawMessageID.String(),
		RecordedAt:   s.now(),
	}
	if err := s.publisher.Publish("entry.recorded", payload); err != nil {
		// best-effort: the entry is already durably committed
		s.logger.Warn("failed to publish entry.recorded", zap.Error(err))
	}
}
