package mq

import "time"

// EntryRecordedPayload is published on routing key "entry.recorded" after a
// journal entry lands.
type EntryRecordedPayload struct {
	EntryID      int64     `json:"entry_id"`
	UserID       int64     `json:"user_id"`
	Date         string    `json:"date"` // YYYY-MM-DD
	RawMessageID string    `json:"raw_message_id"`
	RecordedAt   time.Time `json:"recorded_at"`
}
