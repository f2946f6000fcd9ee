package model

import (
	"time"

	"github.com/google/uuid"
)

// User is owned externally; the pipeline only reads it.
type User struct {
	ID            int64
	Username      string
	Email         string
	Timezone      string
	SendTimeLocal string
}

// RawMessage is the write-once archive of one message from the mail drop.
type RawMessage struct {
	ID         uuid.UUID
	ReceivedAt time.Time
	DedupKey   string
	Raw        []byte
}

// Entry is the journal text recovered from one verified reply. EntryDate is
// the calendar date the prompt referred to, not the reply's send date.
type Entry struct {
	ID           int64
	UserID       int64
	EntryDate    time.Time
	Body         string
	CreatedAt    time.Time
	RawMessageID uuid.UUID
}
