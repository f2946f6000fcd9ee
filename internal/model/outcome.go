package model

// Outcome is the terminal state of one message's trip through the pipeline.
// Every value is an expected, handled case; none of them aborts the run.
type Outcome string

const (
	// OutcomeCommitted: a new entry was recorded.
	OutcomeCommitted Outcome = "committed"
	// OutcomeDuplicate: the message verified but an entry already exists
	// for its (user, date). The message is archived, the entry untouched.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeMalformed: the header or body could not be parsed at all.
	OutcomeMalformed Outcome = "malformed"
	// OutcomeUnsupported: no usable text/plain part.
	OutcomeUnsupported Outcome = "unsupported"
	// OutcomeUnverified: no candidate token validated.
	OutcomeUnverified Outcome = "unverified"
	// OutcomeEmpty: quote stripping left no text.
	OutcomeEmpty Outcome = "empty"
)

func (o Outcome) String() string { return string(o) }

// Outcomes lists every terminal outcome, in reporting order.
var Outcomes = []Outcome{
	OutcomeCommitted,
	OutcomeDuplicate,
	OutcomeMalformed,
	OutcomeUnsupported,
	OutcomeUnverified,
	OutcomeEmpty,
}
