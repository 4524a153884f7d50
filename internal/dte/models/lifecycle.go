package models

import (
	"time"

	"facturasv/pkg/domain"
)

// State is a document's position in the issuance lifecycle. The transition
// table below is the single definition of legality; the retry loop
// SubmissionFailed -> Queued -> Submitting is deliberately modelled as
// explicit states so the machine stays exhaustively enumerable.
type State string

const (
	StateCreated          State = "created"
	StateValidated        State = "validated"
	StateSigned           State = "signed"
	StateSubmitting       State = "submitting"
	StateAccepted         State = "accepted"
	StateRejected         State = "rejected"
	StateSigningFailed    State = "signing_failed"
	StateSubmissionFailed State = "submission_failed"
	StateQueued           State = "queued"
	StateInvalidated      State = "invalidated"
)

var transitions = map[State][]State{
	StateCreated:          {StateValidated},
	StateValidated:        {StateSigned, StateSigningFailed},
	StateSigned:           {StateSubmitting, StateQueued},
	StateSubmitting:       {StateAccepted, StateRejected, StateSubmissionFailed},
	StateSubmissionFailed: {StateQueued},
	StateQueued:           {StateSubmitting},
	// SigningFailed re-enters the signing path only through an operator
	// manual-retry, which moves the document back to Validated.
	StateSigningFailed: {StateValidated},
	StateAccepted:      {StateInvalidated},
	StateRejected:      {},
	StateInvalidated:   {},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no authority-facing progress remains. Accepted
// still admits Invalidated, which is an operator action on an already-final
// authority outcome, not pipeline progress.
func (s State) Terminal() bool {
	switch s {
	case StateAccepted, StateRejected, StateInvalidated:
		return true
	default:
		return false
	}
}

func (s State) String() string { return string(s) }

// LifecycleRecord is the persisted row per document: the authoritative answer
// to "has this document already reached the authority". Exactly one record
// exists per document identifier.
type LifecycleRecord struct {
	DocumentID         domain.GenerationCode
	TaxpayerNIT        string
	Type               domain.DocumentType
	State              State
	StateEnteredAt     time.Time
	LastError          string
	AttemptCount       int
	AuthorityReference string // selloRecibido once accepted
}

// TransitionMeta carries the optional fields a transition may record.
type TransitionMeta struct {
	LastError          string
	AuthorityReference string
	// AttemptDelta is added to AttemptCount; a submission episode reports how
	// many authority exchanges it actually performed.
	AttemptDelta int
}
