package mh

// OutcomeKind is the five-way classification of an authority exchange.
// Whatever the MH sends back, the submission client maps it onto exactly one
// of these; nothing above this package ever sees a raw HTTP status.
type OutcomeKind string

const (
	// OutcomeAccepted: estado PROCESADO, sello issued. Terminal.
	OutcomeAccepted OutcomeKind = "accepted"
	// OutcomeRejected: the document is invalid per the authority's own
	// rules. Terminal, never retried automatically.
	OutcomeRejected OutcomeKind = "rejected"
	// OutcomeTransient: timeout or 5xx; eligible for bounded retry.
	OutcomeTransient OutcomeKind = "transient"
	// OutcomeUnreachable: no usable connection, or the authority declared
	// maintenance. Routes to the contingency queue, not to immediate retry.
	OutcomeUnreachable OutcomeKind = "unreachable"
	// OutcomeAuthRejected: the bearer token was refused; the cache is
	// invalidated and the attempt counts as transient for retry purposes.
	OutcomeAuthRejected OutcomeKind = "auth_rejected"
)

// UnreachableCause distinguishes connectivity loss from declared maintenance.
// The emitter's contingency-reporting obligation differs between the two, so
// they are never collapsed into one.
type UnreachableCause string

const (
	CauseConnectionFailed UnreachableCause = "connection_failed"
	CauseMaintenance      UnreachableCause = "maintenance"
)

// Outcome is the classified result of one authority exchange.
type Outcome struct {
	Kind OutcomeKind

	// Sello is the authority reference, set when Kind is OutcomeAccepted.
	Sello string

	// ReasonCode and Observaciones describe a rejection.
	ReasonCode    string
	Observaciones []string

	// Cause qualifies OutcomeUnreachable.
	Cause UnreachableCause

	// Detail is a human-readable note for logs and lifecycle last_error.
	Detail string

	// Attempts is how many exchanges the client performed to reach this
	// outcome (retries included).
	Attempts int

	// ambiguous marks a transient failure where the request may have reached
	// the authority (timeout after send). Such attempts must be resolved with
	// a status query before the document is transmitted again.
	ambiguous bool
}
