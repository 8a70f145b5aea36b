package reconcile

// Outcome classifies a single steady-state tick.
type Outcome int

const (
	// OutcomeIdle means the observation was empty; the baseline is untouched.
	OutcomeIdle Outcome = iota
	// OutcomeUnchanged means the observation equals the applied snapshot.
	OutcomeUnchanged
	// OutcomeConverged means routes were applied and the snapshot advanced.
	OutcomeConverged
	// OutcomeRetry means the tick failed and the loop continues.
	OutcomeRetry
	// OutcomeFatal means the context was cancelled during the tick.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeConverged:
		return "converged"
	case OutcomeRetry:
		return "retry"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// TickResult is the typed result of one tick.
type TickResult struct {
	Outcome Outcome
	// Routes is the number of destinations applied during the tick.
	Routes int
	// FailedTables counts route table mutations that failed.
	FailedTables int
	// Skipped counts addresses that could not be resolved or belonged to an
	// unknown interface.
	Skipped int
	Err     error
}
