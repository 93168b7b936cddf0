package pipeline

import "time"

// State is a step of an ingestion run.
type State int

const (
	StateFetching State = iota
	StateExtracting
	StateSummarizing
	StateEmbedding
	StateStoring
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateFetching:    "fetching",
	StateExtracting:  "extracting",
	StateSummarizing: "summarizing",
	StateEmbedding:   "embedding",
	StateStoring:     "storing",
	StateDone:        "done",
	StateAborted:     "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Transition is reported to an Observer whenever a run changes state.
type Transition struct {
	RunID      string
	DocumentID string
	From, To   State
	// Err is the abort reason when To is StateAborted, or the summary failure
	// when leaving StateSummarizing without a summary.
	Err     error
	Elapsed time.Duration
}

// Observer receives transitions synchronously from the running goroutine.
type Observer func(Transition)
