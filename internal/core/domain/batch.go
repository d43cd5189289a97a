package domain

import "errors"

// ErrNotStarted is the cause reported for batch items skipped after cancellation.
var ErrNotStarted = errors.New("item not started")

// BatchItem is one input of a batch. Ref identifies the item to the caller.
type BatchItem struct {
	Ref        string
	Submission PhotoSubmission
}

// BatchEntry is the outcome of one batch item.
type BatchEntry struct {
	Index  int
	Ref    string
	Result Result
	// Trial is set when the item ran through the trial tracker.
	Trial *TrialState
}

// BatchResult holds one entry per input item, in input order.
type BatchResult struct {
	ID      string
	Entries []BatchEntry
}

// Summary counts entries per outcome kind.
func (b BatchResult) Summary() map[OutcomeKind]int {
	counts := make(map[OutcomeKind]int)
	for _, e := range b.Entries {
		counts[e.Result.Outcome.Kind]++
	}
	return counts
}

// Failed returns the entries whose outcome is not Success.
func (b BatchResult) Failed() []BatchEntry {
	var out []BatchEntry
	for _, e := range b.Entries {
		if e.Result.Outcome.Kind != OutcomeSuccess {
			out = append(out, e)
		}
	}
	return out
}
