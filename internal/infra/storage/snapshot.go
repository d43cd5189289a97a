package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/snap2pass/internal/core/domain"
)

// Wire form of a TrialState. Outcome causes are kept as text since arbitrary
// errors do not round-trip through JSON.
type stateSnapshot struct {
	Key       string           `json:"key"`
	RequestID string           `json:"request_id,omitempty"`
	Trial     int              `json:"trial"`
	Phase     string           `json:"phase"`
	History   []recordSnapshot `json:"history"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type recordSnapshot struct {
	Trial      int             `json:"trial"`
	Attempts   int             `json:"attempts"`
	Exhausted  bool            `json:"exhausted,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
	Outcome    outcomeSnapshot `json:"outcome"`
}

type outcomeSnapshot struct {
	Kind           string                `json:"kind"`
	RequestID      string                `json:"request_id,omitempty"`
	Trial          int                   `json:"trial,omitempty"`
	HTTPStatus     int                   `json:"http_status,omitempty"`
	RetryAfter     time.Duration         `json:"retry_after,omitempty"`
	Success        *domain.SuccessResult `json:"success,omitempty"`
	Error          *domain.APIError      `json:"error,omitempty"`
	CurrentBalance float64               `json:"current_balance,omitempty"`
	Cause          string                `json:"cause,omitempty"`
}

// MarshalTrialState encodes a state for a byte-oriented store.
func MarshalTrialState(s *domain.TrialState) ([]byte, error) {
	snap := stateSnapshot{
		Key:       s.Key,
		RequestID: string(s.RequestID),
		Trial:     s.Trial,
		Phase:     string(s.Phase),
		History:   make([]recordSnapshot, 0, len(s.History)),
		UpdatedAt: s.UpdatedAt,
	}
	for _, r := range s.History {
		o := r.Outcome
		os := outcomeSnapshot{
			Kind:           o.Kind.String(),
			RequestID:      string(o.RequestID),
			Trial:          o.Trial,
			HTTPStatus:     o.HTTPStatus,
			RetryAfter:     o.RetryAfter,
			Success:        o.Success,
			Error:          o.Error,
			CurrentBalance: o.CurrentBalance,
		}
		if o.Cause != nil {
			os.Cause = o.Cause.Error()
		}
		snap.History = append(snap.History, recordSnapshot{
			Trial:      r.Trial,
			Attempts:   r.Attempts,
			Exhausted:  r.Exhausted,
			RecordedAt: r.RecordedAt,
			Outcome:    os,
		})
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trial state: %w", err)
	}
	return data, nil
}

// UnmarshalTrialState decodes a state written by MarshalTrialState.
func UnmarshalTrialState(data []byte) (*domain.TrialState, error) {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trial state: %w", err)
	}
	s := &domain.TrialState{
		Key:       snap.Key,
		RequestID: domain.RequestID(snap.RequestID),
		Trial:     snap.Trial,
		Phase:     domain.TrialPhase(snap.Phase),
		UpdatedAt: snap.UpdatedAt,
	}
	for _, r := range snap.History {
		kind, err := domain.ParseOutcomeKind(r.Outcome.Kind)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", r.Trial, err)
		}
		o := domain.Outcome{
			Kind:           kind,
			RequestID:      domain.RequestID(r.Outcome.RequestID),
			Trial:          r.Outcome.Trial,
			HTTPStatus:     r.Outcome.HTTPStatus,
			RetryAfter:     r.Outcome.RetryAfter,
			Success:        r.Outcome.Success,
			Error:          r.Outcome.Error,
			CurrentBalance: r.Outcome.CurrentBalance,
		}
		if r.Outcome.Cause != "" {
			o.Cause = errors.New(r.Outcome.Cause)
		}
		s.History = append(s.History, domain.TrialRecord{
			Trial:      r.Trial,
			Outcome:    o,
			Attempts:   r.Attempts,
			Exhausted:  r.Exhausted,
			RecordedAt: r.RecordedAt,
		})
	}
	return s, nil
}
