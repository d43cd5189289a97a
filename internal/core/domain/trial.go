package domain

import (
	"errors"
	"fmt"
	"time"
)

// TrialPhase is the lifecycle position of a TrialState.
type TrialPhase string

const (
	PhaseUnsubmitted TrialPhase = "unsubmitted"
	PhaseSubmitted   TrialPhase = "submitted"
	PhaseResubmitted TrialPhase = "resubmitted"
	PhaseAccepted    TrialPhase = "accepted"
)

var (
	// ErrTrialClosed is returned when a submission is attempted on an accepted state.
	ErrTrialClosed = errors.New("trial state already accepted")
	// ErrNoRequestID is returned when a resubmission is attempted before the
	// service has assigned an identifier.
	ErrNoRequestID = errors.New("no request id to resubmit with")
	// ErrNothingToAccept is returned by Accept on a state with no outcomes.
	ErrNothingToAccept = errors.New("no outcome recorded")
)

// TrialRecord is one entry of a TrialState history.
type TrialRecord struct {
	Trial      int
	Outcome    Outcome
	Attempts   int
	Exhausted  bool
	RecordedAt time.Time
}

// TrialState tracks the trials of one logical photo submission.
type TrialState struct {
	Key       string
	RequestID RequestID
	Trial     int
	Phase     TrialPhase
	History   []TrialRecord
	UpdatedAt time.Time
}

// NewTrialState creates an unsubmitted state.
func NewTrialState(key string) *TrialState {
	return &TrialState{Key: key, Phase: PhaseUnsubmitted}
}

// Begin advances the state for the next submission and returns the trial
// number and the identifier the submission must carry.
func (s *TrialState) Begin() (int, RequestID, error) {
	switch s.Phase {
	case PhaseAccepted:
		return 0, "", ErrTrialClosed
	case PhaseUnsubmitted, "":
		s.Trial = 1
		s.Phase = PhaseSubmitted
		return s.Trial, "", nil
	}
	if s.RequestID == "" {
		return 0, "", ErrNoRequestID
	}
	s.Trial++
	s.Phase = PhaseResubmitted
	return s.Trial, s.RequestID, nil
}

// Record appends the result of the current trial. The first identifier the
// service returns seeds the state; later ones must match it.
func (s *TrialState) Record(res Result, at time.Time) error {
	if s.Phase == PhaseAccepted {
		return ErrTrialClosed
	}
	if s.Trial == 0 {
		return fmt.Errorf("record before begin")
	}
	o := res.Outcome
	if o.Kind != OutcomeNetworkError && o.RequestID != "" {
		if s.RequestID == "" {
			s.RequestID = o.RequestID
		} else if s.RequestID != o.RequestID {
			return fmt.Errorf("request id changed from %s to %s", s.RequestID, o.RequestID)
		}
	}
	s.History = append(s.History, TrialRecord{
		Trial:      s.Trial,
		Outcome:    o,
		Attempts:   res.Attempts,
		Exhausted:  res.Exhausted,
		RecordedAt: at,
	})
	s.UpdatedAt = at
	return nil
}

// Last returns the most recent record.
func (s *TrialState) Last() (TrialRecord, bool) {
	if len(s.History) == 0 {
		return TrialRecord{}, false
	}
	return s.History[len(s.History)-1], true
}

// Accept closes the state on its latest outcome.
func (s *TrialState) Accept() (TrialRecord, error) {
	last, ok := s.Last()
	if !ok {
		return TrialRecord{}, ErrNothingToAccept
	}
	s.Phase = PhaseAccepted
	return last, nil
}
