package domain

import (
	"errors"
	"testing"
	"time"
)

func success(id string) Result {
	o := Succeeded(SuccessResult{Passed: true})
	o.RequestID = RequestID(id)
	return Result{Outcome: o, Attempts: 1}
}

func TestTrialState_Lifecycle(t *testing.T) {
	s := NewTrialState("k")
	now := time.Now()

	trial, id, err := s.Begin()
	if err != nil || trial != 1 || id != "" {
		t.Fatalf("first Begin: trial=%d id=%q err=%v", trial, id, err)
	}
	if err := s.Record(success("abc"), now); err != nil {
		t.Fatal(err)
	}
	if s.RequestID != "abc" {
		t.Fatalf("expected identifier to be seeded, got %q", s.RequestID)
	}

	for want := 2; want <= 5; want++ {
		trial, id, err := s.Begin()
		if err != nil {
			t.Fatal(err)
		}
		if trial != want || id != "abc" || s.Phase != PhaseResubmitted {
			t.Fatalf("expected trial %d with abc, got %d/%q/%s", want, trial, id, s.Phase)
		}
		if err := s.Record(success("abc"), now); err != nil {
			t.Fatal(err)
		}
	}
	if len(s.History) != 5 {
		t.Errorf("expected 5 records, got %d", len(s.History))
	}
	for i, r := range s.History {
		if r.Trial != i+1 {
			t.Errorf("record %d has trial %d", i, r.Trial)
		}
	}

	if _, err := s.Accept(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Begin(); !errors.Is(err, ErrTrialClosed) {
		t.Errorf("expected ErrTrialClosed, got %v", err)
	}
	if s.Trial != 5 {
		t.Errorf("trial must never reset, got %d", s.Trial)
	}
}

func TestTrialState_NetworkErrorDoesNotSeed(t *testing.T) {
	s := NewTrialState("k")
	_, _, _ = s.Begin()

	o := NetworkFailure(errors.New("timeout"))
	o.RequestID = "ignored"
	if err := s.Record(Result{Outcome: o}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if s.RequestID != "" {
		t.Errorf("network errors must not seed the identifier, got %q", s.RequestID)
	}
	if _, _, err := s.Begin(); !errors.Is(err, ErrNoRequestID) {
		t.Errorf("expected ErrNoRequestID, got %v", err)
	}
}

func TestTrialState_ErrorResponseSeeds(t *testing.T) {
	s := NewTrialState("k")
	_, _, _ = s.Begin()

	o := Failed(OutcomeClientError, CodeFaceDetectionFailed, "no face", nil)
	o.RequestID = "r1"
	if err := s.Record(Result{Outcome: o, Attempts: 1}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if s.RequestID != "r1" {
		t.Errorf("any non-network response seeds the identifier, got %q", s.RequestID)
	}

	_, _, _ = s.Begin()
	if err := s.Record(success("r2"), time.Now()); err == nil {
		t.Errorf("expected an error when the identifier changes")
	}
}

func TestTrialState_Guards(t *testing.T) {
	s := NewTrialState("k")
	if err := s.Record(success("x"), time.Now()); err == nil {
		t.Errorf("expected Record before Begin to fail")
	}
	if _, err := s.Accept(); !errors.Is(err, ErrNothingToAccept) {
		t.Errorf("expected ErrNothingToAccept, got %v", err)
	}
}
