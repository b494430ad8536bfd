package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestTransition_Table(t *testing.T) {
	tests := []struct {
		from   EntryStatus
		event  EntryEvent
		to     EntryStatus
		notice Notice
	}{
		{statusNew, EventJoin, StatusWaiting, NoticeQueued},
		{StatusWaiting, EventPromote, StatusNext, NoticeGettingClose},
		{StatusWaiting, EventAdmit, StatusCurrent, NoticeYourTurn},
		{StatusNext, EventAdmit, StatusCurrent, NoticeYourTurn},
		{StatusSkipped, EventAdmit, StatusCurrent, NoticeYourTurn},
		{StatusWaiting, EventParentBusy, StatusSkipped, NoticeParentBusy},
		{StatusNext, EventParentBusy, StatusSkipped, NoticeParentBusy},
		{StatusSkipped, EventRequeue, StatusWaiting, NoticeRequeued},
		{StatusCurrent, EventComplete, StatusCompleted, NoticeThankYou},
		{StatusCurrent, EventRemove, StatusCompleted, NoticeRemoved},
		{StatusSkipped, EventLeave, StatusCompleted, NoticeLeft},
		{StatusCurrent, EventLeave, StatusCompleted, NoticeLeft},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			step, err := Transition(tt.from, tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if step.To != tt.to {
				t.Errorf("expected %s, got %s", tt.to, step.To)
			}
			if step.Notice != tt.notice {
				t.Errorf("expected notice %s, got %s", tt.notice, step.Notice)
			}
		})
	}
}

func TestTransition_Illegal(t *testing.T) {
	tests := []struct {
		from  EntryStatus
		event EntryEvent
	}{
		{StatusCompleted, EventAdmit},
		{StatusCompleted, EventLeave},
		{StatusCurrent, EventAdmit},
		{StatusCurrent, EventParentBusy},
		{StatusSkipped, EventPromote},
		{StatusNext, EventPromote},
		{StatusWaiting, EventComplete},
		{StatusWaiting, EventRequeue},
		{statusNew, EventAdmit},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			_, err := Transition(tt.from, tt.event)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if !IsInvariantViolation(err) {
				t.Error("illegal transitions must count as invariant violations")
			}
		})
	}
}

func TestApply_Stamps(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	e := &QueueEntry{ID: "e1"}

	if _, err := e.Apply(EventJoin, t0); err != nil {
		t.Fatalf("join: %v", err)
	}
	if !e.JoinedAt.Equal(t0) || e.Status != StatusWaiting {
		t.Fatalf("join did not stamp: %+v", e)
	}

	t1 := t0.Add(time.Minute)
	if _, err := e.Apply(EventPromote, t1); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if e.NotifiedAt == nil || !e.NotifiedAt.Equal(t1) {
		t.Errorf("expected notified_at %v, got %v", t1, e.NotifiedAt)
	}

	t2 := t1.Add(time.Minute)
	if _, err := e.Apply(EventAdmit, t2); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if e.StartedAt == nil || !e.StartedAt.Equal(t2) {
		t.Errorf("expected started_at %v, got %v", t2, e.StartedAt)
	}

	t3 := t2.Add(5 * time.Minute)
	step, err := e.Apply(EventRemove, t3)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if step.Notice != NoticeRemoved || !e.Removed || e.Status != StatusCompleted {
		t.Errorf("remove should complete and flag the entry: %+v", e)
	}
	if e.CompletedAt == nil || !e.CompletedAt.Equal(t3) {
		t.Errorf("expected completed_at %v, got %v", t3, e.CompletedAt)
	}
}

func TestApply_IllegalLeavesEntryUntouched(t *testing.T) {
	e := &QueueEntry{ID: "e1", Status: StatusCompleted, Position: 3}
	before := *e

	if _, err := e.Apply(EventAdmit, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if *e != before {
		t.Errorf("entry changed on illegal transition: %+v", e)
	}
}

func TestEntryStatus_Active(t *testing.T) {
	active := map[EntryStatus]bool{
		StatusWaiting:   true,
		StatusNext:      true,
		StatusCurrent:   true,
		StatusSkipped:   false,
		StatusCompleted: false,
	}
	for status, want := range active {
		if got := status.IsActive(); got != want {
			t.Errorf("%s.IsActive() = %v, want %v", status, got, want)
		}
	}
}
