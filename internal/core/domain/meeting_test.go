package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestMeeting_Close(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want int
	}{
		{"whole seconds", start.Add(7*time.Minute + 30*time.Second), 450},
		{"truncates fractions", start.Add(2500 * time.Millisecond), 2},
		{"clock skew clamps to zero", start.Add(-time.Second), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Meeting{ID: "m1", StartedAt: start}
			if err := m.Close(tt.end); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.IsOpen() {
				t.Error("meeting should be closed")
			}
			if *m.DurationSeconds != tt.want {
				t.Errorf("expected %d seconds, got %d", tt.want, *m.DurationSeconds)
			}
		})
	}
}

func TestMeeting_CloseTwice(t *testing.T) {
	m := &Meeting{ID: "m1", StartedAt: time.Now()}
	if err := m.Close(time.Now()); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := m.Close(time.Now()); !errors.Is(err, ErrMeetingNotOpen) {
		t.Errorf("expected ErrMeetingNotOpen, got %v", err)
	}
}

func TestTarget_Matches(t *testing.T) {
	parent := Subscriber{Role: RoleParent, Subject: "p1"}
	teacher := Subscriber{Role: RoleTeacher, Subject: "t1"}
	admin := Subscriber{Role: RoleAdmin, Subject: "a1"}

	tests := []struct {
		name   string
		target Target
		sub    Subscriber
		want   bool
	}{
		{"parent by id", ParentTarget("p1"), parent, true},
		{"other parent", ParentTarget("p2"), parent, false},
		{"teacher with parent id", ParentTarget("t1"), teacher, false},
		{"teacher by id", TeacherTarget("t1"), teacher, true},
		{"admin on teacher target", TeacherTarget("t1"), admin, false},
		{"any admin", AdminTarget(), admin, true},
		{"parent on admin target", AdminTarget(), parent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.Matches(tt.sub); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
