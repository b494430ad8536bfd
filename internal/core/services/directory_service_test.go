package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

func TestCreateTeacher(t *testing.T) {
	h := newHarness(t)

	teacher, err := h.directory.CreateTeacher(h.ctx, "  Ms. Jansen ", " Maths ")
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	if teacher.Name != "Ms. Jansen" || teacher.Subject != "Maths" {
		t.Errorf("expected trimmed fields, got %q %q", teacher.Name, teacher.Subject)
	}
	if !teacher.Active {
		t.Error("new teachers should be active")
	}
	if len(teacher.Code) != domain.CodeLength || !domain.ValidCode(teacher.Code) {
		t.Errorf("unexpected code %q", teacher.Code)
	}

	if _, err := h.directory.CreateTeacher(h.ctx, "   ", "Maths"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateTeacher_CodeCollisionFallsBack(t *testing.T) {
	h := newHarness(t)
	h.directory.nextCode = func() string { return "abc234" }

	first, err := h.directory.CreateTeacher(h.ctx, "First", "")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if first.Code != "ABC234" {
		t.Fatalf("expected normalized candidate, got %q", first.Code)
	}

	second, err := h.directory.CreateTeacher(h.ctx, "Second", "")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.Code == first.Code {
		t.Fatal("codes must be unique")
	}
	if second.Code != domain.FallbackCode(second.ID) {
		t.Errorf("expected fallback code %q, got %q", domain.FallbackCode(second.ID), second.Code)
	}
}

func TestTeacherByCode(t *testing.T) {
	h := newHarness(t)
	teacher := h.teacher("Ms. Jansen")

	tests := []struct {
		name string
		code string
		want error
	}{
		{"exact", teacher.Code, nil},
		{"lower case with spaces", "  " + strings.ToLower(teacher.Code) + " ", nil},
		{"unknown", "ZZZZZZ", domain.ErrTeacherNotFound},
		{"malformed", "no-such-code!", domain.ErrTeacherNotFound},
		{"empty", "", domain.ErrTeacherNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.directory.TeacherByCode(h.ctx, tt.code)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if tt.want == nil && got.ID != teacher.ID {
				t.Errorf("expected teacher %s, got %s", teacher.ID, got.ID)
			}
		})
	}
}

func TestSetTeacherActive(t *testing.T) {
	h := newHarness(t)
	teacher := h.teacher("Ms. Jansen")
	a, b := h.parent("A"), h.parent("B")
	ea := h.join(teacher, a, "Sam")

	updated, err := h.directory.SetTeacherActive(h.ctx, teacher.ID, false)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if updated.Active {
		t.Error("expected teacher to be inactive")
	}

	// queued parents are left alone
	h.expectStatus(ea, domain.StatusCurrent)
	if _, err := h.scheduler.Join(h.ctx, teacher.ID, b.ID, "Lina"); !errors.Is(err, domain.ErrTeacherInactive) {
		t.Errorf("expected ErrTeacherInactive, got %v", err)
	}

	if _, err := h.directory.SetTeacherActive(h.ctx, teacher.ID, true); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	h.join(teacher, b, "Lina")

	if _, err := h.directory.SetTeacherActive(h.ctx, "missing", true); !errors.Is(err, domain.ErrTeacherNotFound) {
		t.Errorf("expected ErrTeacherNotFound, got %v", err)
	}
}

func TestListTeachers(t *testing.T) {
	h := newHarness(t)
	h.teacher("Ms. Jansen")
	h.teacher("Mr. Bakker")

	teachers, err := h.directory.ListTeachers(h.ctx)
	if err != nil {
		t.Fatalf("list teachers: %v", err)
	}
	if len(teachers) != 2 {
		t.Fatalf("expected 2 teachers, got %d", len(teachers))
	}
}

func TestStartParentSession(t *testing.T) {
	h := newHarness(t)

	first, err := h.directory.StartParentSession(h.ctx, "device-1", "Anna")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	again, err := h.directory.StartParentSession(h.ctx, "device-1", "Anna B.")
	if err != nil {
		t.Fatalf("resume session: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("same device should resume session %s, got %s", first.ID, again.ID)
	}

	other, err := h.directory.StartParentSession(h.ctx, "", "Anna")
	if err != nil {
		t.Fatalf("anonymous session: %v", err)
	}
	if other.ID == first.ID || other.DeviceToken == "" {
		t.Errorf("expected a fresh session with a generated device token, got %+v", other)
	}

	if _, err := h.directory.StartParentSession(h.ctx, "device-2", " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
