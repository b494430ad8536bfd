package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/repository/memory"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/metrics"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/mocks"
)

// tickingClock moves forward one second on every read so join times are
// strictly ordered.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	store     *memory.Store
	notifier  *mocks.MockNotifier
	scheduler *Scheduler
	directory *DirectoryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, RunnerConfig{})
}

func newHarnessWithConfig(t *testing.T, cfg RunnerConfig) *harness {
	t.Helper()

	clock := &tickingClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
	cfg.Clock = clock.Now
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Microsecond
	}

	store := memory.NewStore()
	notifier := mocks.NewMockNotifier()
	logger := mocks.NewTestLogger()
	m := metrics.New(prometheus.NewRegistry())

	return &harness{
		t:         t,
		ctx:       context.Background(),
		store:     store,
		notifier:  notifier,
		scheduler: NewScheduler(store, notifier, m, logger, cfg),
		directory: NewDirectoryService(store, m, logger, cfg),
	}
}

func (h *harness) teacher(name string) *domain.Teacher {
	h.t.Helper()
	teacher, err := h.directory.CreateTeacher(h.ctx, name, "Maths")
	if err != nil {
		h.t.Fatalf("create teacher %s: %v", name, err)
	}
	return teacher
}

func (h *harness) parent(name string) *domain.ParentSession {
	h.t.Helper()
	p, err := h.directory.StartParentSession(h.ctx, "", name)
	if err != nil {
		h.t.Fatalf("start session %s: %v", name, err)
	}
	return p
}

func (h *harness) join(teacher *domain.Teacher, parent *domain.ParentSession, child string) *domain.QueueEntry {
	h.t.Helper()
	e, err := h.scheduler.Join(h.ctx, teacher.ID, parent.ID, child)
	if err != nil {
		h.t.Fatalf("%s joins %s: %v", parent.DisplayName, teacher.Name, err)
	}
	return e
}

func (h *harness) endMeeting(teacher *domain.Teacher) *domain.Meeting {
	h.t.Helper()
	m, err := h.scheduler.EndCurrentMeeting(h.ctx, teacher.ID)
	if err != nil {
		h.t.Fatalf("end meeting for %s: %v", teacher.Name, err)
	}
	return m
}

// entry returns the committed state of an entry.
func (h *harness) entry(id string) domain.QueueEntry {
	h.t.Helper()
	entries, _ := h.store.Snapshot()
	for _, e := range entries {
		if e.ID == id {
			return e
		}
	}
	h.t.Fatalf("entry %s not found", id)
	return domain.QueueEntry{}
}

func (h *harness) openMeetings() []domain.Meeting {
	_, meetings := h.store.Snapshot()
	var open []domain.Meeting
	for _, m := range meetings {
		if m.IsOpen() {
			open = append(open, m)
		}
	}
	return open
}

func (h *harness) openMeetingFor(teacher *domain.Teacher) *domain.Meeting {
	for _, m := range h.openMeetings() {
		if m.TeacherID == teacher.ID {
			return &m
		}
	}
	return nil
}

func (h *harness) expectStatus(e *domain.QueueEntry, want domain.EntryStatus) domain.QueueEntry {
	h.t.Helper()
	got := h.entry(e.ID)
	if got.Status != want {
		h.t.Fatalf("entry %s (%s): expected %s, got %s", e.ID, e.ChildName, want, got.Status)
	}
	return got
}

// checkInvariants asserts unique active positions, one open meeting per
// teacher and per parent, and that every current entry owns an open meeting.
func (h *harness) checkInvariants() {
	h.t.Helper()
	entries, meetings := h.store.Snapshot()

	positions := map[string]map[int]string{}
	for _, e := range entries {
		if !e.Status.IsActive() {
			continue
		}
		if positions[e.TeacherID] == nil {
			positions[e.TeacherID] = map[int]string{}
		}
		if other, ok := positions[e.TeacherID][e.Position]; ok {
			h.t.Errorf("entries %s and %s share position %d", other, e.ID, e.Position)
		}
		positions[e.TeacherID][e.Position] = e.ID
	}

	byTeacher := map[string]int{}
	byParent := map[string]int{}
	byEntry := map[string]int{}
	for _, m := range meetings {
		if !m.IsOpen() {
			continue
		}
		byTeacher[m.TeacherID]++
		byParent[m.ParentSessionID]++
		byEntry[m.QueueEntryID]++
	}
	for id, n := range byTeacher {
		if n > 1 {
			h.t.Errorf("teacher %s has %d open meetings", id, n)
		}
	}
	for id, n := range byParent {
		if n > 1 {
			h.t.Errorf("parent %s has %d open meetings", id, n)
		}
	}
	for _, e := range entries {
		if e.Status == domain.StatusCurrent && byEntry[e.ID] != 1 {
			h.t.Errorf("current entry %s has %d open meetings", e.ID, byEntry[e.ID])
		}
	}
}

func subscriberOf(p *domain.ParentSession) domain.Subscriber {
	return domain.Subscriber{Role: domain.RoleParent, Subject: p.ID}
}

func teacherSubscriber(t *domain.Teacher) domain.Subscriber {
	return domain.Subscriber{Role: domain.RoleTeacher, Subject: t.ID}
}

var adminSubscriber = domain.Subscriber{Role: domain.RoleAdmin, Subject: "admin"}

func notices(ns []domain.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		notice, _ := n.Payload["notice"].(string)
		out = append(out, notice)
	}
	return out
}
