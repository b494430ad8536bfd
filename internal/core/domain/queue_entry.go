package domain

import "time"

type EntryStatus string

const (
	StatusWaiting   EntryStatus = "waiting"
	StatusNext      EntryStatus = "next"
	StatusCurrent   EntryStatus = "current"
	StatusSkipped   EntryStatus = "skipped"
	StatusCompleted EntryStatus = "completed"
)

// IsActive reports whether the status holds a position in the teacher's line.
func (s EntryStatus) IsActive() bool {
	return s == StatusWaiting || s == StatusNext || s == StatusCurrent
}

func (s EntryStatus) IsTerminal() bool {
	return s == StatusCompleted
}

type QueueEntry struct {
	ID              string      `json:"id"`
	TeacherID       string      `json:"teacher_id"`
	ParentSessionID string      `json:"parent_session_id"`
	ChildName       string      `json:"child_name"`
	Status          EntryStatus `json:"status"`
	Position        int         `json:"position"`
	Removed         bool        `json:"removed"`
	JoinedAt        time.Time   `json:"joined_at"`
	NotifiedAt      *time.Time  `json:"notified_at,omitempty"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}

// QueueEntryWithParent is the read projection used by queue views.
type QueueEntryWithParent struct {
	QueueEntry
	ParentName  string `json:"parent_name"`
	TeacherName string `json:"teacher_name"`
	TeacherCode string `json:"teacher_code"`
}

// ParentEntryView is one of a parent's entries with how many active entries
// are ahead of it in the teacher's line.
type ParentEntryView struct {
	QueueEntryWithParent
	Ahead int `json:"ahead"`
}

// TeacherStats holds the simple per-teacher counts exposed to admins.
type TeacherStats struct {
	TeacherID      string `json:"teacher_id"`
	Waiting        int    `json:"waiting"`
	Skipped        int    `json:"skipped"`
	Completed      int    `json:"completed"`
	Removed        int    `json:"removed"`
	MeetingsHeld   int    `json:"meetings_held"`
	AverageSeconds int    `json:"average_seconds"`
}
