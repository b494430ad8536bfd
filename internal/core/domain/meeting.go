package domain

import "time"

type Meeting struct {
	ID               string     `json:"id"`
	TeacherID        string     `json:"teacher_id"`
	QueueEntryID     string     `json:"queue_entry_id"`
	ParentSessionID  string     `json:"parent_session_id"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	DurationSeconds  *int       `json:"duration_seconds,omitempty"`
	Extended         bool       `json:"extended"`
	ExtensionSeconds int        `json:"extension_seconds"`
}

func (m *Meeting) IsOpen() bool {
	return m.EndedAt == nil
}

// Close stamps the end time and whole-second duration.
func (m *Meeting) Close(now time.Time) error {
	if !m.IsOpen() {
		return ErrMeetingNotOpen
	}
	end := now
	secs := int(end.Sub(m.StartedAt) / time.Second)
	if secs < 0 {
		secs = 0
	}
	m.EndedAt = &end
	m.DurationSeconds = &secs
	return nil
}

// AdmitReason explains why TryAdmit declined to open a meeting.
type AdmitReason string

const (
	ReasonTeacherBusy AdmitReason = "teacher_busy"
	ReasonParentBusy  AdmitReason = "parent_busy"
)

type AdmitResult struct {
	Admitted bool
	Meeting  *Meeting
	Reason   AdmitReason
}
