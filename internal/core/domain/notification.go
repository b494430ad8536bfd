package domain

import "time"

type NotificationTag string

const (
	TagStatusUpdate      NotificationTag = "status_update"
	TagQueueUpdate       NotificationTag = "queue_update"
	TagMeetingStarted    NotificationTag = "meeting_started"
	TagMeetingEnded      NotificationTag = "meeting_ended"
	TagQueueRemoved      NotificationTag = "queue_removed"
	TagDelayNotification NotificationTag = "delay_notification"
)

type TargetKind string

const (
	TargetParent  TargetKind = "parent"
	TargetTeacher TargetKind = "teacher"
	TargetAdmins  TargetKind = "admins"
)

// Subscriber is a live notification receiver, as seen by target selection.
type Subscriber struct {
	Role    Role
	Subject string
}

// Target selects which subscribers receive a notification.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

func ParentTarget(parentSessionID string) Target {
	return Target{Kind: TargetParent, ID: parentSessionID}
}

func TeacherTarget(teacherID string) Target {
	return Target{Kind: TargetTeacher, ID: teacherID}
}

func AdminTarget() Target {
	return Target{Kind: TargetAdmins}
}

// Matches reports whether the subscriber is selected by the target.
func (t Target) Matches(s Subscriber) bool {
	switch t.Kind {
	case TargetParent:
		return s.Role == RoleParent && s.Subject == t.ID
	case TargetTeacher:
		return s.Role == RoleTeacher && s.Subject == t.ID
	case TargetAdmins:
		return s.Role == RoleAdmin
	}
	return false
}

type Notification struct {
	ID         string          `json:"id"`
	Tag        NotificationTag `json:"tag"`
	Target     Target          `json:"target"`
	Payload    map[string]any  `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}
