package domain

import "time"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleParent  Role = "PARENT"
)

// Actor is the authenticated identity behind a request. For teachers the
// subject is the teacher ID, for parents it is the parent session ID.
type Actor struct {
	Subject string `json:"sub"`
	Role    Role   `json:"role"`
}

type Teacher struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Code      string    `json:"code"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ParentSession is the anonymous per-device identity of a parent. It is the
// unit checked for "already in a meeting" across all teachers.
type ParentSession struct {
	ID          string    `json:"id"`
	DeviceToken string    `json:"-"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
