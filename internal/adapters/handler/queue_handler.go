package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/middleware"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

// QueueHandler serves the parent and teacher facing queue routes.
type QueueHandler struct {
	queue     ports.QueueService
	directory ports.DirectoryService
	validate  *validator.Validate
	logger    *logrus.Logger
}

func NewQueueHandler(queue ports.QueueService, directory ports.DirectoryService, logger *logrus.Logger) *QueueHandler {
	return &QueueHandler{queue: queue, directory: directory, validate: NewValidator(), logger: logger}
}

type TeacherCard struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Code    string `json:"code"`
	Waiting int    `json:"waiting"`
}

type JoinRequest struct {
	ChildName string `json:"child_name" validate:"required,max=100"`
}

type ExtendRequest struct {
	Seconds int `json:"seconds" validate:"required,min=1,max=3600"`
}

type MeetingResponse struct {
	Meeting *domain.Meeting `json:"meeting"`
}

func (h *QueueHandler) activeTeacher(r *http.Request) (*domain.Teacher, error) {
	teacher, err := h.directory.TeacherByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		return nil, err
	}
	if !teacher.Active {
		return nil, domain.ErrTeacherNotFound
	}
	return teacher, nil
}

// TeacherCard is the public lookup parents use after scanning a code.
func (h *QueueHandler) TeacherCard(w http.ResponseWriter, r *http.Request) {
	teacher, err := h.activeTeacher(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	entries, err := h.queue.QueueView(r.Context(), teacher.ID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	card := TeacherCard{ID: teacher.ID, Name: teacher.Name, Subject: teacher.Subject, Code: teacher.Code}
	for _, e := range entries {
		if e.Status != domain.StatusCurrent {
			card.Waiting++
		}
	}
	writeJSON(w, http.StatusOK, card, h.logger)
}

func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())

	var req JoinRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	teacher, err := h.directory.TeacherByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	entry, err := h.queue.Join(r.Context(), teacher.ID, actor.Subject, req.ChildName)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, entry, h.logger)
}

func (h *QueueHandler) MyEntries(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())

	entries, err := h.queue.ParentEntries(r.Context(), actor.Subject)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, entries, h.logger)
}

func (h *QueueHandler) Leave(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())

	entry, err := h.queue.LeaveQueue(r.Context(), r.PathValue("id"), actor.Subject)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, entry, h.logger)
}

func (h *QueueHandler) TeacherQueue(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())

	entries, err := h.queue.QueueView(r.Context(), actor.Subject)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, entries, h.logger)
}

func (h *QueueHandler) EndMeeting(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())

	m, err := h.queue.EndCurrentMeeting(r.Context(), actor.Subject)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, MeetingResponse{Meeting: m}, h.logger)
}

func (h *QueueHandler) SkipNoShow(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())

	m, err := h.queue.SkipNoShow(r.Context(), actor.Subject)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, MeetingResponse{Meeting: m}, h.logger)
}

func (h *QueueHandler) ExtendMeeting(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())

	var req ExtendRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	m, err := h.queue.ExtendCurrentMeeting(r.Context(), actor.Subject, req.Seconds)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, MeetingResponse{Meeting: m}, h.logger)
}
