package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

type AdminHandler struct {
	queue     ports.QueueService
	directory ports.DirectoryService
	validate  *validator.Validate
	logger    *logrus.Logger
}

func NewAdminHandler(queue ports.QueueService, directory ports.DirectoryService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{queue: queue, directory: directory, validate: NewValidator(), logger: logger}
}

type CreateTeacherRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Subject string `json:"subject" validate:"max=100"`
}

type UpdateTeacherRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *AdminHandler) CreateTeacher(w http.ResponseWriter, r *http.Request) {
	var req CreateTeacherRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	teacher, err := h.directory.CreateTeacher(r.Context(), req.Name, req.Subject)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, teacher, h.logger)
}

func (h *AdminHandler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.directory.ListTeachers(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, teachers, h.logger)
}

func (h *AdminHandler) UpdateTeacher(w http.ResponseWriter, r *http.Request) {
	var req UpdateTeacherRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	teacher, err := h.directory.SetTeacherActive(r.Context(), r.PathValue("id"), *req.Active)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, teacher, h.logger)
}

func (h *AdminHandler) TeacherQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queue.QueueView(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, entries, h.logger)
}

func (h *AdminHandler) TeacherStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.TeacherStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, stats, h.logger)
}

func (h *AdminHandler) EndMeeting(w http.ResponseWriter, r *http.Request) {
	m, err := h.queue.EndCurrentMeeting(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, MeetingResponse{Meeting: m}, h.logger)
}

func (h *AdminHandler) SkipNoShow(w http.ResponseWriter, r *http.Request) {
	m, err := h.queue.SkipNoShow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, MeetingResponse{Meeting: m}, h.logger)
}
