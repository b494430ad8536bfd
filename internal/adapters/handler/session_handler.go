package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

type SessionHandler struct {
	directory ports.DirectoryService
	tokens    ports.TokenIssuer
	validate  *validator.Validate
	logger    *logrus.Logger
}

func NewSessionHandler(directory ports.DirectoryService, tokens ports.TokenIssuer, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{directory: directory, tokens: tokens, validate: NewValidator(), logger: logger}
}

type StartSessionRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
	DeviceToken string `json:"device_token,omitempty" validate:"omitempty,max=200"`
}

type StartSessionResponse struct {
	Session     *domain.ParentSession `json:"session"`
	DeviceToken string                `json:"device_token"`
	Token       string                `json:"token"`
}

// StartSession creates or resumes the parent's anonymous session and returns
// a bearer token for it.
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	session, err := h.directory.StartParentSession(r.Context(), req.DeviceToken, req.DisplayName)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	token, err := h.tokens.IssueToken(domain.Actor{Subject: session.ID, Role: domain.RoleParent})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, StartSessionResponse{
		Session:     session,
		DeviceToken: session.DeviceToken,
		Token:       token,
	}, h.logger)
}
