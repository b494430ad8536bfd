package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/middleware"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/realtime"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

// WSHandler subscribes an authenticated caller to its live notifications.
// Browsers cannot set headers on a websocket handshake, so the token may
// also come in the "token" query parameter.
type WSHandler struct {
	auth     *middleware.AuthMiddleware
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

func NewWSHandler(auth *middleware.AuthMiddleware, hub *realtime.Hub, allowedOrigins []string, logger *logrus.Logger) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		auth: auth,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, wildcard := allowed["*"]
				_, ok := allowed[origin]
				return wildcard || ok
			},
		},
		logger: logger,
	}
}

func (h *WSHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.BearerToken(r)
	}
	actor, err := h.auth.ParseToken(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request
		h.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	h.hub.Serve(conn, domain.Subscriber{Role: actor.Role, Subject: actor.Subject})
}
