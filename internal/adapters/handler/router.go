package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/middleware"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

type Router struct {
	Auth     *middleware.AuthMiddleware
	Health   *HealthHandler
	Sessions *SessionHandler
	Queue    *QueueHandler
	Admin    *AdminHandler
	WS       *WSHandler
	Gatherer prometheus.Gatherer
}

func (rt Router) Handler() *http.ServeMux {
	mux := http.NewServeMux()

	parent := []domain.Role{domain.RoleParent}
	teacher := []domain.Role{domain.RoleTeacher}
	admin := []domain.Role{domain.RoleAdmin}

	// Health endpoints (OpenShift compatible)
	mux.HandleFunc("GET /health", rt.Health.Health)
	mux.HandleFunc("GET /health/ready", rt.Health.Ready)
	mux.HandleFunc("GET /health/live", rt.Health.Live)
	if rt.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(rt.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("POST /sessions", rt.Sessions.StartSession)
	mux.HandleFunc("GET /teachers/{code}", rt.Queue.TeacherCard)
	mux.HandleFunc("POST /teachers/{code}/queue", rt.Auth.RequireRole(parent, rt.Queue.Join))
	mux.HandleFunc("GET /me/entries", rt.Auth.RequireRole(parent, rt.Queue.MyEntries))
	mux.HandleFunc("DELETE /me/entries/{id}", rt.Auth.RequireRole(parent, rt.Queue.Leave))

	mux.HandleFunc("GET /teacher/queue", rt.Auth.RequireRole(teacher, rt.Queue.TeacherQueue))
	mux.HandleFunc("POST /teacher/meeting/end", rt.Auth.RequireRole(teacher, rt.Queue.EndMeeting))
	mux.HandleFunc("POST /teacher/meeting/skip", rt.Auth.RequireRole(teacher, rt.Queue.SkipNoShow))
	mux.HandleFunc("POST /teacher/meeting/extend", rt.Auth.RequireRole(teacher, rt.Queue.ExtendMeeting))

	mux.HandleFunc("POST /admin/teachers", rt.Auth.RequireRole(admin, rt.Admin.CreateTeacher))
	mux.HandleFunc("GET /admin/teachers", rt.Auth.RequireRole(admin, rt.Admin.ListTeachers))
	mux.HandleFunc("PATCH /admin/teachers/{id}", rt.Auth.RequireRole(admin, rt.Admin.UpdateTeacher))
	mux.HandleFunc("GET /admin/teachers/{id}/queue", rt.Auth.RequireRole(admin, rt.Admin.TeacherQueue))
	mux.HandleFunc("GET /admin/teachers/{id}/stats", rt.Auth.RequireRole(admin, rt.Admin.TeacherStats))
	mux.HandleFunc("POST /admin/teachers/{id}/meeting/end", rt.Auth.RequireRole(admin, rt.Admin.EndMeeting))
	mux.HandleFunc("POST /admin/teachers/{id}/meeting/skip", rt.Auth.RequireRole(admin, rt.Admin.SkipNoShow))

	if rt.WS != nil {
		mux.HandleFunc("GET /ws", rt.WS.Subscribe)
	}
	return mux
}
