package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edustack/coursechat/backend/internal/backend"
	chatHandler "github.com/edustack/coursechat/backend/internal/handler/chat"
	courseHandler "github.com/edustack/coursechat/backend/internal/handler/course"
	fileHandler "github.com/edustack/coursechat/backend/internal/handler/file"
	userHandler "github.com/edustack/coursechat/backend/internal/handler/user"
	middlewarePkg "github.com/edustack/coursechat/backend/internal/middleware"
	chatService "github.com/edustack/coursechat/backend/internal/service/chat"
	courseService "github.com/edustack/coursechat/backend/internal/service/course"
	titleService "github.com/edustack/coursechat/backend/internal/service/title"
	"github.com/edustack/coursechat/backend/pkg/utils"
)

// Deps collects everything the HTTP surface is wired to.
type Deps struct {
	Chat    *chatService.Service
	Cache   *chatService.SessionCache
	Titles  *titleService.Reconciler
	Courses *courseService.Service
	Backend *backend.Client
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	chats := chatHandler.New(deps.Chat, deps.Cache, deps.Titles, deps.Backend)
	courses := courseHandler.New(deps.Backend, deps.Courses, deps.Cache)
	users := userHandler.New(deps.Backend)
	files := fileHandler.New(deps.Backend)

	r.Route("/api", func(api chi.Router) {
		chats.RegisterRoutes(api)
		courses.RegisterRoutes(api)
		users.RegisterRoutes(api)
		files.RegisterRoutes(api)
	})

	return r
}
