package course

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/edustack/coursechat/backend/internal/backend"
	"github.com/edustack/coursechat/backend/internal/model/course"
	chatService "github.com/edustack/coursechat/backend/internal/service/chat"
	courseService "github.com/edustack/coursechat/backend/internal/service/course"
	"github.com/edustack/coursechat/backend/pkg/utils"
)

// Handler exposes course management and the aggregate course view.
type Handler struct {
	backend *backend.Client
	courses *courseService.Service
	cache   *chatService.SessionCache
}

// New creates the course handler.
func New(b *backend.Client, courses *courseService.Service, cache *chatService.SessionCache) *Handler {
	return &Handler{backend: b, courses: courses, cache: cache}
}

// RegisterRoutes mounts the course routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/courses", h.handleListCourses)
	r.Post("/courses", h.handleCreateCourse)
	r.Get("/courses/{courseID}/files", h.handleCourseFiles)
	r.Get("/courses/{courseID}/unassigned-users", h.handleUnassignedUsers)
	r.Get("/courses/{courseID}/view", h.handleCourseView)
	r.Get("/users/{userID}/courses", h.handleUserCourses)
	r.Post("/users/assign-course", h.handleAssignCourse)
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.backend.ListCourses(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to fetch courses")
		return
	}
	utils.RespondJSON(w, http.StatusOK, courses)
}

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "course name is required")
		return
	}

	created, err := h.backend.CreateCourse(r.Context(), payload.Name)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to create course")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleCourseFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.backend.CourseFiles(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to fetch course documents")
		return
	}
	utils.RespondJSON(w, http.StatusOK, files)
}

func (h *Handler) handleUnassignedUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.backend.UnassignedUsers(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to fetch unassigned users")
		return
	}
	utils.RespondJSON(w, http.StatusOK, users)
}

// handleCourseView serves everything the chat screen needs on a course
// switch: the session list and the document list, fetched concurrently.
func (h *Handler) handleCourseView(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	userID := r.URL.Query().Get("user")
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	var files []course.Document
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		files, err = h.backend.CourseFiles(ctx, courseID)
		return err
	})
	g.Go(func() error {
		return h.cache.ReplaceAll(ctx, userID, courseID)
	})
	if err := g.Wait(); err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to load course view")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"chats":     h.cache.Sessions(),
		"documents": files,
	})
}

func (h *Handler) handleUserCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.Refresh(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to fetch user courses")
		return
	}
	utils.RespondJSON(w, http.StatusOK, courses)
}

func (h *Handler) handleAssignCourse(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID   string `json:"user_id"`
		CourseID string `json:"course_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID == "" || payload.CourseID == "" {
		utils.RespondError(w, http.StatusBadRequest, "user_id and course_id are required")
		return
	}

	if err := h.backend.AssignCourse(r.Context(), payload.UserID, payload.CourseID); err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to assign course")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}
