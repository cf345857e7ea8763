package user

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edustack/coursechat/backend/internal/backend"
	"github.com/edustack/coursechat/backend/pkg/utils"
)

// Handler exposes user registration.
type Handler struct {
	backend *backend.Client
}

// New creates the user handler.
func New(b *backend.Client) *Handler {
	return &Handler{backend: b}
}

// RegisterRoutes mounts the user routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users/register", h.handleRegister)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name    string `json:"name"`
		GroupID string `json:"group_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}

	registered, err := h.backend.RegisterUser(r.Context(), payload.Name, payload.GroupID)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to register user")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, registered)
}
