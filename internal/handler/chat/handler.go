package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edustack/coursechat/backend/internal/backend"
	chatService "github.com/edustack/coursechat/backend/internal/service/chat"
	titleService "github.com/edustack/coursechat/backend/internal/service/title"
	"github.com/edustack/coursechat/backend/pkg/utils"
)

// Handler exposes the chat workflow over HTTP.
type Handler struct {
	chatSvc *chatService.Service
	cache   *chatService.SessionCache
	titles  *titleService.Reconciler
	backend *backend.Client
}

// New creates the chat handler.
func New(chatSvc *chatService.Service, cache *chatService.SessionCache, titles *titleService.Reconciler, b *backend.Client) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		cache:   cache,
		titles:  titles,
		backend: b,
	}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/start", h.handleStart)
	r.Post("/chat/question", h.handleQuestion)
	r.Post("/chat/leave", h.handleLeave)
	r.Get("/chat/{sessionID}/history", h.handleHistory)
	r.Get("/chats/{userID}/{courseID}", h.handleList)
	r.Get("/task/{taskID}", h.handleTaskStatus)
	r.Get("/sse/chat/{sessionID}", h.handleTitleStream)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID          string `json:"user_id"`
		CourseID        string `json:"course_id"`
		InitialQuestion string `json:"initial_question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, messages, err := h.chatSvc.StartSession(r.Context(), payload.UserID, payload.CourseID, payload.InitialQuestion)
	switch {
	case err == nil:
	case errors.Is(err, chatService.ErrCourseRequired), errors.Is(err, chatService.ErrQuestionRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, chatService.ErrStartInFlight), errors.Is(err, chatService.ErrStaleResponse):
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	default:
		utils.RespondError(w, http.StatusBadGateway, "failed to start new chat")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"session":  session,
		"messages": messages,
	})
}

func (h *Handler) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"chat_session_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.chatSvc.SubmitQuestion(r.Context(), payload.SessionID, payload.Text)
	switch {
	case err == nil:
	case errors.Is(err, chatService.ErrQuestionRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	default:
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	// A failed submission still resolves 200: the error-tagged reply is
	// part of the transcript, not a transport failure.
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"role":     reply.Role,
		"response": reply.Content,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.chatSvc.SelectSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to load chat history")
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	h.chatSvc.Deselect()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	courseID := chi.URLParam(r, "courseID")

	if err := h.cache.ReplaceAll(r.Context(), userID, courseID); err != nil {
		// Non-critical path: serve whatever the cache still holds.
		log.Printf("[chat] list refresh failed for user=%s course=%s: %v", userID, courseID, err)
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"chats": h.cache.Sessions()})
}

func (h *Handler) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	status, err := h.backend.TaskStatus(r.Context(), taskID)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to check task status")
		return
	}
	utils.RespondJSON(w, http.StatusOK, status)
}

// handleTitleStream re-streams reconciler title updates for one session to
// the browser as SSE. The stream ends when the title finalizes or the
// client goes away.
func (h *Handler) handleTitleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	updates, cancel := h.titles.Watch(sessionID)
	defer cancel()

	// Snapshot first so a client that connects late still sees the
	// current title.
	if session, ok := h.cache.Get(sessionID); ok {
		utils.SendSSEChunk(w, flusher, titleService.Update{
			SessionID: sessionID,
			Title:     session.DisplayTitle(),
			Finalized: session.TitleFinalized,
		})
		if session.TitleFinalized {
			return
		}
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			utils.SendSSEChunk(w, flusher, update)
			if update.Finalized {
				return
			}
		}
	}
}
