package file

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/edustack/coursechat/backend/internal/backend"
	"github.com/edustack/coursechat/backend/pkg/utils"
)

// maxUploadMemory caps how much of a multipart upload buffers in memory
// before spilling to disk.
const maxUploadMemory = 64 << 20

// Handler proxies document upload, download, and deletion, plus feedback.
type Handler struct {
	backend *backend.Client
}

// New creates the file handler.
func New(b *backend.Client) *Handler {
	return &Handler{backend: b}
}

// RegisterRoutes mounts the document and feedback routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload-document", h.handleUpload)
	r.Delete("/delete-document/{fileID}", h.handleDelete)
	r.Get("/download-document/{fileID}", h.handleDownload)
	r.Post("/feedback", h.handleFeedback)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	courseID := r.FormValue("course_id")
	if courseID == "" {
		utils.RespondError(w, http.StatusBadRequest, "course_id is required")
		return
	}

	upload, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer upload.Close()

	if err := h.backend.UploadDocument(r.Context(), courseID, header.Filename, upload); err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to upload file")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"status": "uploaded"})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.DeleteDocument(r.Context(), chi.URLParam(r, "fileID")); err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to delete file")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	body, contentType, err := h.backend.DownloadDocument(r.Context(), fileID)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to download file")
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(fileID))
	if _, err := io.Copy(w, body); err != nil {
		log.Printf("[file] download stream interrupted for file=%s: %v", fileID, err)
	}
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.backend.SubmitFeedback(r.Context(), payload); err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to submit feedback")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
