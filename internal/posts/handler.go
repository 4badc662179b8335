package posts

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/ayush/flatblog/internal/logging"
	"github.com/ayush/flatblog/internal/models"
	"github.com/ayush/flatblog/internal/upload"
	"github.com/ayush/flatblog/internal/validation"
)

// multipartMemory is how much of a form ParseMultipartForm keeps in memory.
const multipartMemory = 8 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encode response")
	}
}

func writeErrors(w http.ResponseWriter, status int, messages ...string) {
	writeJSON(w, status, map[string][]string{"errors": messages})
}

// Handler holds post HTTP handlers.
type Handler struct {
	svc          *Service
	maxBodyBytes int64
}

// NewHandler builds the handlers. maxImageBytes bounds the request body
// together with some room for the text fields.
func NewHandler(svc *Service, maxImageBytes int64) *Handler {
	return &Handler{svc: svc, maxBodyBytes: maxImageBytes + 1<<20}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var uerr *upload.Error
	switch {
	case validation.Messages(err) != nil:
		writeErrors(w, http.StatusBadRequest, validation.Messages(err)...)
	case errors.As(err, &uerr):
		writeErrors(w, http.StatusBadRequest, uerr.Message)
	case errors.Is(err, ErrPostNotFound):
		writeErrors(w, http.StatusNotFound, "Post not found.")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("post request failed")
		writeErrors(w, http.StatusInternalServerError, "Could not save the article.")
	}
}

// readForm parses the multipart form. The returned image is nil when no file
// was sent.
func (h *Handler) readForm(w http.ResponseWriter, r *http.Request) (models.PostForm, *Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return models.PostForm{}, nil, upload.TransportError(err)
	}

	form := models.PostForm{
		Title:       r.FormValue("title"),
		Content:     r.FormValue("content"),
		PublishedAt: r.FormValue("published_at"),
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil, nil
	}
	if err != nil {
		return form, nil, upload.TransportError(err)
	}
	return form, &Image{File: file, Header: header}, nil
}

// Archive lists posts for the public blog.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.svc.Archive(q.Get("date"), q.Get("month")))
}

// Get returns a single post.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// AdminList lists every post newest first with storage warnings.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.AdminList())
}

// Create publishes a new post from a multipart form.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	form, img, err := h.readForm(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if img != nil {
		defer img.File.Close()
	}

	post, err := h.svc.Create(r.Context(), form, img)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Article published.",
		"post":    post,
	})
}

// Update edits a post from a multipart form; the image is optional.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	form, img, err := h.readForm(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if img != nil {
		defer img.File.Close()
	}

	post, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), form, img)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Article updated.",
		"post":    post,
	})
}

// Delete removes a post and its image.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Article deleted."})
}
