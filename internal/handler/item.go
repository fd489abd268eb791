package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/fileshare/internal/auth"
	"github.com/sakif/fileshare/internal/service"
)

// maxUploadBytes caps a single upload at 100 MiB. The limit is enforced
// with http.MaxBytesReader so an oversized body is cut off mid-stream
// rather than buffered.
const maxUploadBytes = 100 << 20

// ItemHandler manages file uploads, downloads, and item metadata.
type ItemHandler struct {
	items  *service.ItemService
	logger *slog.Logger
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(items *service.ItemService, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{items: items, logger: logger}
}

type updateItemRequest struct {
	Shared bool `json:"shared"`
}

// HandleList returns the authenticated user's own items, newest first.
//
// HTTP: GET /api/items?limit=N&offset=N
// Auth: Required
func (h *ItemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	items, err := h.items.ListMine(r.Context(), actor, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// HandleUpload stores an uploaded file as a new item.
//
// HTTP: POST /api/items
// Auth: Required
//
// REQUEST FORMAT: multipart/form-data with
//   - "file":   the upload itself (required)
//   - "shared": "false" to keep the item private (optional; an upload is
//     shared by default)
//
// STREAMING:
// The file part is handed to the service as an io.Reader, so the upload
// streams from the network straight to the owner's directory without
// being buffered in memory.
func (h *ItemHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		h.logger.Warn("upload: not multipart", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "expected a multipart/form-data request"})
		return
	}

	shared := true
	var filename string
	var file io.Reader

	// Walk the parts in order. The "shared" field must precede "file" for
	// it to take effect, which is how browsers submit forms field-by-field.
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.logger.Warn("upload: reading multipart", slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "malformed multipart body"})
			return
		}

		switch part.FormName() {
		case "shared":
			val, err := io.ReadAll(io.LimitReader(part, 16))
			if err == nil {
				if b, perr := strconv.ParseBool(string(val)); perr == nil {
					shared = b
				}
			}
		case "file":
			filename = part.FileName()
			file = part
		}

		if file != nil {
			break
		}
	}

	if file == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "a file is required", Field: "file"})
		return
	}

	// Size is unknown while streaming; pass -1 and let the service reject
	// the upload after the fact if nothing was written.
	item, err := h.items.Store(r.Context(), actor, filename, -1, file, shared)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("item uploaded",
		slog.String("itemID", item.ID),
		slog.String("userID", actor.ID),
		slog.String("filename", item.Filename),
		slog.Bool("shared", item.Shared),
	)

	writeJSON(w, http.StatusCreated, item)
}

// HandleGet returns a single item's metadata.
//
// HTTP: GET /api/items/{id}
// Auth: Optional — shared items are public, private items are owner-only
func (h *ItemHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	item, err := h.items.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// HandleDownload streams the item's file back to the client.
//
// HTTP: GET /api/items/{id}/download
// Auth: Optional — same visibility rules as HandleGet
//
// Content-Disposition: attachment prompts the browser to save rather
// than render, and carries the original filename.
func (h *ItemHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	item, file, err := h.items.Open(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": item.Filename}))
	if info, err := file.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}

	if _, err := io.Copy(w, file); err != nil {
		// Headers are already sent; all we can do is log the broken transfer.
		h.logger.Warn("download interrupted",
			slog.String("itemID", item.ID),
			slog.String("error", err.Error()),
		)
	}
}

// HandleUpdate flips an item between shared and private.
//
// HTTP: PUT /api/items/{id}
// Auth: Required, owner only
func (h *ItemHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("item update: invalid JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	item, err := h.items.Update(r.Context(), actor, chi.URLParam(r, "id"), req.Shared)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// HandleDelete removes an item and its backing file.
//
// HTTP: DELETE /api/items/{id}
// Auth: Required, owner only
func (h *ItemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	if err := h.items.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
