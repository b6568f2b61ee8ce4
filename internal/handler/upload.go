package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/flynkle/flynkle-api/internal/middleware"
	"github.com/flynkle/flynkle-api/internal/model"
	"github.com/flynkle/flynkle-api/internal/quota"
	"github.com/flynkle/flynkle-api/internal/repository"
	"github.com/flynkle/flynkle-api/internal/response"
	"github.com/flynkle/flynkle-api/internal/storage"
)

// maxUploadBytes caps a single multipart file.
const maxUploadBytes = 25 << 20 // 25 MiB

// UploadHandler stores user files in the object store and records one
// uploads row per object.  Uploads are quota-gated: the free plan allows
// none at all.
type UploadHandler struct {
	Objects *storage.ObjectStore
	Uploads *repository.UploadRepo
	Gate    *quota.Gate
}

func NewUploadHandler(objects *storage.ObjectStore, uploads *repository.UploadRepo, g *quota.Gate) *UploadHandler {
	return &UploadHandler{Objects: objects, Uploads: uploads, Gate: g}
}

type uploadView struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	ContentType *string   `json:"content_type"`
	Size        int64     `json:"size"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Create accepts a multipart form with a "file" field, checks the plan's
// upload ceiling, stores the object and records the upload.  The counter
// is incremented after the object and the row exist.
func (h *UploadHandler) Create(c echo.Context) error {
	u := middleware.CurrentUser(c)

	fh, err := c.FormFile("file")
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, "file field required")
	}
	if fh.Size > maxUploadBytes {
		return response.Fail(c, http.StatusRequestEntityTooLarge, "file too large")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	if err := h.Gate.CheckFileUpload(ctx, u.ID, u.Plan); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			return response.Fail(c, http.StatusForbidden, "upload limit reached, upgrade required")
		}
		log.Printf("upload: quota check: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "upload failed")
	}

	src, err := fh.Open()
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, "could not read file")
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		log.Printf("upload: read file: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "upload failed")
	}
	if int64(len(data)) > maxUploadBytes {
		return response.Fail(c, http.StatusRequestEntityTooLarge, "file too large")
	}

	contentType := fh.Header.Get("Content-Type")
	key, err := h.Objects.Store(ctx, data, fh.Filename, contentType)
	if err != nil {
		log.Printf("upload: store object: %v", err)
		return response.Fail(c, http.StatusBadGateway, "storage unavailable")
	}

	var ct *string
	if contentType != "" {
		ct = &contentType
	}
	id, err := h.Uploads.Create(ctx, u.ID, h.Objects.Bucket(), key, ct, int64(len(data)))
	if err != nil {
		log.Printf("upload: record upload: %v", err)
		// Object is in the store but untracked; drop it so storage and DB
		// stay in step.
		if derr := h.Objects.Delete(ctx, key); derr != nil {
			log.Printf("upload: orphan cleanup: %v", derr)
		}
		return response.Fail(c, http.StatusInternalServerError, "upload failed")
	}

	if err := h.Gate.Ledger().IncrementFileUploads(ctx, u.ID, h.Gate.Today()); err != nil {
		log.Printf("upload: increment usage: %v", err)
	}

	url, err := h.Objects.URLFor(ctx, key)
	if err != nil {
		log.Printf("upload: presign url: %v", err) // non-fatal, key is enough
	}

	return response.Created(c, uploadView{
		ID:          id,
		Key:         key,
		ContentType: ct,
		Size:        int64(len(data)),
		URL:         url,
	})
}

// List returns the caller's uploads, newest first.
func (h *UploadHandler) List(c echo.Context) error {
	u := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uploads, err := h.Uploads.ListByUser(ctx, u.ID)
	if err != nil {
		log.Printf("upload: list: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "list failed")
	}
	views := make([]uploadView, 0, len(uploads))
	for _, up := range uploads {
		views = append(views, toUploadView(up))
	}
	return response.Success(c, views)
}

func toUploadView(up model.Upload) uploadView {
	return uploadView{
		ID:          up.ID,
		Key:         up.Key,
		ContentType: up.ContentType,
		Size:        up.Size,
		CreatedAt:   up.CreatedAt,
	}
}
