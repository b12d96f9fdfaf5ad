package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chorus/internal/middleware"
	"github.com/nfrund/chorus/internal/storage"
)

// FileHandler serves bucket objects over HTTP.
type FileHandler struct {
	bucket storage.Bucket
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(b storage.Bucket) *FileHandler {
	return &FileHandler{bucket: b}
}

// Download streams the object named by the :name path parameter.
func (h *FileHandler) Download(c echo.Context) error {
	ctx := c.Request().Context()
	logger := middleware.FromContext(ctx)

	name := c.Param("name")
	content, err := h.bucket.Open(ctx, name)
	switch {
	case errors.Is(err, storage.ErrInvalidName), errors.Is(err, os.ErrNotExist):
		return echo.NewHTTPError(http.StatusNotFound, "File not found")
	case err != nil:
		logger.Error("Failed to open stored file", slog.String("name", name), slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not retrieve file")
	}
	defer content.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	return c.Stream(http.StatusOK, contentType, content)
}
