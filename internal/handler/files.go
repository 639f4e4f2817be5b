package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/csdept/csweb/internal/upload"
)

const uploadModule = "upload"

// serveUpload streams a stored syllabus file.
func (h *Handler) serveUpload(c *gin.Context) {
	name := c.Param("name")
	rc, err := h.Uploads.Open(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, uploadModule, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", upload.ContentType(name))
	c.Header("Cache-Control", "public, max-age=86400")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		slog.WarnContext(c.Request.Context(), "failed to stream upload", "name", name, "error", err)
	}
}
