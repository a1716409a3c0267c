// Package upload implements the authenticated image upload endpoint. Files go
// to the configured object storage backend and the resulting public URL is
// appended to the uploading user's attachment list.
package upload

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/inevitable-science/article-registry/internal/db/repositories"
	"github.com/inevitable-science/article-registry/internal/middleware"
	"github.com/inevitable-science/article-registry/internal/storage"
)

// uploadTypes are the accepted values of the :uploadType path segment. They
// partition the storage namespace so a profile picture can never collide with
// an article asset.
var uploadTypes = map[string]bool{
	"profile":      true,
	"article":      true,
	"organisation": true,
}

// Handlers handles file upload endpoints
type Handlers struct {
	storage  storage.Storage
	users    *repositories.UserRepository
	maxBytes int64
}

// NewHandlers creates a new Handlers instance
func NewHandlers(storageBackend storage.Storage, users *repositories.UserRepository, maxBytes int64) *Handlers {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &Handlers{storage: storageBackend, users: users, maxBytes: maxBytes}
}

// UploadImage accepts a multipart "file" field, stores it under a key derived
// from the upload type, and records the public URL on the caller's account.
// Only image content types are accepted.
// POST /upload/:uploadType
func (h *Handlers) UploadImage(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	uploadType := c.Param("uploadType")
	if !uploadTypes[uploadType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload type"})
		return
	}

	// MaxBytesReader makes oversized bodies fail during multipart parsing
	// instead of buffering them fully.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided or file too large"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only image files are allowed"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := "uploads/" + uploadType + "/" + uuid.New().String() + ext

	url, err := h.storage.Put(c.Request.Context(), key, contentType, file, header.Size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	// The URL, not the key, is what gets persisted: attachment links must stay
	// valid even if the storage backend is later reconfigured.
	if err := h.users.AppendAttachment(c.Request.Context(), user.UserID, url); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record attachment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     url,
	})
}
