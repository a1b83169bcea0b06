package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// UploadHandler stores message and avatar images on local disk.
type UploadHandler struct {
	dir string
}

// NewUploadHandler constructs an UploadHandler rooted at dir.
func NewUploadHandler(dir string) *UploadHandler {
	return &UploadHandler{dir: dir}
}

// Upload handles POST /api/upload. The stored name is random; the original
// filename only contributes its extension.
func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image file"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	name := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(h.dir, name)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"image_url": "/uploads/" + name})
}
