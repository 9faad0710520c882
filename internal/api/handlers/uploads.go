package handlers

import (
	"context"
	"io"

	"evade-competitive/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Uploader stores files and returns their public URL
type Uploader interface {
	UploadFile(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error)
}

// UploadHandler accepts multipart file uploads
type UploadHandler struct {
	storage Uploader
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(storage Uploader) *UploadHandler {
	return &UploadHandler{storage: storage}
}

// Upload handles POST /api/v1/uploads with form fields bucket, path (optional) and file
// @Summary Upload a file
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} map[string]string
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/uploads [post]
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid upload",
			Message: err.Error(),
		})
	}

	file, err := header.Open()
	if err != nil {
		return fail(c, err)
	}
	defer file.Close()

	path := c.FormValue("path", header.Filename)
	// namespace uploads under the uploader's id
	path = currentPlayer(c).ID + "/" + path

	contentType := header.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}

	url, err := h.storage.UploadFile(c.Context(), c.FormValue("bucket"), path, file, contentType)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}
