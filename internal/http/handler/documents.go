package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/service"
)

// pagination reads limit & offset query parameters. ok is false when a response was written.
func pagination(c *fiber.Ctx) (limit, offset int, ok bool) {
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(service.DefaultLimit)))
	if err != nil {
		_ = writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		return 0, 0, false
	}
	offset, err = strconv.Atoi(c.Query("offset", "0"))
	if err != nil {
		_ = writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		return 0, 0, false
	}
	return limit, offset, true
}

// documentID validates the :id route parameter. ok is false when a response was written.
func documentID(c *fiber.Ctx, param string) (string, bool) {
	id := c.Params(param)
	if _, err := uuid.Parse(id); err != nil {
		_ = writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		return "", false
	}
	return id, true
}

// ListDocuments handles GET /documents?limit=&offset=.
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, ok := pagination(c)
		if !ok {
			return nil
		}
		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadDocument handles multipart POST /documents. Conversion happens in the
// background, so the response is 202 with a processing document.
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		copies := 0
		if v := strings.TrimSpace(c.FormValue("total_copies")); v != "" {
			copies, err = strconv.Atoi(v)
			if err != nil || copies < 1 {
				return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "total_copies must be a positive integer")
			}
		}
		title := strings.TrimSpace(c.FormValue("title"))
		if title == "" {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "title is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		doc, err := svc.Upload(c.UserContext(), f, service.UploadInput{
			Title:           title,
			FileName:        fh.Filename,
			ContentType:     ct,
			Size:            fh.Size,
			Format:          c.FormValue("format"),
			TotalCopies:     copies,
			CopyrightStatus: c.FormValue("copyright_status"),
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(doc)
	}
}

// GetDocument handles GET /documents/:id.
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c, "id")
		if !ok {
			return nil
		}
		doc, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument handles DELETE /documents/:id.
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c, "id")
		if !ok {
			return nil
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
