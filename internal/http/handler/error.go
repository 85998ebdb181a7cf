package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/http/middleware"
	"docvault/internal/logger"
	"docvault/internal/pagestore"
	"docvault/internal/render"
	"docvault/internal/repository"
	"docvault/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// errorMapping translates a domain error into a response. An empty message means the
// error text itself is safe to show.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{render.ErrUnsupportedFormat, fiber.StatusBadRequest, "UNSUPPORTED_FORMAT", "only PDF and DOCX documents are supported"},
	{render.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION_ERROR", ""},
	{service.ErrIDRequired, fiber.StatusBadRequest, "VALIDATION_ERROR", "id is required"},
	{repository.ErrCapacityExceeded, fiber.StatusConflict, "NO_COPIES_AVAILABLE", "no copies of this document are available right now"},
	{repository.ErrAlreadyBorrowed, fiber.StatusConflict, "ALREADY_BORROWED", "you already have this document on loan"},
	{service.ErrAccessDenied, fiber.StatusForbidden, "BORROW_REQUIRED", "borrow this document to read its pages"},
	{service.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "resource not found"},
	{repository.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "resource not found"},
	{service.ErrBusy, fiber.StatusServiceUnavailable, "INGEST_BUSY", "too many documents are being processed, retry later"},
	{pagestore.ErrCorrupt, fiber.StatusInternalServerError, "DOCUMENT_UNAVAILABLE", "document is temporarily unavailable"},
}

// writeServiceError maps err onto the error envelope. Unknown errors are logged with
// detail and reported as INTERNAL_ERROR.
func writeServiceError(c *fiber.Ctx, err error) error {
	var conv *render.ConversionError
	if errors.As(err, &conv) {
		return writeError(c, fiber.StatusUnprocessableEntity, "CONVERSION_FAILED", conv.Error())
	}
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = err.Error()
		}
		if m.status >= fiber.StatusInternalServerError {
			logRequestError(c, err)
		}
		return writeError(c, m.status, m.code, msg)
	}
	logRequestError(c, err)
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

func logRequestError(c *fiber.Ctx, err error) {
	logger.Error("request_failed", logger.Fields{
		"request_id": requestIDFromCtx(c),
		"method":     c.Method(),
		"path":       c.Path(),
		"error":      err,
	})
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "authentication required")
		case fiber.StatusForbidden:
			return writeError(c, status, "FORBIDDEN", "insufficient permissions")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "FILE_TOO_LARGE", "upload exceeds the size limit")
		case fiber.StatusTooManyRequests:
			return writeError(c, status, "RATE_LIMITED", "too many requests")
		default:
			if e == nil {
				logRequestError(c, err)
			}
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
