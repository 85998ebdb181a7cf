package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/auth"
	"docvault/internal/service"
)

type borrowRequest struct {
	DocumentID string `json:"document_id"`
}

// Borrow handles POST /borrows with body {"document_id": "..."}.
func Borrow(svc service.BorrowService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := auth.FromContext(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing requester")
		}
		var req borrowRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if _, err := uuid.Parse(req.DocumentID); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid document_id")
		}
		b, err := svc.Borrow(c.UserContext(), who.ID, req.DocumentID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(b)
	}
}

// Return handles POST /borrows/return/:documentId.
func Return(svc service.BorrowService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := auth.FromContext(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing requester")
		}
		docID, ok := documentID(c, "documentId")
		if !ok {
			return nil
		}
		b, err := svc.Return(c.UserContext(), docID, who.ID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(b)
	}
}

// MyBorrows handles GET /borrows/me?limit=&offset=.
func MyBorrows(svc service.BorrowService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := auth.FromContext(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing requester")
		}
		limit, offset, ok := pagination(c)
		if !ok {
			return nil
		}
		res, err := svc.ListMine(c.UserContext(), who.ID, limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}
