package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/audit"
	"docvault/internal/auth"
	"docvault/internal/delivery"
	"docvault/internal/service"
)

// ReadPage handles GET /documents/:id/pages/:page for an authenticated reader. The body
// is an obfuscated image that browsers cannot display or cache.
func ReadPage(svc service.PageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c, "id")
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(c.Params("page"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "page must be a number")
		}
		who, ok := auth.FromContext(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing requester")
		}

		body, err := svc.ReadPage(c.UserContext(), id, n, service.Reader{
			ID:      who.ID,
			Name:    who.Name,
			Address: who.Address,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		delivery.ProtectHeaders(c)
		return c.Send(body)
	}
}

// Preview handles GET /documents/:id/preview: the first page, date-stamped, no login.
func Preview(svc service.PageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c, "id")
		if !ok {
			return nil
		}
		body, err := svc.Preview(c.UserContext(), id, c.IP())
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
		c.Set(fiber.HeaderPragma, "no-cache")
		c.Set(fiber.HeaderExpires, "0")
		c.Set(fiber.HeaderContentDisposition, "inline")
		c.Type("png")
		return c.Send(body)
	}
}

// ListViews handles GET /documents/:id/views?limit=.
func ListViews(svc service.PageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c, "id")
		if !ok {
			return nil
		}
		limit, err := strconv.Atoi(c.Query("limit", "50"))
		if err != nil || limit < 1 || limit > audit.MaxRecent {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		views, err := svc.RecentViews(c.UserContext(), id, limit)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": views})
	}
}
