package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/service"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Documents service.DocumentService
	Borrows   service.BorrowService
	Pages     service.PageService
}

// Guards protect routes. Authenticate must establish the requester; Admin runs after
// it. A nil guard lets every request through.
type Guards struct {
	Authenticate fiber.Handler
	Admin        fiber.Handler
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc Services, guards Guards) {
	user := orNext(guards.Authenticate)
	admin := orNext(guards.Admin)

	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		return c.Type("html").SendString(docsPage)
	})

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	docs := app.Group("/documents")
	docs.Get("/", ListDocuments(svc.Documents))
	docs.Post("/", user, admin, UploadDocument(svc.Documents))
	docs.Get("/:id", GetDocument(svc.Documents))
	docs.Delete("/:id", user, admin, DeleteDocument(svc.Documents))
	docs.Get("/:id/preview", Preview(svc.Pages))
	docs.Get("/:id/pages/:page", user, ReadPage(svc.Pages))
	docs.Get("/:id/views", user, admin, ListViews(svc.Pages))

	borrows := app.Group("/borrows", user)
	borrows.Post("/", Borrow(svc.Borrows))
	borrows.Post("/return/:documentId", Return(svc.Borrows))
	borrows.Get("/me", MyBorrows(svc.Borrows))
}

func orNext(h fiber.Handler) fiber.Handler {
	if h != nil {
		return h
	}
	return func(c *fiber.Ctx) error { return c.Next() }
}

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>docvault API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
