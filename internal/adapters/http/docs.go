package http

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

const defaultDocsPath = "api/openapi.yaml"

const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>%s - Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: '/docs/openapi.yaml', dom_id: '#swagger-ui', deepLinking: true});
  </script>
</body>
</html>`

// apiDocs is the OpenAPI document read once at startup.
type apiDocs struct {
	raw   []byte
	title string
}

// loadDocs reads and validates the OpenAPI document at path. A document that
// fails validation is still served; the problem is only logged.
func loadDocs(path string) (*apiDocs, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := openapi3.NewLoader().LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		slog.Warn("openapi document does not validate", "path", path, "error", err)
	}

	title := "RouteGate API"
	if doc.Info != nil && doc.Info.Title != "" {
		title = doc.Info.Title
	}
	return &apiDocs{raw: raw, title: title}, nil
}

// SetupDocs registers Swagger UI at /docs and the raw OpenAPI document at
// /docs/openapi.yaml. When the document cannot be loaded both routes answer 404.
func SetupDocs(app *fiber.App, path string) {
	if path == "" {
		path = defaultDocsPath
	}

	docs, err := loadDocs(path)
	if err != nil {
		slog.Warn("api docs disabled", "error", err)
		missing := func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusNotFound, "not_found", "API documentation is not available", "")
		}
		app.Get("/docs", missing)
		app.Get("/docs/openapi.yaml", missing)
		return
	}

	page := fmt.Sprintf(swaggerUIPage, html.EscapeString(docs.title))

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(page)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(docs.raw)
	})
}
