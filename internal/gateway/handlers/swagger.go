package handlers

import (
	_ "embed"
	"fmt"
	"html"

	"github.com/gofiber/fiber/v3"
)

//go:embed openapi.yaml
var openAPISpec []byte

const (
	docsPath = "/docs"
	specPath = docsPath + "/openapi.yaml"
)

// ============================================================
// Swagger Handlers
// ============================================================

// Register mounts the API description under /docs.
func Register(r fiber.Router) {
	page := docsPage("Indoor Map API", specPath)
	r.Get(docsPath, func(c fiber.Ctx) error {
		c.Type("html")
		return c.SendString(page)
	})
	r.Get(specPath, SwaggerSpec)
}

// SwaggerSpec отдаёт встроенный OpenAPI YAML.
func SwaggerSpec(c fiber.Ctx) error {
	c.Type("yaml")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.Send(openAPISpec)
}

// docsPage собирает страницу Swagger UI для спецификации по specURL.
func docsPage(title, specURL string) string {
	return fmt.Sprintf(`<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>%s</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
  SwaggerUIBundle({url: %q, dom_id: '#ui', deepLinking: true, tryItOutEnabled: true});
</script>
</body>
</html>`, html.EscapeString(title), specURL)
}
