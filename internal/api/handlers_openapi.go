package api

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"net/http"
)

//go:embed openapi/openapi.yaml
var openAPIDocument []byte

// openAPIETag is derived from the embedded document so clients revalidate
// only across releases.
var openAPIETag = func() string {
	sum := sha256.Sum256(openAPIDocument)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

const docsCacheControl = "public, max-age=3600"

// ServeOpenAPISpec serves the OpenAPI document as YAML.
func (h *Handlers) ServeOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	serveDocument(w, r, "application/yaml", openAPIDocument)
}

const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>proxygate API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      deepLinking: true,
      persistAuthorization: true,
      displayRequestDuration: true
    });
  </script>
</body>
</html>`

const redocPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>proxygate API reference</title>
</head>
<body>
  <redoc spec-url="/openapi.yaml"></redoc>
  <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>`

// ServeSwaggerUI serves the interactive API console.
func (h *Handlers) ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	serveDocument(w, r, "text/html; charset=utf-8", []byte(swaggerUIPage))
}

// ServeRedoc serves the read-only API reference.
func (h *Handlers) ServeRedoc(w http.ResponseWriter, r *http.Request) {
	serveDocument(w, r, "text/html; charset=utf-8", []byte(redocPage))
}

// serveDocument writes a static documentation body. All documentation
// responses share the document's ETag, so a matching If-None-Match yields
// 304 without a body.
func serveDocument(w http.ResponseWriter, r *http.Request, contentType string, body []byte) {
	h := w.Header()
	h.Set("Cache-Control", docsCacheControl)
	h.Set("ETag", openAPIETag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == openAPIETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
