// ABOUTME: Serves the human-readable tool guide at GET / and the health check.
// ABOUTME: The guide is embedded markdown rendered to HTML with goldmark.

package server

import (
	"bytes"
	_ "embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed docs/index.md
var indexMarkdown []byte

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
code { background: #f3f3f3; padding: 0 .2rem; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: .2rem .5rem; }
</style>
</head>
<body>
{{.Content}}
<footer><small>{{.Title}} {{.Version}}</small></footer>
</body>
</html>
`))

// renderIndex converts the embedded guide once at startup.
func renderIndex(version string, logger *slog.Logger) []byte {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var htmlBuf bytes.Buffer
	if err := md.Convert(indexMarkdown, &htmlBuf); err != nil {
		logger.Error("failed to convert markdown", "error", err)
		htmlBuf.Reset()
		htmlBuf.WriteString("<p>Failed to render the tool guide.</p>")
	}

	var page bytes.Buffer
	err := indexTemplate.Execute(&page, struct {
		Title   string
		Version string
		Content template.HTML
	}{
		Title:   "weather-travel",
		Version: version,
		Content: template.HTML(htmlBuf.String()),
	})
	if err != nil {
		logger.Error("failed to render index", "error", err)
		return []byte("weather-travel")
	}
	return page.Bytes()
}

func indexHandler(page []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}
}

// handleHealth returns 200 OK if the server is alive.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
