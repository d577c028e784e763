package web

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// PageData configures the chat page.
type PageData struct {
	Title       string
	Subtitle    string
	Streaming   bool
	Placeholder string
}

// RenderIndex writes the chat page.
func RenderIndex(w io.Writer, data PageData) error {
	if data.Placeholder == "" {
		data.Placeholder = "Ask a question (e.g., refund policy)."
	}
	return indexTemplate.Execute(w, data)
}
