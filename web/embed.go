// Package web holds the HTML views compiled into the binary.
package web

import (
	"embed"
	"html/template"
	"net/url"
)

//go:embed templates/*.html
var files embed.FS

// Templates parses every view. Page templates are addressed by file name.
func Templates() (*template.Template, error) {
	return template.New("").
		Funcs(template.FuncMap{"uploadURL": UploadURL}).
		ParseFS(files, "templates/*.html")
}

// UploadURL is the link serving a stored upload. The name is escaped as a
// single path segment, so "?", "#" and "%" survive the round trip.
func UploadURL(name string) string {
	return "/uploads/" + url.PathEscape(name)
}
