package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// webFS holds the page layout, shared partials, page templates and static
// assets. The theme's
// content globs are matched against paths relative to web/.
//
//go:embed web
var webFS embed.FS

// Assets returns the embedded web/ tree: index.html, partials/,
// templates/ and static/.
func Assets() fs.FS {
	web, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err) // "web" is a valid, embedded path
	}
	return web
}

// pageNames are the templates under web/templates, each defining "content".
var pageNames = []string{"dashboard", "info", "health", "flake", "flakeraw", "about", "notfound"}

// pageData is passed to every page template.
type pageData struct {
	Title string
	Nav   string
	Data  any
	Err   string
}

var navLinks = []struct{ Href, Label string }{
	{"/", "Dashboard"},
	{"/flake", "Flake"},
	{"/health", "Nix Health"},
	{"/info", "Nix Info"},
	{"/about", "About"},
}

func parsePages(web fs.FS) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"navLinks": func() any { return navLinks },
		"join":     strings.Join,
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("index.html").Funcs(funcs).ParseFS(web,
			"index.html",
			"partials/*.html",
			path.Join("templates", name+".html"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// renderPage writes a full HTML page. Templates execute into a buffer so a
// failure never leaves a half-written response.
func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data pageData) {
	t, ok := s.pages[name]
	if !ok {
		http.Error(w, "unknown page "+name, http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.log.Error().Err(err).Str("page", name).Msg("template execution failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
