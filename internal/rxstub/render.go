package rxstub

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer manages HTML template rendering with caching and custom functions.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
	mu        sync.RWMutex
}

// NewRenderer parses base.html together with each page template in fsys.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap:   createFuncMap(),
	}
	if err := r.parseTemplates(fsys); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return r, nil
}

// Render executes the named page template with data and writes it with status code.
func (r *Renderer) Render(w http.ResponseWriter, code int, templateName string, data any) error {
	r.mu.RLock()
	tmpl, ok := r.templates[templateName]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template %q not found", templateName)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", templateName, err)
	}
	return nil
}

func (r *Renderer) parseTemplates(fsys fs.FS) error {
	baseContent, err := fs.ReadFile(fsys, "base.html")
	if err != nil {
		return fmt.Errorf("failed to read base template: %w", err)
	}

	pages, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return err
	}
	for _, name := range pages {
		if name == "base.html" {
			continue
		}
		pageContent, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", name, err)
		}

		tmpl, err := template.New("base").Funcs(r.funcMap).Parse(string(baseContent))
		if err != nil {
			return fmt.Errorf("failed to parse base template for %s: %w", name, err)
		}
		if tmpl, err = tmpl.Parse(string(pageContent)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		r.mu.Lock()
		r.templates[strings.TrimSuffix(path.Base(name), ".html")] = tmpl
		r.mu.Unlock()
	}

	if len(r.templates) == 0 {
		return fmt.Errorf("no page templates found")
	}
	return nil
}

func createFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatTime": formatTime,
		"truncate":   truncate,
		"join":       strings.Join,
	}
}

// formatTime formats a time.Time as "02 Jan 2006 15:04".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006 15:04")
}

// truncate truncates a string to n runes, adding "..." if truncated.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("rxstub: %v", err))
	}
	return sub
}
