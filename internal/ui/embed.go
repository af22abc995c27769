// Package ui serves the daemon's static pages: the dashboard at "/" and
// the focus page that blocked navigations can redirect to.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:pages
var pagesFS embed.FS

// FocusPage is the page a redirect policy can point at, relative to the
// daemon's base URL.
const FocusPage = "/focus.html"

// PagesFS returns the embedded pages with the "pages" prefix stripped.
func PagesFS() (fs.FS, error) {
	return fs.Sub(pagesFS, "pages")
}

// Handler serves the embedded pages. Extension-less paths fall back to the
// dashboard; anything else missing is a 404. Only GET and HEAD are allowed.
func Handler() (http.Handler, error) {
	sub, err := PagesFS()
	if err != nil {
		return nil, err
	}

	fileServer := http.FileServerFS(sub)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		p := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if p == "" {
			fileServer.ServeHTTP(w, r)
			return
		}

		if _, err := fs.Stat(sub, p); err == nil {
			fileServer.ServeHTTP(w, r)
			return
		}

		if strings.Contains(path.Base(p), ".") {
			http.NotFound(w, r)
			return
		}

		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	}), nil
}
