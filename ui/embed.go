// Package ui embeds the camera viewer page.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var staticFS embed.FS

// Handler returns an http.Handler that serves the embedded viewer.
func Handler() (http.Handler, error) {
	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}

	fileServer := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean(r.URL.Path)

		if f, openErr := fsys.Open(strings.TrimPrefix(p, "/")); openErr == nil {
			defer func() { _ = f.Close() }()
			if stat, statErr := f.Stat(); statErr == nil && !stat.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		// Unknown extensionless paths render the viewer.
		if !strings.Contains(path.Base(p), ".") {
			r.URL.Path = "/"
		}
		fileServer.ServeHTTP(w, r)
	}), nil
}
