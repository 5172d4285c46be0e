package http

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// placeholderPage is served when no static directory is configured.
const placeholderPage = "<!doctype html><title>vitrina</title><p>vitrina front server</p>\n"

// StaticHandler serves the built front end from dir. Paths without a file
// fall back to index.html so client-side routes load the bundle. An empty
// dir serves a placeholder page for every path.
func StaticHandler(dir string) http.Handler {
	if dir == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(placeholderPage))
		})
	}
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		info, err := os.Stat(name)
		switch {
		case err == nil && (!info.IsDir() || dirHasIndex(name)):
			files.ServeHTTP(w, r)
			return
		case errors.Is(err, fs.ErrPermission):
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		http.ServeFile(w, r, index)
	})
}

func dirHasIndex(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "index.html"))
	return err == nil
}
