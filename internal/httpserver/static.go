package httpserver

import (
	"net/http"
	"os"
	"path/filepath"
)

// spaHandler serves the built frontend. Paths that match a real file
// are served as-is; anything else falls back to index.html so client
// side routes survive a reload.
func spaHandler(root string) http.Handler {
	index := filepath.Join(root, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(root, filepath.Clean("/"+r.URL.Path))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			http.ServeFile(w, r, index)
			return
		}
		http.ServeFile(w, r, path)
	})
}
