package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f7f4ec"/><rect x="30" y="50" width="140" height="100" rx="6" fill="none" stroke="#b09a5e" stroke-width="3"/><text x="100" y="95" text-anchor="middle" font-family="Georgia" font-size="13" fill="#7a6a42">CERTIFICATE</text><text x="100" y="118" text-anchor="middle" font-family="Georgia" font-size="10" fill="#a79567">not yet generated</text></svg>`

// StaticFileServer serves generated certificate artifacts. A request for an
// artifact that has not been generated yet gets a placeholder image instead
// of a 404, so the holder portal can always render something printable.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
