package transport

import (
	"io/fs"
	"net/http"
	"strings"

	"car-showroom/internal/upload"

	"github.com/go-chi/chi/v5"
)

// Pages are the front end documents reachable by name
var Pages = []string{"inventory.html", "add-car.html", "admin.html"}

// RegisterStatic serves the front end from site and uploaded media from
// uploadsDir. Directory listings are not exposed.
func RegisterStatic(r chi.Router, site fs.FS, uploadsDir string) {
	pages := http.FileServerFS(site)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, site, "index.html")
	})
	for _, page := range Pages {
		r.Get("/"+page, func(w http.ResponseWriter, r *http.Request) {
			http.ServeFileFS(w, r, site, page)
		})
	}
	r.Get("/*", noListing(pages).ServeHTTP)

	media := http.StripPrefix(upload.URLPrefix, http.FileServer(http.Dir(uploadsDir)))
	r.Get(upload.URLPrefix+"*", noListing(media).ServeHTTP)
}

func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
