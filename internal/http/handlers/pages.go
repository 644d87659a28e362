package handlers

import (
	"net/http"
	"os"
	"path/filepath"
)

// Pages serves the single-page frontend. Every marketplace route returns the
// same index so client-side routing keeps working on refresh.
type Pages struct {
	dir   string
	index string
}

// NewPages returns a Pages server rooted at dir, or nil when the directory
// does not contain an index.html (API-only deployments).
func NewPages(dir string) *Pages {
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		return nil
	}
	return &Pages{dir: dir, index: index}
}

func (p *Pages) Index(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, p.index)
}

func (p *Pages) Static() http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.Dir(p.dir)))
}

func Favicon(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
