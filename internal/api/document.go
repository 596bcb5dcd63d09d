package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"dynquery/internal/export"
)

// DocumentServer serves exports written by the local store under
// `/document/<path>`. Callers only see their own exports.
type DocumentServer struct {
	root string
}

// NewDocumentServer serves files below `<dir>/media`.
func NewDocumentServer(dir string) *DocumentServer {
	return &DocumentServer{root: filepath.Join(dir, "media")}
}

// ServeHTTP implements http.Handler.
func (d *DocumentServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(r.URL.Path, "/document")), "/")
	user := userFrom(r)
	if user.Email == "" || !strings.HasPrefix(rel, ownerPrefix(user.Email)) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}

	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
			return
		}
		writeError(w, err)
		return
	}
	defer f.Close() //nolint:errcheck
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(rel)+`"`)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// ownerPrefix is the path prefix shared by every export of one user.
func ownerPrefix(email string) string {
	return strings.TrimSuffix(export.RelativePath(email, ""), ".csv")
}
