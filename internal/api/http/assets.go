package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-learn/internal/learning"
	"github.com/mind-engage/mindengage-learn/internal/rbac"
	"github.com/mind-engage/mindengage-learn/internal/storage"
)

const maxAssetBytes = 256 << 20

// MountAssets serves activity media under the router it is given
// (mounted at /assets).
func MountAssets(r chi.Router, store learning.Store, bs storage.BlobStore) {
	// POST /assets/activities/{activityID}  multipart file=
	r.With(rbac.Require(rbac.PermActivityManage)).Post("/activities/{activityID}", func(w http.ResponseWriter, r *http.Request) {
		activityID := chi.URLParam(r, "activityID")
		if _, err := store.GetActivity(r.Context(), activityID); err != nil {
			storeError(w, err)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxAssetBytes)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		name := path.Base(strings.ReplaceAll(hdr.Filename, "\\", "/"))
		if name == "." || name == "/" || name == "" {
			name = "upload.bin"
		}
		key, err := bs.Put(r.Context(), "activities/"+activityID+"/"+name, f)
		if err != nil {
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"key": key, "url": bs.URL(key)})
	})

	// GET /assets/*   -> the blob at whatever follows /assets/
	r.With(rbac.Require(rbac.PermActivityView)).Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Open(r.Context(), key)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	})
}
