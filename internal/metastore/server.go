package metastore

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	storeerrors "github.com/zzenonn/blocksync/internal/errors"
)

// Wire shapes shared by server and client.
type fileResponse struct {
	Version  int64    `json:"version"`
	HashList []string `json:"hashlist"`
}

type modifyRequest struct {
	Version  int64    `json:"version"`
	HashList []string `json:"hashlist"`
}

type errorResponse struct {
	Kind    string   `json:"kind"`
	Current int64    `json:"current,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// NewServer returns the metadata HTTP surface:
//
//	GET    /files/{name}            - read version + hashlist, never fails
//	PUT    /files/{name}            - modify (JSON body: version, hashlist)
//	DELETE /files/{name}?version=N  - tombstone at version N
//	GET    /healthz                 - liveness
//
// Protocol failures come back as JSON with a kind tag and payload; the
// client turns them back into typed errors.
func NewServer(registry *Registry) http.Handler {
	r := chi.NewRouter()

	r.Get("/files/{name}", func(w http.ResponseWriter, req *http.Request) {
		version, hashlist := registry.Read(pathName(req))
		if hashlist == nil {
			hashlist = []string{}
		}
		writeJSON(w, http.StatusOK, fileResponse{Version: version, HashList: hashlist})
	})

	r.Put("/files/{name}", func(w http.ResponseWriter, req *http.Request) {
		var body modifyRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "malformed modify request", http.StatusBadRequest)
			return
		}
		if err := registry.Modify(req.Context(), pathName(req), body.Version, body.HashList); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Delete("/files/{name}", func(w http.ResponseWriter, req *http.Request) {
		version, err := strconv.ParseInt(req.URL.Query().Get("version"), 10, 64)
		if err != nil {
			http.Error(w, "malformed version", http.StatusBadRequest)
			return
		}
		if err := registry.Delete(pathName(req), version); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

func pathName(req *http.Request) string {
	name := chi.URLParam(req, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

func writeError(w http.ResponseWriter, err error) {
	var wrongVersion *storeerrors.WrongVersionError
	var missingBlocks *storeerrors.MissingBlocksError
	switch {
	case errors.As(err, &missingBlocks):
		writeJSON(w, http.StatusPreconditionFailed, errorResponse{
			Kind:    storeerrors.KindMissingBlocks,
			Missing: missingBlocks.Missing,
		})
	case errors.As(err, &wrongVersion):
		writeJSON(w, http.StatusConflict, errorResponse{
			Kind:    storeerrors.KindWrongVersion,
			Current: wrongVersion.Current,
		})
	case errors.Is(err, storeerrors.ErrFileNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Kind: storeerrors.KindFileNotFound})
	case errors.Is(err, storeerrors.ErrInvalidHash):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Errorf("metadata operation failed: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
