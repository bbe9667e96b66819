package blockstore

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/blocksync/internal/domain"
)

// NewServer returns the HTTP surface for one shard:
//
//	PUT  /blocks/{hash}  - store block bytes (octet-stream body)
//	GET  /blocks/{hash}  - fetch block bytes, 404 when absent
//	HEAD /blocks/{hash}  - presence probe, 404 when absent
//	GET  /healthz        - liveness
//	GET  /stats          - occupancy snapshot
func NewServer(store *Store) http.Handler {
	r := chi.NewRouter()

	r.Put("/blocks/{hash}", func(w http.ResponseWriter, req *http.Request) {
		hash := chi.URLParam(req, "hash")
		if !domain.ValidHash(hash) {
			http.Error(w, "malformed block hash", http.StatusBadRequest)
			return
		}
		block, err := io.ReadAll(http.MaxBytesReader(w, req.Body, domain.ChunkSize))
		if err != nil {
			http.Error(w, "block exceeds chunk size", http.StatusRequestEntityTooLarge)
			return
		}
		if domain.HashBlock(block) != hash {
			log.Warnf("rejecting block whose bytes do not hash to %s", hash)
			http.Error(w, "block content does not match hash", http.StatusBadRequest)
			return
		}
		store.Put(hash, block)
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/blocks/{hash}", func(w http.ResponseWriter, req *http.Request) {
		hash := chi.URLParam(req, "hash")
		if !domain.ValidHash(hash) {
			http.Error(w, "malformed block hash", http.StatusBadRequest)
			return
		}
		block, err := store.Get(hash)
		if err != nil {
			http.Error(w, "block not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(block)
	})

	r.Head("/blocks/{hash}", func(w http.ResponseWriter, req *http.Request) {
		hash := chi.URLParam(req, "hash")
		if !domain.ValidHash(hash) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !store.Has(hash) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(store.Stats())
	})

	return r
}
