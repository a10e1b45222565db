// Package statusapi exposes a node's replicated-protocol state over plain
// HTTP, entirely separate from the chat overlay's TCP transport. This is
// purely observational; it carries no consensus weight.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bully-chat/chatnode/internal/node"
)

// StatusSource is the subset of *node.Node the server depends on, kept as an
// interface so tests can supply a fake.
type StatusSource interface {
	Status(ctx context.Context) node.Status
}

// NewMux builds the status HTTP handler: GET /status and GET /healthz.
func NewMux(src StatusSource) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(src.Status(r.Context())); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}
