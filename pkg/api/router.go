// Package api wires the HTTP surface of the chat server.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"tutorchat/pkg/api/handlers"
	"tutorchat/pkg/chat"
)

// NewRouter builds the route table. Authentication and telemetry wrap the
// returned handler in main.
func NewRouter(engine *chat.Engine, ready func() bool) *mux.Router {
	r := mux.NewRouter()

	// Liveness probe used by deployment systems and CI
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.New(engine).Register(v1)
	return r
}
