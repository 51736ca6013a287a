package observability

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts /metrics, /health and /ready on the router
func RegisterRoutes(r *mux.Router, healthChecker *HealthChecker) {
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if healthChecker != nil {
		r.HandleFunc("/health", healthChecker.HealthHandler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}).Methods(http.MethodGet)
}
