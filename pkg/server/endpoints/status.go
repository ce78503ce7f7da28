package endpoints

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opencdh/datahub-in-go/pkg/server"
)

// StatusResponse is the response from the root status endpoint.
type StatusResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// HealthResponse is the response from /health.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RegisterStatusEndpoints registers the status, health and metrics
// endpoints. None of them require authentication.
func RegisterStatusEndpoints(s *server.Server) {
	s.Router.HandleFunc("/", handleStatus(s)).Methods("GET")
	s.Router.HandleFunc("/health", handleHealth(s)).Methods("GET")
	s.Router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func handleStatus(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := os.Getenv("CDH_VERSION")
		if version == "" {
			version = "0.1.0"
		}

		respondWithJSON(w, http.StatusOK, StatusResponse{
			Name:        "cdh-core-api",
			Version:     version,
			Environment: s.Config.Environment,
		})
	}
}

func handleHealth(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.HealthStore.CheckConnectivity(r.Context()); err != nil {
			respondWithJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "error",
				Error:  "database connectivity check failed",
			})
			return
		}
		respondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}
