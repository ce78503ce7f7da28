package endpoints

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/opencdh/datahub-in-go/pkg/locks"
	"github.com/opencdh/datahub-in-go/pkg/server"
)

// LockResponse is the API representation of a held lock.
type LockResponse struct {
	ID         string         `json:"id"`
	Scope      string         `json:"scope"`
	AcquiredAt time.Time      `json:"acquiredAt"`
	RequestID  string         `json:"requestId,omitempty"`
	Annotation map[string]any `json:"annotation,omitempty"`
}

// RegisterLocksEndpoints registers the operator endpoints for lock
// inspection and forced release.
func RegisterLocksEndpoints(s *server.Server) {
	protect := s.JWT.Middleware
	r := s.Router

	r.Handle("/locks", protect(handleListLocks(s))).Methods("GET")
	r.Handle("/locks/{id}", protect(handleReleaseLock(s))).Methods("DELETE")
}

func handleListLocks(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		held, err := s.Locks.List(r.Context())
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "failed to list locks")
			return
		}

		response := make([]LockResponse, 0, len(held))
		for _, lock := range held {
			response = append(response, LockResponse{
				ID:         lock.ID,
				Scope:      string(lock.Scope),
				AcquiredAt: lock.AcquiredAt,
				RequestID:  lock.RequestID,
				Annotation: lock.Annotation,
			})
		}
		respondWithJSON(w, http.StatusOK, response)
	}
}

// handleReleaseLock force-releases a lock left behind by a dead
// workflow. Releasing an absent lock succeeds, matching the service's
// idempotent release semantics.
func handleReleaseLock(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if err := s.Locks.Release(r.Context(), locks.Lock{ID: id}); err != nil {
			respondWithError(w, http.StatusInternalServerError, "failed to release lock")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
