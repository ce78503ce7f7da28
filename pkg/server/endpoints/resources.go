package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sethvargo/go-retry"

	"github.com/opencdh/datahub-in-go/pkg/audit"
	"github.com/opencdh/datahub-in-go/pkg/httperr"
	"github.com/opencdh/datahub-in-go/pkg/locks"
	"github.com/opencdh/datahub-in-go/pkg/model"
	"github.com/opencdh/datahub-in-go/pkg/server"
	"github.com/opencdh/datahub-in-go/pkg/server/middleware"
)

// ResourceResponse is the API representation of a provisioned resource.
type ResourceResponse struct {
	DatasetID         string    `json:"datasetId"`
	Stage             string    `json:"stage"`
	Region            string    `json:"region"`
	Hub               string    `json:"hub"`
	ResourceAccountID string    `json:"resourceAccountId"`
	OwnerAccountID    string    `json:"ownerAccountId"`
	ARN               string    `json:"arn"`
	KMSKeyARN         string    `json:"kmsKeyArn"`
	SNSTopicARN       string    `json:"snsTopicArn"`
	CreatorUserID     string    `json:"creatorUserId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toResourceResponse(r *model.Resource) ResourceResponse {
	return ResourceResponse{
		DatasetID:         r.DatasetID,
		Stage:             r.Stage,
		Region:            r.Region,
		Hub:               r.Hub,
		ResourceAccountID: r.ResourceAccountID,
		OwnerAccountID:    r.OwnerAccountID,
		ARN:               r.ARN,
		KMSKeyARN:         r.KMSKeyARN,
		SNSTopicARN:       r.SNSTopicARN,
		CreatorUserID:     r.CreatorUserID,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// CreateResourceRequest is the body of a resource creation request.
type CreateResourceRequest struct {
	Stage  string `json:"stage"`
	Region string `json:"region"`
}

// UpdateReadAccessRequest is the body of a read access update. A null
// accountIds only recomputes the policies from the stored grants.
type UpdateReadAccessRequest struct {
	AccountIDs []string `json:"accountIds"`
}

// RegisterResourcesEndpoints registers the resource provisioning endpoints
func RegisterResourcesEndpoints(s *server.Server) {
	protect := s.JWT.Middleware
	r := s.Router

	r.Handle("/datasets/{dataset}/resources", protect(handleCreateResource(s))).Methods("POST")
	r.Handle("/datasets/{dataset}/resources", protect(handleListResources(s))).Methods("GET")
	r.Handle("/datasets/{dataset}/resources/{stage}/{region}", protect(handleGetResource(s))).Methods("GET")
	r.Handle("/datasets/{dataset}/resources/{stage}/{region}", protect(handleDeleteResource(s))).Methods("DELETE")
	r.Handle("/datasets/{dataset}/resources/{stage}/{region}/read-access", protect(handleUpdateReadAccess(s))).Methods("PUT")
}

// redrive runs op, re-driving it on retryable errors such as lock
// conflicts, with the configured constant backoff.
func redrive(ctx context.Context, s *server.Server, op func(ctx context.Context) error) error {
	wait := s.Config.RetryWait()
	if wait <= 0 {
		wait = time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(s.Config.RetryAttempts), retry.NewConstant(wait))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := op(ctx); err != nil {
			if httperr.IsRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	var locked *locks.ResourceIsLockedError
	if errors.As(err, &locked) {
		server.CountLockConflict()
	}
	return err
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func auditLockConflict(r *http.Request, user, operation string, err error) {
	var locked *locks.ResourceIsLockedError
	if errors.As(err, &locked) {
		audit.Log(audit.LockConflictEvent{
			UserID:    user,
			ClientIP:  clientIP(r),
			LockID:    locked.Requested.ID,
			Operation: operation,
		})
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func handleCreateResource(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID := mux.Vars(r)["dataset"]
		user := middleware.UserFromContext(r.Context())

		var body CreateResourceRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondWithError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if !model.ValidStage(body.Stage) {
			respondWithError(w, http.StatusBadRequest, "unknown stage "+body.Stage)
			return
		}
		if body.Region == "" {
			respondWithError(w, http.StatusBadRequest, "region is required")
			return
		}

		prov := s.Provision(uuid.NewString())
		var resource *model.Resource
		err := redrive(r.Context(), s, func(ctx context.Context) error {
			created, err := prov.CreateResource(ctx, datasetID, body.Stage, body.Region, user)
			if err != nil {
				return err
			}
			resource = created
			return nil
		})

		event := audit.ResourceProvisionedEvent{
			UserID:       user,
			ClientIP:     clientIP(r),
			DatasetID:    datasetID,
			Stage:        body.Stage,
			Region:       body.Region,
			Success:      err == nil,
			ErrorMessage: errorMessage(err),
		}
		if err != nil {
			auditLockConflict(r, user, "resource-create", err)
			audit.Log(event)
			respondWithError(w, httperr.StatusOf(err), err.Error())
			return
		}
		event.ResourceARN = resource.ARN
		audit.Log(event)
		respondWithJSON(w, http.StatusCreated, toResourceResponse(resource))
	}
}

func handleListResources(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID := mux.Vars(r)["dataset"]

		prov := s.Provision(uuid.NewString())
		resources, err := prov.ListResources(r.Context(), datasetID)
		if err != nil {
			respondWithError(w, httperr.StatusOf(err), err.Error())
			return
		}

		response := make([]ResourceResponse, 0, len(resources))
		for i := range resources {
			response = append(response, toResourceResponse(&resources[i]))
		}
		respondWithJSON(w, http.StatusOK, response)
	}
}

func handleGetResource(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		prov := s.Provision(uuid.NewString())
		resource, err := prov.GetResource(r.Context(), vars["dataset"], vars["stage"], vars["region"])
		if err != nil {
			respondWithError(w, httperr.StatusOf(err), err.Error())
			return
		}
		respondWithJSON(w, http.StatusOK, toResourceResponse(resource))
	}
}

func handleDeleteResource(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		user := middleware.UserFromContext(r.Context())

		prov := s.Provision(uuid.NewString())
		err := redrive(r.Context(), s, func(ctx context.Context) error {
			return prov.DeleteResource(ctx, vars["dataset"], vars["stage"], vars["region"])
		})

		audit.Log(audit.ResourceDeletedEvent{
			UserID:       user,
			ClientIP:     clientIP(r),
			DatasetID:    vars["dataset"],
			Stage:        vars["stage"],
			Region:       vars["region"],
			Success:      err == nil,
			ErrorMessage: errorMessage(err),
		})
		if err != nil {
			auditLockConflict(r, user, "resource-delete", err)
			respondWithError(w, httperr.StatusOf(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUpdateReadAccess(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		user := middleware.UserFromContext(r.Context())

		var body UpdateReadAccessRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondWithError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		prov := s.Provision(uuid.NewString())
		err := redrive(r.Context(), s, func(ctx context.Context) error {
			return prov.UpdateReadAccess(ctx, vars["dataset"], vars["stage"], vars["region"], body.AccountIDs)
		})

		audit.Log(audit.ReadAccessUpdatedEvent{
			UserID:       user,
			ClientIP:     clientIP(r),
			DatasetID:    vars["dataset"],
			Stage:        vars["stage"],
			Region:       vars["region"],
			AccountIDs:   body.AccountIDs,
			Success:      err == nil,
			ErrorMessage: errorMessage(err),
		})
		if err != nil {
			auditLockConflict(r, user, "update-read-access", err)
			respondWithError(w, httperr.StatusOf(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
