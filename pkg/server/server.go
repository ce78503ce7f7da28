package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/opencdh/datahub-in-go/pkg/catalog"
	"github.com/opencdh/datahub-in-go/pkg/config"
	"github.com/opencdh/datahub-in-go/pkg/locks"
	"github.com/opencdh/datahub-in-go/pkg/model"
	"github.com/opencdh/datahub-in-go/pkg/server/middleware"
)

// Provisioner is the slice of the orchestrator the endpoints use.
type Provisioner interface {
	GetResource(ctx context.Context, datasetID, stage, region string) (*model.Resource, error)
	ListResources(ctx context.Context, datasetID string) ([]model.Resource, error)
	CreateResource(ctx context.Context, datasetID, stage, region, user string) (*model.Resource, error)
	DeleteResource(ctx context.Context, datasetID, stage, region string) error
	UpdateReadAccess(ctx context.Context, datasetID, stage, region string, accountIDs []string) error
}

// ProvisionerFactory derives a request-scoped provisioner. Locks taken
// during the request carry the request ID.
type ProvisionerFactory func(requestID string) Provisioner

type Server struct {
	Router      *mux.Router
	Config      *config.Config
	DB          *gorm.DB
	Provision   ProvisionerFactory
	Locks       *locks.Service
	HealthStore catalog.HealthStore
	JWT         *middleware.JWTAuthenticator
	srv         *http.Server
}

func NewServer(
	cfg *config.Config,
	db *gorm.DB,
	provision ProvisionerFactory,
	lockService *locks.Service,
	healthStore catalog.HealthStore,
	jwt *middleware.JWTAuthenticator,
) *Server {

	router := mux.NewRouter().UseEncodedPath()
	srv := &http.Server{
		Handler: handlers.LoggingHandler(os.Stdout, instrumentHandler(router)),
		Addr:    cfg.BindAddress + ":" + cfg.Port,
		// Provisioning calls out to the provider, so writes get more
		// headroom than reads.
		WriteTimeout: 120 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	return &Server{
		Router:      router,
		Config:      cfg,
		DB:          db,
		Provision:   provision,
		Locks:       lockService,
		HealthStore: healthStore,
		JWT:         jwt,
		srv:         srv,
	}
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests before stopping.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
