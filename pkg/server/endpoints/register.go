package endpoints

import (
	"github.com/opencdh/datahub-in-go/pkg/server"
)

// RegisterAll registers all API endpoints on the server
func RegisterAll(srv *server.Server) {
	RegisterResourcesEndpoints(srv)
	RegisterLocksEndpoints(srv)
	RegisterStatusEndpoints(srv)
}
