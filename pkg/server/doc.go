// Package server provides the HTTP server for the provisioning API.
//
// This package implements the core HTTP server that handles all REST API
// requests. It uses gorilla/mux for routing and provides middleware for
// authentication, request logging and metrics.
//
// # Server Setup
//
//	srv := server.NewServer(cfg, db, provision, lockService, healthStore, jwt)
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Endpoints
//
// API endpoints are registered via the endpoints subpackage:
//
//	endpoints.RegisterAll(srv)
//
// This registers the provisioning API:
//
//   - /datasets/{dataset}/resources - resource creation and listing
//   - /datasets/{dataset}/resources/{stage}/{region} - single resource
//   - /datasets/{dataset}/resources/{stage}/{region}/read-access - read grants
//   - /locks - lock inspection and forced release
//   - /health, /metrics - operational endpoints
package server
