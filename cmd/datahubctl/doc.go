// Package main provides datahubctl, the CLI for the data hub control plane.
//
// The control plane provisions storage resources for registered datasets
// and keeps the derived access policies on buckets, update channels and
// shared encryption keys consistent with the catalog.
//
// # Architecture
//
// The server is organized into several packages:
//
//   - pkg/server: HTTP server and routing
//   - pkg/server/endpoints: REST API endpoint handlers
//   - pkg/provision: bucket, channel and shared key provisioning workflows
//   - pkg/locks: advisory locks serializing conflicting writers
//   - pkg/catalog: catalog store interfaces and their GORM implementation
//   - pkg/awsclients: per account/region provider client factory
//   - pkg/model: database models
//   - pkg/db: database connection utilities
//   - pkg/audit: audit logging
//   - pkg/config: configuration management
//
// # Quick Start
//
// The server is run via the datahubctl CLI:
//
//	# Run database migrations
//	datahubctl db migrate
//
//	# Start the server
//	datahubctl server
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string for the catalog
//   - CDH_JWT_SECRET: HMAC secret for API token verification
//   - CDH_CONFIG_PATH: directory holding cdh.yml (default: /etc/cdh/config)
//   - CDH_LOCK_BACKEND: lock store backend (database or redis)
//   - CDH_REDIS_URL: Redis connection string when the redis backend is used
//   - CDH_AUDIT_ENABLED: enable audit logging
//   - PORT: server port (default: 8080)
package main
