// Package config provides configuration management for the data hub
// control plane.
//
// This package handles loading and validating server configuration from
// environment variables and configuration files.
//
// # Configuration Sources
//
// Configuration is loaded from:
//
//   - Environment variables (primary)
//   - Configuration files (optional)
//
// # Key Configuration Options
//
//   - CDH_ENVIRONMENT: Deployment environment (dev, int, prod)
//   - CDH_PARTITION: AWS partition for built ARNs
//   - DATABASE_URL: Catalog database connection
//   - CDH_REDIS_URL: Redis connection for the lock store
//   - PORT: Server listen port
package config
