// Package model defines the database models for the data hub catalog.
//
// This package contains GORM models that map to the control plane's
// PostgreSQL schema.
//
// # Core Models
//
//   - Account: client, resource and security accounts known to the platform
//   - Dataset: a registered dataset owned by a client account
//   - DatasetReadGrant: per stage/region read access granted on a dataset
//   - Resource: a provisioned storage resource (bucket, key, channel refs)
//   - LockEntry: advisory locks serializing conflicting writers
package model
