// Package audit provides audit logging for provisioning operations.
//
// This package implements structured audit logging for security-relevant
// operations such as resource provisioning, deletion and read access
// changes.
//
// # Event Types
//
// The package defines event types for various operations:
//
//   - Resource provisioning events (success/failure)
//   - Resource deletion events
//   - Read access update events
//   - Lock conflict events
//
// # Usage
//
//	audit.Log(audit.ResourceProvisionedEvent{...})
//
// Audit events are logged in a structured format suitable for security
// monitoring and compliance requirements.
package audit
