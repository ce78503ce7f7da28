// Package locks serializes conflicting writers through advisory,
// exclusive locks held in an external store. Locks are scoped by entity
// kind and optionally by region and stage, and are never persisted
// beyond the operation that holds them.
package locks

import (
	"fmt"
	"time"
)

// Scope is the kind of entity a lock protects.
type Scope string

const (
	ScopeAccount  Scope = "account"
	ScopeDataset  Scope = "dataset"
	ScopeResource Scope = "resource"
	ScopeKey      Scope = "key"
)

// ParseScope converts a string into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeAccount, ScopeDataset, ScopeResource, ScopeKey:
		return Scope(s), nil
	}
	return "", fmt.Errorf("unknown lock scope %q", s)
}

// Lock is an advisory lock on a single (scope, item, region, stage)
// tuple.
type Lock struct {
	ID         string
	Scope      Scope
	AcquiredAt time.Time
	// Annotation carries free-form diagnostic data, e.g. a snapshot of
	// the entity being deleted, to aid manual recovery if the holder
	// dies mid-workflow.
	Annotation map[string]any
	RequestID  string
}

// BuildID returns the deterministic lock ID for a tuple. Missing region
// or stage components are replaced with fixed placeholders so that the
// ID remains unambiguous.
func BuildID(itemID string, scope Scope, stage, region string) string {
	if stage == "" {
		stage = "no_stage"
	}
	if region == "" {
		region = "no_region"
	}
	return fmt.Sprintf("%s_%s_%s_%s", itemID, scope, stage, region)
}
