package locks

import (
	"fmt"
	"net/http"
)

// ResourceIsLockedError signals that the lock to be created already
// exists. It carries both the caller's intended lock and, when it could
// still be read, the lock that is blocking it, so operators can diagnose
// the conflict. The service never retries this itself; callers decide.
type ResourceIsLockedError struct {
	Requested Lock
	Existing  *Lock
}

func (e *ResourceIsLockedError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("resource %s is currently locked (held since %s)",
			e.Requested.ID, e.Existing.AcquiredAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return fmt.Sprintf("resource %s was locked during the request, please try again", e.Requested.ID)
}

func (e *ResourceIsLockedError) StatusCode() int { return http.StatusConflict }

// Retryable marks lock contention as safe to retry with backoff.
func (e *ResourceIsLockedError) Retryable() bool { return true }
