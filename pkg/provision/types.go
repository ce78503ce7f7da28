package provision

import (
	"sort"

	"github.com/opencdh/datahub-in-go/pkg/model"
)

// Tag marking every resource the control plane provisions.
const (
	managedByTagKey   = "managedBy"
	managedByTagValue = "cdh-core-api"
)

// ResourceSpec carries the identifying parameters of one provisioning
// run.
type ResourceSpec struct {
	Dataset           *model.Dataset
	Stage             string
	Region            string
	ResourceAccountID string
	OwnerAccountID    string
	Partition         string
}

// uniqueSorted returns the set union of the given IDs in sorted order.
// Policy documents built from it come out deterministic, so repeated
// regeneration with the same inputs produces identical JSON.
func uniqueSorted(ids ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range ids {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
