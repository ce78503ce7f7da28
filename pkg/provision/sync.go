package provision

import (
	"context"

	"github.com/opencdh/datahub-in-go/pkg/model"
)

// DerivedAccessSync propagates provisioning results to downstream
// consumers, for example an interactive data exploration service that
// mirrors bucket access. Failures here never fail the workflow that
// triggered them.
type DerivedAccessSync interface {
	UpdateResourceAccess(ctx context.Context, dataset *model.Dataset, resource *model.Resource) error
}

// NoopAccessSync is the DerivedAccessSync used when no downstream
// consumer is configured.
type NoopAccessSync struct{}

func (NoopAccessSync) UpdateResourceAccess(context.Context, *model.Dataset, *model.Resource) error {
	return nil
}
