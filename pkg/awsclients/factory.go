package awsclients

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/opencdh/datahub-in-go/pkg/retry"
)

// Factory builds service clients scoped to a provider account and
// region. Credentials come from assuming the provisioning role in the
// target account; assumed configs are cached per account and region.
type Factory struct {
	base      aws.Config
	stsClient *sts.Client
	partition string
	roleName  string
	attempts  int
	wait      time.Duration

	mu    sync.Mutex
	cache map[string]aws.Config
}

// NewFactory loads the ambient credentials and prepares the factory.
// The role name is the provisioning role present in every provider
// account; attempts and wait parameterize the per-call retry executors.
func NewFactory(ctx context.Context, partition, roleName string, attempts int, wait time.Duration) (*Factory, error) {
	base, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return &Factory{
		base:      base,
		stsClient: sts.NewFromConfig(base),
		partition: partition,
		roleName:  roleName,
		attempts:  attempts,
		wait:      wait,
		cache:     make(map[string]aws.Config),
	}, nil
}

func (f *Factory) configFor(accountID, region string) aws.Config {
	f.mu.Lock()
	defer f.mu.Unlock()

	cacheKey := accountID + "/" + region
	if cfg, ok := f.cache[cacheKey]; ok {
		return cfg
	}

	roleARN := fmt.Sprintf("arn:%s:iam::%s:role/%s", f.partition, accountID, f.roleName)
	provider := stscreds.NewAssumeRoleProvider(f.stsClient, roleARN)

	cfg := f.base.Copy()
	cfg.Region = region
	cfg.Credentials = aws.NewCredentialsCache(provider)

	f.cache[cacheKey] = cfg
	return cfg
}

func (f *Factory) executor(codes ...string) *retry.Executor {
	rx, err := retry.New(f.attempts, f.wait,
		retry.WithRetryableCodes(codes...),
		retry.WithAllConnectivityErrors())
	if err != nil {
		// attempts and wait are validated at config load
		panic(err)
	}
	return rx
}

// KMS returns a key client for the given provider account and region.
func (f *Factory) KMS(accountID, region string) *KMS {
	cfg := f.configFor(accountID, region)
	return NewKMS(kms.NewFromConfig(cfg), f.executor(kmsRetryableCodes...))
}

// SNS returns a topic client for the given provider account and region.
func (f *Factory) SNS(accountID, region string) *SNS {
	cfg := f.configFor(accountID, region)
	return NewSNS(sns.NewFromConfig(cfg), f.executor(snsRetryableCodes...))
}

// S3 returns a bucket client for the given provider account and region.
func (f *Factory) S3(accountID, region string) *S3 {
	cfg := f.configFor(accountID, region)
	return NewS3(s3.NewFromConfig(cfg), f.executor(s3RetryableCodes...))
}
