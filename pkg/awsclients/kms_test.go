package awsclients

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencdh/datahub-in-go/pkg/retry"
)

type fakeKMSAPI struct {
	describeErr   error
	createErrs    []error
	createCalls   int
	putPolicies   []string
	lastKeyPolicy string
}

func (f *fakeKMSAPI) DescribeKey(_ context.Context, params *kms.DescribeKeyInput, _ ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &kms.DescribeKeyOutput{
		KeyMetadata: &kmstypes.KeyMetadata{
			KeyId: aws.String("key-1"),
			Arn:   aws.String("arn:aws:kms:eu-west-1:111122223333:key/key-1"),
		},
	}, nil
}

func (f *fakeKMSAPI) CreateKey(_ context.Context, params *kms.CreateKeyInput, _ ...func(*kms.Options)) (*kms.CreateKeyOutput, error) {
	f.createCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.lastKeyPolicy = aws.ToString(params.Policy)
	return &kms.CreateKeyOutput{
		KeyMetadata: &kmstypes.KeyMetadata{
			KeyId: aws.String("key-1"),
			Arn:   aws.String("arn:aws:kms:eu-west-1:111122223333:key/key-1"),
		},
	}, nil
}

func (f *fakeKMSAPI) CreateAlias(_ context.Context, _ *kms.CreateAliasInput, _ ...func(*kms.Options)) (*kms.CreateAliasOutput, error) {
	return &kms.CreateAliasOutput{}, nil
}

func (f *fakeKMSAPI) GetKeyPolicy(_ context.Context, _ *kms.GetKeyPolicyInput, _ ...func(*kms.Options)) (*kms.GetKeyPolicyOutput, error) {
	return &kms.GetKeyPolicyOutput{Policy: aws.String(f.lastKeyPolicy)}, nil
}

func (f *fakeKMSAPI) PutKeyPolicy(_ context.Context, params *kms.PutKeyPolicyInput, _ ...func(*kms.Options)) (*kms.PutKeyPolicyOutput, error) {
	f.putPolicies = append(f.putPolicies, aws.ToString(params.Policy))
	return &kms.PutKeyPolicyOutput{}, nil
}

func testExecutor(t *testing.T, attempts int, codes ...string) *retry.Executor {
	t.Helper()
	rx, err := retry.New(attempts, time.Second,
		retry.WithSleeper(func(time.Duration) {}),
		retry.WithRetryableCodes(codes...))
	require.NoError(t, err)
	return rx
}

func TestGetKeyByAliasNotFound(t *testing.T) {
	api := &fakeKMSAPI{describeErr: &smithy.GenericAPIError{Code: "NotFoundException"}}
	client := NewKMS(api, testExecutor(t, 3, kmsRetryableCodes...))

	_, err := client.GetKeyByAlias(context.Background(), "alias/cdh-prod-hub1-111122223333")

	var notFound *AliasNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "alias/cdh-prod-hub1-111122223333", notFound.Alias)
}

func TestCreateKeyRetriesPrincipalPropagation(t *testing.T) {
	api := &fakeKMSAPI{
		createErrs: []error{
			&smithy.GenericAPIError{Code: "MalformedPolicyDocumentException"},
			&smithy.GenericAPIError{Code: "MalformedPolicyDocumentException"},
		},
	}
	client := NewKMS(api, testExecutor(t, 5, kmsRetryableCodes...))

	key, err := client.CreateKey(context.Background(), `{"Version":"2012-10-17"}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "key-1", key.ID)
	assert.Equal(t, 3, api.createCalls)
}

func TestCreateKeyDoesNotRetryAccessDenied(t *testing.T) {
	api := &fakeKMSAPI{
		createErrs: []error{&smithy.GenericAPIError{Code: "AccessDeniedException"}},
	}
	client := NewKMS(api, testExecutor(t, 5, kmsRetryableCodes...))

	_, err := client.CreateKey(context.Background(), `{"Version":"2012-10-17"}`, nil)
	require.Error(t, err)
	assert.Equal(t, 1, api.createCalls)
}
