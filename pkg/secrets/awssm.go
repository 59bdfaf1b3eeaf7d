package secrets

import (
	"context"
	goerrors "errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// secretsManagerAPI is the subset of the Secrets Manager client used by
// the provider, split out so tests can stub it.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads secrets from AWS Secrets Manager.
type AWSProvider struct {
	client secretsManagerAPI
}

// NewAWSProvider creates a Secrets Manager provider for the region,
// using the ambient credential chain.
func NewAWSProvider(ctx context.Context, region string) (*AWSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &AWSProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// NewAWSProviderWithClient creates a provider over an existing client.
func NewAWSProviderWithClient(client secretsManagerAPI) *AWSProvider {
	return &AWSProvider{client: client}
}

func (p *AWSProvider) Name() string { return "aws-sm" }

func (p *AWSProvider) Get(ctx context.Context, key string) (string, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if goerrors.As(err, &notFound) {
			return "", ErrSecretNotFound
		}
		return "", err
	}
	if out.SecretString == nil {
		return "", ErrSecretNotFound
	}
	return *out.SecretString, nil
}

func (p *AWSProvider) GetBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, k := range keys {
		v, err := p.Get(ctx, k)
		if err == ErrSecretNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, nil
}
