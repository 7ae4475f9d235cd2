package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	homelabcfg "github.com/systmms/homelab/internal/config"
	"github.com/systmms/homelab/pkg/provider"
)

// SecretsManagerClientAPI defines the AWS Secrets Manager operations used here.
// This allows for mocking in tests
type SecretsManagerClientAPI interface {
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// AWSSecretsManagerProvider stores each deploy key as one secret named
// <vault>/<item> whose value is a JSON object of the item fields.
type AWSSecretsManagerProvider struct {
	client SecretsManagerClientAPI
	region string
}

// AWSOption is a functional option for configuring the provider
type AWSOption func(*AWSSecretsManagerProvider)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(p *AWSSecretsManagerProvider) {
		p.client = client
	}
}

// NewAWSSecretsManagerProvider creates a new AWS Secrets Manager provider
func NewAWSSecretsManagerProvider(ctx context.Context, cfg homelabcfg.AWSConfig, opts ...AWSOption) (*AWSSecretsManagerProvider, error) {
	p := &AWSSecretsManagerProvider{region: cfg.Region}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		var configOpts []func(*config.LoadOptions) error
		configOpts = append(configOpts, config.WithRegion(cfg.Region))

		// Static credentials are for LocalStack/testing
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			configOpts = append(configOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			))
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		p.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
	}

	return p, nil
}

func (p *AWSSecretsManagerProvider) Name() string {
	return "AWS Secrets Manager"
}

func (p *AWSSecretsManagerProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{AtomicCreate: true}
}

// SecretID returns the secret name used for ref.
func (p *AWSSecretsManagerProvider) SecretID(ref provider.ItemRef) string {
	return ref.Vault + "/" + ref.Name
}

func (p *AWSSecretsManagerProvider) Exists(ctx context.Context, ref provider.ItemRef) (bool, error) {
	_, err := p.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(p.SecretID(ref)),
	})
	if err == nil {
		return true, nil
	}
	if isResourceNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to describe secret %s: %w", p.SecretID(ref), err)
}

// Create relies on CreateSecret refusing existing names, which makes the
// check-then-create sequence race free.
func (p *AWSSecretsManagerProvider) Create(ctx context.Context, item provider.Item) error {
	value, err := json.Marshal(item.Fields())
	if err != nil {
		return fmt.Errorf("failed to encode secret value: %w", err)
	}

	_, err = p.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(p.SecretID(item.ItemRef)),
		Description:  aws.String(fmt.Sprintf("Flux deploy key for %s", item.RepoURL)),
		SecretString: aws.String(string(value)),
		Tags: []types.Tag{
			{Key: aws.String("managed-by"), Value: aws.String("homelab")},
			{Key: aws.String(provider.FieldUsecaseName), Value: aws.String(item.UsecaseName)},
		},
	})
	if err != nil {
		var exists *types.ResourceExistsException
		if errors.As(err, &exists) {
			return provider.ErrItemExists
		}
		return fmt.Errorf("failed to create secret %s: %w", p.SecretID(item.ItemRef), err)
	}
	return nil
}

func isResourceNotFound(err error) bool {
	var resourceNotFound *types.ResourceNotFoundException
	return errors.As(err, &resourceNotFound)
}
