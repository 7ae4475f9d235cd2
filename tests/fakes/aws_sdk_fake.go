package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// FakeSecretsManagerClient is an in-memory stand-in for the Secrets Manager
// operations AWSSecretsManagerProvider uses.
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret names to their data
	Secrets map[string]*SecretData
	// Errors maps secret names to errors returned by every call on that name
	Errors map[string]error

	DescribeCalls int
	CreateCalls   int
}

// SecretData holds the data for a fake secret
type SecretData struct {
	SecretString string
	Description  string
	Tags         map[string]string
}

// NewFakeSecretsManagerClient creates an empty fake client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]*SecretData),
		Errors:  make(map[string]error),
	}
}

// AddSecretString seeds a secret
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = &SecretData{SecretString: value, Tags: map[string]string{}}
}

// Secret returns the stored secret or nil
func (f *FakeSecretsManagerClient) Secret(name string) *SecretData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Secrets[name]
}

func (f *FakeSecretsManagerClient) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DescribeCalls++

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	secret, ok := f.Secrets[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{
			Message: aws.String("Secrets Manager can't find the specified secret."),
		}
	}
	return &secretsmanager.DescribeSecretOutput{
		Name:        aws.String(name),
		Description: aws.String(secret.Description),
	}, nil
}

func (f *FakeSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++

	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; ok {
		return nil, &types.ResourceExistsException{
			Message: aws.String(fmt.Sprintf("The operation failed because the secret %s already exists.", name)),
		}
	}

	tags := make(map[string]string, len(params.Tags))
	for _, tag := range params.Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	f.Secrets[name] = &SecretData{
		SecretString: aws.ToString(params.SecretString),
		Description:  aws.ToString(params.Description),
		Tags:         tags,
	}
	return &secretsmanager.CreateSecretOutput{
		Name: aws.String(name),
		ARN:  aws.String("arn:aws:secretsmanager:us-east-1:000000000000:secret:" + name),
	}, nil
}
