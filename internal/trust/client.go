package trust

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AWSConfig holds Secrets Manager connection parameters.
type AWSConfig struct {
	// Region is the AWS region of the secret (e.g. "us-east-1").
	Region string

	// Endpoint overrides the default AWS endpoint.
	// Set to a LocalStack URL (e.g. "http://localhost:4566") for local development;
	// static test credentials are used in that case.
	Endpoint string

	// Timeout is the HTTP client timeout for Secrets Manager requests.
	Timeout time.Duration
}

// NewSecretsManagerClient creates a Secrets Manager client configured from cfg.
func NewSecretsManagerClient(ctx context.Context, cfg AWSConfig) (*secretsmanager.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.Endpoint != "" {
		opts = append(opts,
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("test", "test", ""),
			),
		)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if cfg.Timeout > 0 {
		awsCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	var smOpts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		smOpts = append(smOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return secretsmanager.NewFromConfig(awsCfg, smOpts...), nil
}
