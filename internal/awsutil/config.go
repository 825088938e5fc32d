// Package awsutil loads AWS configuration for the storage backend.
package awsutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
)

// Load loads the AWS configuration. A non-empty endpoint (e.g. LocalStack at
// http://localhost:4566) overrides service resolution, and a non-empty
// accessKey replaces the default credential chain.
func Load(ctx context.Context, region, endpoint, accessKey, secretKey, sessionToken string) (aws.Config, error) {
	opts := []func(*awsCfg.LoadOptions) error{awsCfg.WithRegion(region)}

	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, r string, _ ...any) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               endpoint,
				HostnameImmutable: true,
				PartitionID:       "aws",
			}, nil
		})
		opts = append(opts, awsCfg.WithEndpointResolverWithOptions(resolver))
	}

	if accessKey != "" {
		creds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
				SessionToken:    sessionToken,
				Source:          "registration-service config",
			}, nil
		})
		opts = append(opts, awsCfg.WithCredentialsProvider(aws.NewCredentialsCache(creds)))
	}

	return awsCfg.LoadDefaultConfig(ctx, opts...)
}
