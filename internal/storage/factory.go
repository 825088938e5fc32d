package storage

import (
	"context"
	"fmt"

	"registration-service/internal/awsutil"
	"registration-service/internal/config"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// New builds the Store selected by cfg.Provider.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Provider {
	case ProviderS3, "":
		awsConf, err := awsutil.Load(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.SecurityToken)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		// path-style when hitting LocalStack
		client := s3.NewFromConfig(awsConf, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.UsePathStyle = true
			}
		})
		return NewS3Store(
			s3.NewPresignClient(client),
			client,
			cfg.Container,
			S3BaseURL(cfg.Container, cfg.Region, cfg.Endpoint),
			cfg.Timeout(),
		), nil

	case ProviderOSS:
		bkt, err := NewOSSClient(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.SecurityToken, cfg.Container, cfg.Timeout())
		if err != nil {
			return nil, err
		}
		return NewOSSStore(bkt, OSSBaseURL(cfg.Container, cfg.Endpoint)), nil

	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
