package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/yuya-takeyama/bulklift/internal/config"
	"github.com/yuya-takeyama/bulklift/pkg/objstore"
)

// socket-level retries below the per-object retry policy
const swiftTransportRetries = 2

func newStore(ctx context.Context, cfg config.Config) (objstore.Client, error) {
	switch cfg.Backend {
	case config.BackendS3:
		var configOpts []func(*awsconfig.LoadOptions) error
		if cfg.Profile != "" {
			configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
		}
		if cfg.Region != "" {
			configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))
		}
		if cfg.AccessKey != "" && cfg.SecretKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
			))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return objstore.NewAWSClient(awsCfg, cfg.Endpoint, cfg.PathStyle), nil

	case config.BackendSwift:
		return objstore.NewSwiftClient(cfg.Endpoint, cfg.AuthToken, swiftTransportRetries), nil

	case config.BackendMinio:
		client, err := objstore.NewMinioClient(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Region, !cfg.Insecure)
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
