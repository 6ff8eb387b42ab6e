package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/vladfi1/SlippiDump/internal/logger"
	"github.com/vladfi1/SlippiDump/pkg/registry"
	"github.com/vladfi1/SlippiDump/pkg/store/blob"
	blobFs "github.com/vladfi1/SlippiDump/pkg/store/blob/fs"
	blobMemory "github.com/vladfi1/SlippiDump/pkg/store/blob/memory"
	blobS3 "github.com/vladfi1/SlippiDump/pkg/store/blob/s3"
	"github.com/vladfi1/SlippiDump/pkg/store/metadata"
	metaBadger "github.com/vladfi1/SlippiDump/pkg/store/metadata/badger"
	metaMemory "github.com/vladfi1/SlippiDump/pkg/store/metadata/memory"
)

// CreateBlobStore creates a blob store based on configuration.
//
// The Type field selects the implementation; the matching type-specific
// map is decoded into the store's own configuration struct.
//
// Supported types:
//   - "filesystem": local filesystem storage under a base path
//   - "memory": in-memory storage, ephemeral (tests and development)
//   - "s3": Amazon S3 or any S3-compatible endpoint
func CreateBlobStore(ctx context.Context, cfg *BlobConfig) (blob.Store, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemBlobStore(ctx, cfg.Filesystem)
	case "memory":
		return blobMemory.New(), nil
	case "s3":
		return createS3BlobStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob store type: %q", cfg.Type)
	}
}

// createFilesystemBlobStore creates a filesystem-backed blob store.
func createFilesystemBlobStore(ctx context.Context, options map[string]any) (blob.Store, error) {
	type FilesystemBlobStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemBlobStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem blob store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem blob store: path is required")
	}

	store, err := blobFs.New(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem blob store: %w", err)
	}

	return store, nil
}

// createS3BlobStore creates an S3-backed blob store.
func createS3BlobStore(ctx context.Context, options map[string]any) (blob.Store, error) {
	type S3BlobStoreConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		PartSize        int64  `mapstructure:"part_size"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg S3BlobStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 blob store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 blob store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 blob store: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Custom endpoint supports MinIO, Localstack, and other
	// S3-compatible backends.
	if storeCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default chain.
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for MinIO/Localstack compatibility.
		if storeCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	store, err := blobS3.New(ctx, blobS3.Config{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
		PartSize:  storeCfg.PartSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 blob store: %w", err)
	}

	logger.Info("S3 blob store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// CreateMetadataStore creates a metadata store based on configuration.
//
// Supported types:
//   - "memory": in-memory storage, ephemeral
//   - "badger": BadgerDB storage, persistent
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.Store, error) {
	switch cfg.Type {
	case "memory":
		return metaMemory.New(), nil
	case "badger":
		return createBadgerMetadataStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createBadgerMetadataStore creates a BadgerDB-based persistent
// metadata store.
func createBadgerMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type BadgerMetadataStoreOptions struct {
		Path     string `mapstructure:"path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var storeOpts BadgerMetadataStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger metadata store options: %w", err)
	}

	if storeOpts.Path == "" && !storeOpts.InMemory {
		return nil, fmt.Errorf("badger metadata store: path is required")
	}

	store, err := metaBadger.New(ctx, metaBadger.Config{
		Path:     storeOpts.Path,
		InMemory: storeOpts.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
	}

	return store, nil
}

// SeedDatabases writes the preconfigured database params through the
// registry. Existing params documents are overwritten; databases not
// listed in config are untouched.
func SeedDatabases(ctx context.Context, reg *registry.Registry, cfg *Config) error {
	for i := range cfg.Databases {
		params := cfg.Databases[i]
		if err := reg.PutParams(ctx, &params); err != nil {
			return fmt.Errorf("failed to seed database[%d] %q: %w", i, params.Name, err)
		}
		logger.Info("Seeded database params: %s (max_files=%d, max_total_size=%d)",
			params.Name, params.MaxFiles, params.MaxTotalSize)
	}
	return nil
}
