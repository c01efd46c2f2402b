package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

// Config options for the S3 sync target
type Config struct {
	Region          string // AWS region
	Bucket          string // bucket receiving bundles
	Prefix          string // key prefix, e.g. "bundles"
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // optional endpoint for S3 compatible services
	UsePathStyle    bool
}

// putObjectAPI is the part of *s3.Client used by the adapter
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Adapter writes bundles as JSON objects. The key is derived from the content
// id and idempotency key, so repeating a call overwrites the same object.
type Adapter struct {
	client putObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// New builds an S3 client from cfg
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newAdapter(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newAdapter(client putObjectAPI, bucket, prefix string, logger *zap.Logger) *Adapter {
	return &Adapter{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Sync uploads the bundle and returns its s3:// URI as the sync id
func (a *Adapter) Sync(ctx context.Context, req ports.SyncRequest) (*ports.SyncResult, error) {
	if req.Bundle == nil {
		return nil, errors.New("bundle is required")
	}
	if req.IdempotencyKey == "" {
		return nil, errors.New("idempotency key is required")
	}

	body, err := req.Bundle.Marshal()
	if err != nil {
		return nil, err
	}

	key := a.objectKey(req.Bundle.ContentID, req.IdempotencyKey)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"contract-version": req.Bundle.ContractVersion,
			"content-type":     req.Bundle.ContentType,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload bundle: %w", err)
	}

	syncID := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	a.logger.Debug("bundle uploaded",
		zap.String("content_id", req.Bundle.ContentID),
		zap.String("sync_id", syncID))

	return &ports.SyncResult{SyncID: syncID, Success: true}, nil
}

func (a *Adapter) objectKey(contentID, idempotencyKey string) string {
	return path.Join(a.prefix, contentID, idempotencyKey+".json")
}

func (a *Adapter) Idempotent() bool { return true }

func (a *Adapter) Name() string { return "s3" }
