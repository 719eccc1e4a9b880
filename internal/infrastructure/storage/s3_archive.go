// Package storage archives raw webhook payloads in S3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// objectPutter is the subset of the S3 client used by the archive
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3PayloadArchive implements order.PayloadArchive using AWS S3 SDK v2.
// It is compatible with any S3-compatible storage (AWS S3, MinIO, etc.)
type S3PayloadArchive struct {
	client objectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

// S3PayloadArchiveOption is a functional option for configuring S3PayloadArchive
type S3PayloadArchiveOption func(*S3PayloadArchive)

// WithLogger sets a custom logger for S3PayloadArchive
func WithLogger(logger *zap.Logger) S3PayloadArchiveOption {
	return func(a *S3PayloadArchive) {
		a.logger = logger
	}
}

// NewS3PayloadArchive creates an archive from configuration. Static
// credentials are used when configured, otherwise the default AWS chain.
func NewS3PayloadArchive(ctx context.Context, cfg *config.ArchiveConfig, opts ...S3PayloadArchiveOption) (*S3PayloadArchive, error) {
	if cfg == nil {
		return nil, errors.New("archive configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newS3PayloadArchive(client, cfg.Bucket, cfg.Prefix, opts...), nil
}

func newS3PayloadArchive(client objectPutter, bucket, prefix string, opts ...S3PayloadArchiveOption) *S3PayloadArchive {
	a := &S3PayloadArchive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive uploads the raw body under a key derived from the shop, the day
// it was received and the delivery
func (a *S3PayloadArchive) Archive(ctx context.Context, p order.ArchivedPayload) error {
	key := ObjectKey(a.prefix, p)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(p.Body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"shop-domain":       p.ShopDomain,
			"topic":             p.Topic,
			"external-order-id": strconv.FormatInt(p.ExternalOrderID, 10),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive payload %s: %w", key, err)
	}
	a.logger.Debug("Archived webhook payload", zap.String("key", key))
	return nil
}

// ObjectKey builds prefix/shop/yyyy/mm/dd/<external id>-<delivery>.json.
// Without a delivery ID the receive time in nanoseconds stands in.
func ObjectKey(prefix string, p order.ArchivedPayload) string {
	delivery := p.DeliveryID
	if delivery == "" {
		delivery = strconv.FormatInt(p.ReceivedAt.UnixNano(), 10)
	}
	received := p.ReceivedAt.UTC()
	return path.Join(
		prefix,
		p.ShopDomain,
		received.Format("2006/01/02"),
		fmt.Sprintf("%d-%s.json", p.ExternalOrderID, delivery),
	)
}

// NoopPayloadArchive discards payloads. Used when archiving is disabled.
type NoopPayloadArchive struct{}

// Archive does nothing
func (NoopPayloadArchive) Archive(context.Context, order.ArchivedPayload) error {
	return nil
}

var (
	_ order.PayloadArchive = (*S3PayloadArchive)(nil)
	_ order.PayloadArchive = NoopPayloadArchive{}
)
