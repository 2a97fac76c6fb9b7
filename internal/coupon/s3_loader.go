package coupon

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// objectGetter is the part of the S3 client the loader uses.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// s3Loader reads gzipped coupon definition files from a bucket.
type s3Loader struct {
	client objectGetter
	bucket string
	logger zerolog.Logger
}

// NewS3Loader creates a Loader backed by the bucket in region, using the
// default AWS credential chain.
func NewS3Loader(ctx context.Context, bucket, region string, logger zerolog.Logger) (Loader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return newS3Loader(s3.NewFromConfig(cfg), bucket, logger), nil
}

func newS3Loader(client objectGetter, bucket string, logger zerolog.Logger) *s3Loader {
	return &s3Loader{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "coupon-s3").Str("bucket", bucket).Logger(),
	}
}

// Load fetches and parses the object at key.
func (l *s3Loader) Load(ctx context.Context, key string) (Set, error) {
	obj, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch s3://%s/%s: %w", l.bucket, key, err)
	}
	defer func(body io.ReadCloser) { _ = body.Close() }(obj.Body)

	set, err := readSet(ctx, obj.Body, "s3://"+l.bucket+"/"+key)
	if err != nil {
		return nil, err
	}

	l.logger.Info().Str("key", key).Int("coupons", set.Size()).Msg("coupon definitions fetched")
	return set, nil
}

// fallbackLoader prefers the bucket and reads the local copy of a file
// when S3 is disabled or the fetch fails.
type fallbackLoader struct {
	remote  Loader
	local   Loader
	prefix  string
	enabled bool
	logger  zerolog.Logger
}

// NewFallbackLoader combines remote and local loaders. Remote keys are
// prefix joined with the local file name; a nil remote means local only.
func NewFallbackLoader(remote, local Loader, prefix string, enabled bool, logger zerolog.Logger) Loader {
	return &fallbackLoader{
		remote:  remote,
		local:   local,
		prefix:  prefix,
		enabled: enabled,
		logger:  logger.With().Str("component", "coupon-fallback").Logger(),
	}
}

func (l *fallbackLoader) Load(ctx context.Context, path string) (Set, error) {
	if !l.enabled || l.remote == nil {
		return l.local.Load(ctx, path)
	}

	key := l.objectKey(path)
	set, err := l.remote.Load(ctx, key)
	if err == nil {
		return set, nil
	}

	l.logger.Warn().Err(err).Str("key", key).Str("path", path).Msg("remote coupon file unavailable, reading local copy")
	return l.local.Load(ctx, path)
}

func (l *fallbackLoader) objectKey(path string) string {
	if l.prefix == "" {
		return strings.TrimPrefix(path, "/")
	}
	return strings.TrimSuffix(l.prefix, "/") + "/" + strings.TrimPrefix(path, "/")
}
