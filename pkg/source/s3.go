package source

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmhub/pkg/blobcache"
	"github.com/effective-security/llmhub/pkg/metricskey"
	"github.com/effective-security/xlog"
)

// DefaultFetchTimeout bounds a single remote object fetch. Remote fetches
// fail fast rather than hang; see ErrFetchTimeout.
const DefaultFetchTimeout = 10 * time.Second

// S3API is the subset of the S3 client used by this source.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 is a source over a directory-like S3 prefix, e.g. s3://bucket/models/.
type S3 struct {
	client  S3API
	uri     string
	bucket  string
	prefix  string
	timeout time.Duration
	cache   blobcache.Cache
}

// S3Option configures the S3 source.
type S3Option func(*S3)

// WithS3Client overrides the S3 client. Used by tests and by callers that
// manage their own AWS configuration.
func WithS3Client(client S3API) S3Option {
	return func(s *S3) {
		s.client = client
	}
}

// WithFetchTimeout overrides the per-fetch timeout.
func WithFetchTimeout(timeout time.Duration) S3Option {
	return func(s *S3) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithCache places a byte cache in front of fetches, so repeated descriptor
// and provider reads do not re-hit S3. Forced reloads bypass and refresh it.
func WithCache(cache blobcache.Cache) S3Option {
	return func(s *S3) {
		s.cache = cache
	}
}

// WithEndpoint points the client at an S3-compatible endpoint.
func WithEndpoint(url, region, accessKeyID, secretKey string) S3Option {
	return func(s *S3) {
		s.client = s3.New(s3.Options{
			BaseEndpoint: aws.String(url),
			Region:       region,
			UsePathStyle: true,
			Credentials:  credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, ""),
		})
	}
}

// NewS3 creates a source over an s3://bucket/prefix URI. Unless a client is
// provided via options, the ambient AWS configuration is used.
func NewS3(ctx context.Context, uri string, opts ...S3Option) (*S3, error) {
	bucket, prefix, err := ParseS3Path(uri)
	if err != nil {
		return nil, err
	}

	s := &S3{
		uri:     uri,
		bucket:  bucket,
		prefix:  prefix,
		timeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load AWS config")
		}
		s.client = s3.NewFromConfig(cfg)
	}
	return s, nil
}

// ParseS3Path splits an s3://bucket/prefix URI.
func ParseS3Path(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok || rest == "" {
		return "", "", errors.Errorf("invalid S3 path: %q", uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.TrimSuffix(prefix, "/"), nil
}

// Name implements the Source interface.
func (s *S3) Name() string {
	return s.uri
}

// Fetch implements the Source interface.
func (s *S3) Fetch(ctx context.Context, name string) ([]byte, error) {
	key := path.Join(s.prefix, name)
	cacheKey := blobcache.Key(s.bucket, key)

	if s.cache != nil && !bypassCache(ctx) {
		if data, ok := s.cache.Get(ctx, cacheKey); ok {
			return data, nil
		}
	}

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	metricskey.StatsRemoteFetches.IncrCounter(1, s.uri)
	out, err := s.client.GetObject(fctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metricskey.StatsRemoteFetchErrors.IncrCounter(1, s.uri)
		return nil, s.fetchError(fctx, err, key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		metricskey.StatsRemoteFetchErrors.IncrCounter(1, s.uri)
		return nil, errors.Wrapf(ErrFetch, "s3://%s/%s: %s", s.bucket, key, err.Error())
	}

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, data)
	}

	logger.KV(xlog.DEBUG,
		"status", "fetched",
		"bucket", s.bucket,
		"key", key,
		"size", len(data))
	return data, nil
}

// List implements the Source interface.
func (s *S3) List(ctx context.Context, ext string) ([]string, error) {
	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}

	var names []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(fctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			metricskey.StatsRemoteFetchErrors.IncrCounter(1, s.uri)
			return nil, s.fetchError(fctx, err, prefix)
		}

		for _, obj := range out.Contents {
			name := path.Base(aws.ToString(obj.Key))
			if strings.HasSuffix(name, ext) {
				names = append(names, name)
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return names, nil
}

func (s *S3) fetchError(ctx context.Context, err error, key string) error {
	var noKey *s3types.NoSuchKey
	switch {
	case errors.As(err, &noKey):
		return errors.Wrapf(ErrNotFound, "s3://%s/%s", s.bucket, key)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Wrapf(ErrFetchTimeout, "s3://%s/%s", s.bucket, key)
	default:
		return errors.Wrapf(ErrFetch, "s3://%s/%s: %s", s.bucket, key, err.Error())
	}
}
