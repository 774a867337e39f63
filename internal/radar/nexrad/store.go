package nexrad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sony/gobreaker"
)

// DefaultBucket is the public NEXRAD Level II archive.
const DefaultBucket = "noaa-nexrad-level2"

// Object is one entry of a bucket listing.
type Object struct {
	Key  string
	Size int64
}

// ObjectStore is the slice of an object store the archive needs.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// s3API is satisfied by *s3.Client.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads a public bucket anonymously, with retries and a circuit breaker.
type S3Store struct {
	client  s3API
	bucket  string
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store builds an anonymous S3 client for bucket in region.
// timeout bounds each HTTP round trip.
func NewS3Store(ctx context.Context, bucket, region string, timeout time.Duration) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
		awsconfig.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	// Retries are ours; the SDK's would multiply with them.
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.Retryer = aws.NopRetryer{}
	})
	return newS3Store(client, bucket), nil
}

func newS3Store(client s3API, bucket string) *S3Store {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &S3Store{
		client:  client,
		bucket:  bucket,
		backoff: DefaultBackoff,
		circuit: newBreaker("s3:" + bucket),
	}
}

// List returns every object whose key starts with prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	return callWithResilience(ctx, s.backoff, s.circuit, func(ctx context.Context) ([]Object, error) {
		var objects []Object
		pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		})
		for pager.HasMorePages() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return nil, classify(err)
			}
			for _, obj := range page.Contents {
				objects = append(objects, Object{
					Key:  aws.ToString(obj.Key),
					Size: aws.ToInt64(obj.Size),
				})
			}
		}
		return objects, nil
	})
}

// Get downloads the object at key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	return callWithResilience(ctx, s.backoff, s.circuit, func(ctx context.Context) ([]byte, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, classify(err)
		}
		defer out.Body.Close()

		body, err := io.ReadAll(out.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		return body, nil
	})
}

// classify marks S3 errors that retrying will not fix.
func classify(err error) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return permanent(err)
	}
	return err
}
