package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
	"github.com/autopeer-io/tesla-exporter/pkg/options"
)

// ObjectStore is the subset of the minio client used by the archive.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ core.Sink = (*S3Sink)(nil)

// S3Sink archives the raw vehicle_data payload of every fetch.
type S3Sink struct {
	store  ObjectStore
	bucket string
	region string
	prefix string
	logger log.Logger
}

// NewS3Sink creates a minio client from opts.
func NewS3Sink(opts *options.S3Options) (*S3Sink, error) {
	minioOpts := &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	}
	if opts.InsecureSkipVerify {
		minioOpts.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := minio.New(opts.Endpoint, minioOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return NewS3SinkWithStore(client, opts), nil
}

// NewS3SinkWithStore archives into store.
func NewS3SinkWithStore(store ObjectStore, opts *options.S3Options) *S3Sink {
	return &S3Sink{
		store:  store,
		bucket: opts.BucketName,
		region: opts.Region,
		prefix: opts.Prefix,
		logger: log.WithName("sink.s3"),
	}
}

func (s *S3Sink) Name() string { return "s3" }

// CheckBucket creates the bucket when it does not exist.
func (s *S3Sink) CheckBucket(ctx context.Context) error {
	exists, err := s.store.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	s.logger.Info("Bucket does not exist, creating", "bucket", s.bucket)
	if err := s.store.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Publish uploads the raw payload. Reports without telemetry are skipped.
func (s *S3Sink) Publish(ctx context.Context, r *model.Report) error {
	if len(r.Raw) == 0 {
		return nil
	}

	key := ObjectKey(s.prefix, r)
	_, err := s.store.PutObject(ctx, s.bucket, key, bytes.NewReader(r.Raw), int64(len(r.Raw)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"report-id": r.ID,
			"state":     string(r.State),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.Debug("Archived payload", "bucket", s.bucket, "key", key, "size", len(r.Raw))
	return nil
}

// ObjectKey returns {prefix}/{vin}/{yyyy}/{mm}/{dd}/{unix-nanos}.json in UTC.
func ObjectKey(prefix string, r *model.Report) string {
	t := r.ObservedAt.UTC()
	vin := r.Vehicle.VIN
	if vin == "" {
		vin = "unknown"
	}
	return path.Join(prefix, vin, t.Format("2006"), t.Format("01"), t.Format("02"),
		strconv.FormatInt(t.UnixNano(), 10)+".json")
}
