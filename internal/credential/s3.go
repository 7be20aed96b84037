// Package credential issues time-limited object-storage credentials so
// clients can upload file content directly, without the content ever
// passing through this service.
package credential

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadCredential is a presigned upload slot for a single object.
type UploadCredential struct {
	URL          string      `json:"url"`
	Method       string      `json:"method"`
	SignedHeader http.Header `json:"signed_header"`
	Key          string      `json:"key"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// Issuer issues upload and download credentials. A nil upload credential
// means issuance failed; callers treat that as a non-fatal per-entry failure
// since the entry row is already committed and the credential can be
// re-requested.
type Issuer interface {
	IssueUpload(ctx context.Context, ownerID, objectID, size int64) *UploadCredential
	IssueDownload(ctx context.Context, key string) (string, error)
}

// S3Config configures the S3-backed issuer.
type S3Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Endpoint  string // optional, for S3-compatible storage
	Expiry    time.Duration
}

// S3Issuer issues presigned S3 requests. Object keys are "ownerID/objectID"
// so quota attribution can be reconstructed from the bucket alone.
type S3Issuer struct {
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
	logger  *slog.Logger
}

// NewS3Issuer builds the S3 client and presigner.
func NewS3Issuer(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Issuer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	expiry := cfg.Expiry
	if expiry == 0 {
		expiry = 30 * time.Minute
	}

	return &S3Issuer{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expiry:  expiry,
		logger:  logger,
	}, nil
}

// IssueUpload returns a presigned PUT bounded to the exact content length,
// or nil when signing fails.
func (i *S3Issuer) IssueUpload(ctx context.Context, ownerID, objectID, size int64) *UploadCredential {
	key := fmt.Sprintf("%d/%d", ownerID, objectID)

	req, err := i.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(i.bucket),
		Key:           aws.String(key),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(i.expiry))

	if err != nil {
		i.logger.Warn("failed to presign upload",
			"owner_id", ownerID,
			"object_id", objectID,
			"error", err,
		)
		return nil
	}

	return &UploadCredential{
		URL:          req.URL,
		Method:       req.Method,
		SignedHeader: req.SignedHeader,
		Key:          key,
		ExpiresAt:    time.Now().Add(i.expiry),
	}
}

// IssueDownload returns a presigned GET for an existing object key.
func (i *S3Issuer) IssueDownload(ctx context.Context, key string) (string, error) {
	req, err := i.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(i.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(i.expiry))

	if err != nil {
		return "", fmt.Errorf("presign download for %q: %w", key, err)
	}

	return req.URL, nil
}
