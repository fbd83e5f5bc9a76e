package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultPresignExpiry = 15 * time.Minute
	defaultPresignCache  = 1024
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

// S3Config describes an S3 or MinIO bucket.
type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	// PublicURL, when set, is used instead of presigned GET URLs.
	PublicURL     string
	PresignExpiry time.Duration
	CacheSize     int
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Disk stores objects in a single bucket. Presigned URLs are cached for
// half their lifetime so a handed out URL is never about to expire.
type S3Disk struct {
	client    objectAPI
	presigner presignAPI
	bucket    string
	publicURL string
	expiry    time.Duration
	urls      *expirable.LRU[string, string]
}

func NewS3Disk(ctx context.Context, cfg S3Config) (*S3Disk, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Disk(client, newS3PresignClient(client), cfg), nil
}

func newS3Disk(client objectAPI, presigner presignAPI, cfg S3Config) *S3Disk {
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultPresignCache
	}

	return &S3Disk{
		client:    client,
		presigner: presigner,
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
		expiry:    expiry,
		urls:      expirable.NewLRU[string, string](size, nil, expiry/2),
	}
}

func (d *S3Disk) Write(ctx context.Context, p string, r io.Reader, contentType string) (string, error) {
	key, err := CleanKey(p)
	if err != nil {
		return "", err
	}

	// the SDK needs a seekable body to sign plain HTTP endpoints
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("s3 read body %s: %w", key, err)
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := d.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}

	d.urls.Remove(key)
	return key, nil
}

func (d *S3Disk) Delete(ctx context.Context, p string) error {
	key, err := CleanKey(p)
	if err != nil {
		return err
	}

	d.urls.Remove(key)

	_, err = d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (d *S3Disk) Exists(ctx context.Context, p string) (bool, error) {
	key, err := CleanKey(p)
	if err != nil {
		return false, err
	}

	_, err = d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head %s: %w", key, err)
	}
	return true, nil
}

func (d *S3Disk) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := CleanKey(p)
	if err != nil {
		return nil, err
	}

	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	return out.Body, nil
}

// URL returns the public URL when configured, otherwise a presigned GET
// URL. An empty string is returned when presigning fails.
func (d *S3Disk) URL(p string) string {
	key, err := CleanKey(p)
	if err != nil {
		return ""
	}

	if d.publicURL != "" {
		return joinURL(d.publicURL, key)
	}

	if u, ok := d.urls.Get(key); ok {
		return u
	}

	req, err := d.presigner.PresignGetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(d.expiry))
	if err != nil {
		return ""
	}

	d.urls.Add(key, req.URL)
	return req.URL
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}
