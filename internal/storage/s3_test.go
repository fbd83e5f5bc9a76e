package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
	headErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = data
	f.types[*in.Key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeObjects) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

type fakePresigner struct {
	calls  int
	expiry time.Duration
	err    error
}

func (p *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	p.expiry = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://s3.local/" + *in.Bucket + "/" + *in.Key + "?X-Amz-Signature=abc"}, nil
}

func TestS3Disk_WriteExistsOpenDelete(t *testing.T) {
	ctx := context.Background()
	objs := newFakeObjects()
	d := newS3Disk(objs, &fakePresigner{}, S3Config{Bucket: "paperclip"})

	p, err := d.Write(ctx, "/records/1/doc.pdf", strings.NewReader("pdf"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "records/1/doc.pdf", p)
	assert.Equal(t, "application/pdf", objs.types[p])

	ok, err := d.Exists(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := d.Open(ctx, p)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "pdf", string(b))

	require.NoError(t, d.Delete(ctx, p))

	ok, err = d.Exists(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = d.Open(ctx, p)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestS3Disk_Errors(t *testing.T) {
	ctx := context.Background()
	objs := newFakeObjects()
	objs.putErr = errors.New("timeout")
	objs.headErr = errors.New("forbidden")
	d := newS3Disk(objs, &fakePresigner{}, S3Config{Bucket: "b"})

	_, err := d.Write(ctx, "a", strings.NewReader("x"), "")
	require.ErrorContains(t, err, "timeout")

	_, err = d.Exists(ctx, "a")
	require.ErrorContains(t, err, "forbidden")
}

func TestS3Disk_PresignedURLsAreCached(t *testing.T) {
	pre := &fakePresigner{}
	d := newS3Disk(newFakeObjects(), pre, S3Config{Bucket: "b", PresignExpiry: 10 * time.Minute})

	u1 := d.URL("a/b.png")
	u2 := d.URL("a/b.png")
	assert.Equal(t, u1, u2)
	assert.Contains(t, u1, "X-Amz-Signature")
	assert.Equal(t, 1, pre.calls)
	assert.Equal(t, 10*time.Minute, pre.expiry)

	// a rewrite drops the cached URL
	_, err := d.Write(context.Background(), "a/b.png", strings.NewReader("x"), "")
	require.NoError(t, err)
	d.URL("a/b.png")
	assert.Equal(t, 2, pre.calls)
}

func TestS3Disk_URLFallbacks(t *testing.T) {
	d := newS3Disk(newFakeObjects(), &fakePresigner{}, S3Config{Bucket: "b", PublicURL: "https://cdn.example.com/"})
	assert.Equal(t, "https://cdn.example.com/a/b.png", d.URL("a/b.png"))

	failing := newS3Disk(newFakeObjects(), &fakePresigner{err: errors.New("no creds")}, S3Config{Bucket: "b"})
	assert.Equal(t, "", failing.URL("a/b.png"))
}

func TestNewS3Disk_WiresConfig(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		require.NotNil(t, c)
		return &s3.PresignClient{}
	}

	d, err := NewS3Disk(context.Background(), S3Config{
		Region:       "us-east-1",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		BaseEndpoint: "http://127.0.0.1:9000",
		Bucket:       "paperclip",
	})
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Disk_ConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("boom")
	}

	_, err := NewS3Disk(context.Background(), S3Config{})
	require.ErrorContains(t, err, "boom")
}
