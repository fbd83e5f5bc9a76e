package app

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/dmitrijs2005/paperclip/internal/config"
	"github.com/dmitrijs2005/paperclip/internal/storage"
)

// Disk names attachments refer to in their definitions.
const (
	DiskLocal = "local"
	DiskS3    = "s3"
)

// newS3Disk is a seam for tests.
var newS3Disk = func(ctx context.Context, cfg storage.S3Config) (storage.Adapter, error) {
	return storage.NewS3Disk(ctx, cfg)
}

// buildDisks registers the local disk and, when a bucket is configured,
// the S3 disk.
func buildDisks(ctx context.Context, cfg *config.Config) (*storage.Disks, error) {
	disks := storage.NewDisks(cfg.DefaultDisk)

	var opts []storage.LocalOption
	if cfg.URLSigningKey != "" {
		opts = append(opts, storage.WithSignedURLs([]byte(cfg.URLSigningKey), cfg.URLValidity))
	}
	local, err := storage.NewLocalDisk(cfg.LocalRoot, cfg.LocalBaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("local disk: %w", err)
	}
	disks.Register(DiskLocal, local)

	if cfg.S3Bucket != "" {
		s3disk, err := newS3Disk(ctx, storage.S3Config{
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3RootUser,
			SecretKey:     cfg.S3RootPassword,
			BaseEndpoint:  cfg.S3BaseEndpoint,
			Bucket:        cfg.S3Bucket,
			PublicURL:     cfg.S3PublicURL,
			PresignExpiry: cfg.URLValidity,
			CacheSize:     cfg.PresignCacheSize,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 disk: %w", err)
		}
		disks.Register(DiskS3, s3disk)
	}

	if _, err := disks.Get(""); err != nil {
		return nil, fmt.Errorf("%w: default disk: %w", common.ErrConfiguration, err)
	}
	return disks, nil
}
