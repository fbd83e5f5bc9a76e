package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/paperclip/internal/flagx"
	"github.com/dmitrijs2005/paperclip/internal/timex"
)

// JsonConfig is the on-disk shape of the -c/-config file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	DatabaseDSN       string         `json:"database_dsn"`
	DefaultDisk       string         `json:"default_disk"`
	LocalRoot         string         `json:"local_root"`
	LocalBaseURL      string         `json:"local_base_url"`
	URLSigningKey     string         `json:"url_signing_key"`
	URLValidity       timex.Duration `json:"url_validity"`
	S3RootUser        string         `json:"s3_root_user"`
	S3RootPassword    string         `json:"s3_root_password"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	S3PublicURL       string         `json:"s3_public_url"`
	PresignCacheSize  int            `json:"presign_cache_size"`
	AttachmentsFile   string         `json:"attachments_file"`
	MaxUploadSize     int64          `json:"max_upload_size"`
	DownloadTimeout   timex.Duration `json:"download_timeout"`
	ProcessingWorkers int            `json:"processing_workers"`
	LogLevel          string         `json:"log_level"`
	LogFormat         string         `json:"log_format"`
}

// parseJson overlays the JSON file named by -c/-config onto config. Only keys
// present in the file with a non-zero value replace the current settings, so
// a partial file keeps the defaults and environment for everything else.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.DefaultDisk, c.DefaultDisk)
	setString(&config.LocalRoot, c.LocalRoot)
	setString(&config.LocalBaseURL, c.LocalBaseURL)
	setString(&config.URLSigningKey, c.URLSigningKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicURL, c.S3PublicURL)
	setString(&config.AttachmentsFile, c.AttachmentsFile)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	if c.URLValidity.Duration > 0 {
		config.URLValidity = c.URLValidity.Duration
	}
	if c.DownloadTimeout.Duration > 0 {
		config.DownloadTimeout = c.DownloadTimeout.Duration
	}
	if c.PresignCacheSize > 0 {
		config.PresignCacheSize = c.PresignCacheSize
	}
	if c.MaxUploadSize > 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}
	if c.ProcessingWorkers > 0 {
		config.ProcessingWorkers = c.ProcessingWorkers
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
