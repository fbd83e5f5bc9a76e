package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variables read by parseEnv. Unset or empty variables leave the
// current value in place.
const (
	envDatabaseDSN       = "PAPERCLIP_DATABASE_DSN"
	envDefaultDisk       = "PAPERCLIP_DEFAULT_DISK"
	envLocalRoot         = "PAPERCLIP_LOCAL_ROOT"
	envLocalBaseURL      = "PAPERCLIP_LOCAL_BASE_URL"
	envURLSigningKey     = "PAPERCLIP_URL_SIGNING_KEY"
	envURLValidity       = "PAPERCLIP_URL_VALIDITY"
	envS3RootUser        = "PAPERCLIP_S3_ROOT_USER"
	envS3RootPassword    = "PAPERCLIP_S3_ROOT_PASSWORD"
	envS3Bucket          = "PAPERCLIP_S3_BUCKET"
	envS3Region          = "PAPERCLIP_S3_REGION"
	envS3BaseEndpoint    = "PAPERCLIP_S3_BASE_ENDPOINT"
	envS3PublicURL       = "PAPERCLIP_S3_PUBLIC_URL"
	envPresignCacheSize  = "PAPERCLIP_PRESIGN_CACHE_SIZE"
	envAttachmentsFile   = "PAPERCLIP_ATTACHMENTS_FILE"
	envMaxUploadSize     = "PAPERCLIP_MAX_UPLOAD_SIZE"
	envDownloadTimeout   = "PAPERCLIP_DOWNLOAD_TIMEOUT"
	envProcessingWorkers = "PAPERCLIP_PROCESSING_WORKERS"
	envLogLevel          = "PAPERCLIP_LOG_LEVEL"
	envLogFormat         = "PAPERCLIP_LOG_FORMAT"
)

func parseEnv(c *Config) error {
	var err error

	c.DatabaseDSN = getEnvDefault(envDatabaseDSN, c.DatabaseDSN)
	c.DefaultDisk = getEnvDefault(envDefaultDisk, c.DefaultDisk)
	c.LocalRoot = getEnvDefault(envLocalRoot, c.LocalRoot)
	c.LocalBaseURL = getEnvDefault(envLocalBaseURL, c.LocalBaseURL)
	c.URLSigningKey = getEnvDefault(envURLSigningKey, c.URLSigningKey)
	c.S3RootUser = getEnvDefault(envS3RootUser, c.S3RootUser)
	c.S3RootPassword = getEnvDefault(envS3RootPassword, c.S3RootPassword)
	c.S3Bucket = getEnvDefault(envS3Bucket, c.S3Bucket)
	c.S3Region = getEnvDefault(envS3Region, c.S3Region)
	c.S3BaseEndpoint = getEnvDefault(envS3BaseEndpoint, c.S3BaseEndpoint)
	c.S3PublicURL = getEnvDefault(envS3PublicURL, c.S3PublicURL)
	c.AttachmentsFile = getEnvDefault(envAttachmentsFile, c.AttachmentsFile)
	c.LogLevel = getEnvDefault(envLogLevel, c.LogLevel)
	c.LogFormat = getEnvDefault(envLogFormat, c.LogFormat)

	if c.URLValidity, err = getEnvDuration(envURLValidity, c.URLValidity); err != nil {
		return err
	}
	if c.DownloadTimeout, err = getEnvDuration(envDownloadTimeout, c.DownloadTimeout); err != nil {
		return err
	}
	if c.PresignCacheSize, err = getEnvInt(envPresignCacheSize, c.PresignCacheSize); err != nil {
		return err
	}
	if c.ProcessingWorkers, err = getEnvInt(envProcessingWorkers, c.ProcessingWorkers); err != nil {
		return err
	}
	if c.MaxUploadSize, err = getEnvInt64(envMaxUploadSize, c.MaxUploadSize); err != nil {
		return err
	}

	return nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, val)
	}
	return n, nil
}

// getEnvDuration accepts Go duration strings such as "30s" or "15m".
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, val)
	}
	return d, nil
}
