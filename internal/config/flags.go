package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/paperclip/internal/flagx"
)

var valueFlags = []string{
	"-d", "-k", "-r", "-l", "-s", "-t",
	"-u", "-p", "-b", "-g", "-e", "-w",
	"-a", "-n", "-v", "-f",
}

var fileFlags = []string{"-c", "--c", "-config", "--config"}

// FlagNames lists every flag consumed by LoadConfig, the JSON file flags
// included. Callers with their own flag parser strip these first.
func FlagNames() []string {
	names := make([]string, 0, len(valueFlags)+len(fileFlags))
	names = append(names, valueFlags...)
	return append(names, fileFlags...)
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-k string   default disk ("local" or "s3")
//	-r string   local disk root directory
//	-l string   local disk base URL
//	-s string   HS256 key for signed local URLs
//	-t int      signed URL validity, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-w string   S3 public URL prefix
//	-a string   attachment definitions file
//	-n int      processing workers per upload
//	-v string   log level
//	-f string   log format ("text" or "json")
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, valueFlags)

	fs := flag.NewFlagSet("paperclip", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DefaultDisk, "k", config.DefaultDisk, "default disk")
	fs.StringVar(&config.LocalRoot, "r", config.LocalRoot, "local disk root")
	fs.StringVar(&config.LocalBaseURL, "l", config.LocalBaseURL, "local disk base URL")
	fs.StringVar(&config.URLSigningKey, "s", config.URLSigningKey, "URL signing key")

	urlValidity := fs.Int("t", int(config.URLValidity.Minutes()), "signed URL validity (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicURL, "w", config.S3PublicURL, "S3 public URL")
	fs.StringVar(&config.AttachmentsFile, "a", config.AttachmentsFile, "attachment definitions file")
	fs.IntVar(&config.ProcessingWorkers, "n", config.ProcessingWorkers, "processing workers")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.URLValidity = time.Duration(*urlValidity) * time.Minute
	return nil
}
