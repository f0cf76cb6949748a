package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/fhirkeeper/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     gRPC bind address (e.g., ":50051")
//	-r string     database driver ("pgx" or "sqlite")
//	-d string     database DSN
//	-x bool       store binaries externally (use -x or -x=false)
//	-m int        max binary size in bytes, 0 for unlimited
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket name
//	-g string     S3 region
//	-e string     S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-k string     S3 key prefix
//	-l string     log level
//	-t duration   graceful shutdown timeout (e.g., "15s")
//
// os.Args is first filtered to the flags above with flagx.FilterArgs.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-r", "-d", "-x", "-m", "-u", "-p", "-b", "-g", "-e", "-k", "-l", "-t",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDriver, "r", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.BoolVar(&config.UseExternalBlobs, "x", config.UseExternalBlobs, "store binaries in the blob store")
	fs.Int64Var(&config.MaxBinarySize, "m", config.MaxBinarySize, "max binary size in bytes")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3Prefix, "k", config.S3Prefix, "S3 key prefix")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.DurationVar(&config.ShutdownTimeout, "t", config.ShutdownTimeout, "graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
