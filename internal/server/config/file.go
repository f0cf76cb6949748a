package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/fhirkeeper/internal/flagx"
	"github.com/dmitrijs2005/fhirkeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Durations accept
// either a string such as "10s" or integer nanoseconds.
//
// Keys missing from the file keep the value they had before the overlay.
type FileConfig struct {
	EndpointAddrGRPC string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDriver   string         `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN      string         `json:"database_dsn" yaml:"database_dsn"`
	UseExternalBlobs bool           `json:"use_external_blobs" yaml:"use_external_blobs"`
	MaxBinarySize    int64          `json:"max_binary_size" yaml:"max_binary_size"`
	S3RootUser       string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region         string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3Prefix         string         `json:"s3_prefix" yaml:"s3_prefix"`
	LogLevel         string         `json:"log_level" yaml:"log_level"`
	ShutdownTimeout  timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// parseFile overlays values from the file named by -c or -config.
// Files ending in .yaml or .yml are read as YAML, anything else as JSON.
// Without either flag nothing is loaded.
func parseFile(config *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := fromConfig(config)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func fromConfig(config *Config) *FileConfig {
	return &FileConfig{
		EndpointAddrGRPC: config.EndpointAddrGRPC,
		DatabaseDriver:   config.DatabaseDriver,
		DatabaseDSN:      config.DatabaseDSN,
		UseExternalBlobs: config.UseExternalBlobs,
		MaxBinarySize:    config.MaxBinarySize,
		S3RootUser:       config.S3RootUser,
		S3RootPassword:   config.S3RootPassword,
		S3Bucket:         config.S3Bucket,
		S3Region:         config.S3Region,
		S3BaseEndpoint:   config.S3BaseEndpoint,
		S3Prefix:         config.S3Prefix,
		LogLevel:         config.LogLevel,
		ShutdownTimeout:  timex.Duration{Duration: config.ShutdownTimeout},
	}
}

func (c *FileConfig) apply(config *Config) {
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDriver = c.DatabaseDriver
	config.DatabaseDSN = c.DatabaseDSN
	config.UseExternalBlobs = c.UseExternalBlobs
	config.MaxBinarySize = c.MaxBinarySize
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3Prefix = c.S3Prefix
	config.LogLevel = c.LogLevel
	config.ShutdownTimeout = c.ShutdownTimeout.Duration
}
