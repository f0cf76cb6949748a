package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected  *Config
		name      string
		args      []string
		expectErr bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-r", "sqlite", "-d", "db", "-x", "-m", "1024",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
			"-k", "fhir/", "-l", "debug", "-t", "30s",
		},
			expected: &Config{
				EndpointAddrGRPC: "127.0.0.1:9090",
				DatabaseDriver:   "sqlite",
				DatabaseDSN:      "db",
				UseExternalBlobs: true,
				MaxBinarySize:    1024,
				S3RootUser:       "user",
				S3RootPassword:   "password",
				S3Bucket:         "bucket",
				S3Region:         "us-west-1",
				S3BaseEndpoint:   "http://endpoint",
				S3Prefix:         "fhir/",
				LogLevel:         "debug",
				ShutdownTimeout:  30 * time.Second,
			}},
		{name: "unrelated flags ignored", args: []string{"cmd", "-c", "x.json", "-z", "1", "-x=false"},
			expected: &Config{}},
		{name: "bad number", args: []string{"cmd", "-m", "lots"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}
			err := parseFlags(config)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
