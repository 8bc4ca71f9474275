package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected func(c *Config)
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:9090", "-g", ":6000", "-d", "db", "-s", "secret",
				"-t", "1", "-r", "3", "-e", "production", "-b", "redis", "-R", "cache:6379", "-l", "zap", "-debug",
			},
			expected: func(c *Config) {
				c.EndpointAddrHTTP = "127.0.0.1:9090"
				c.EndpointAddrGRPC = ":6000"
				c.DatabaseDSN = "db"
				c.SecretKey = "secret"
				c.AccessTokenValidityDuration = 1 * time.Minute
				c.RefreshTokenValidityDuration = 3 * time.Minute
				c.Environment = "production"
				c.SessionBackend = "redis"
				c.RedisAddr = "cache:6379"
				c.LogBackend = "zap"
				c.Debug = true
			},
		},
		{
			name:     "unknown flags are ignored",
			args:     []string{"-c", "file.json", "-x", "y", "-a", ":1"},
			expected: func(c *Config) { c.EndpointAddrHTTP = ":1" },
		},
		{
			name:     "equals form",
			args:     []string{"-s=abc"},
			expected: func(c *Config) { c.SecretKey = "abc" },
		},
		{
			name:    "bad integer",
			args:    []string{"-r", "week"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := defaults()
			err := parseFlags(got, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			want := defaults()
			tt.expected(want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
