package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/estately/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Durations accept Go
// duration strings such as "15m" as well as integer nanoseconds. Fields left
// out of the file keep their previous values.
type FileConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                    string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	Environment                  string         `json:"environment" yaml:"environment"`
	SessionBackend               string         `json:"session_backend" yaml:"session_backend"`
	RedisAddr                    string         `json:"redis_addr" yaml:"redis_addr"`
	LogBackend                   string         `json:"log_backend" yaml:"log_backend"`
	Debug                        bool           `json:"debug" yaml:"debug"`
	BcryptCost                   int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	HashWorkers                  int            `json:"hash_workers" yaml:"hash_workers"`
	LoginRatePerMinute           int            `json:"login_rate_per_minute" yaml:"login_rate_per_minute"`
	LoginBurst                   int            `json:"login_burst" yaml:"login_burst"`
	HealthCheckInterval          timex.Duration `json:"health_check_interval" yaml:"health_check_interval"`
	ReadTimeout                  timex.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout                 timex.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout                  timex.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout              timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// parseFile overlays values from a JSON (.json) or YAML (.yml, .yaml) file.
func parseFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setString(&config.Environment, c.Environment)
	setString(&config.SessionBackend, c.SessionBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.LogBackend, c.LogBackend)
	if c.Debug {
		config.Debug = true
	}
	setInt(&config.BcryptCost, c.BcryptCost)
	setInt(&config.HashWorkers, c.HashWorkers)
	setInt(&config.LoginRatePerMinute, c.LoginRatePerMinute)
	setInt(&config.LoginBurst, c.LoginBurst)
	setDuration(&config.HealthCheckInterval, c.HealthCheckInterval)
	setDuration(&config.ReadTimeout, c.ReadTimeout)
	setDuration(&config.WriteTimeout, c.WriteTimeout)
	setDuration(&config.IdleTimeout, c.IdleTimeout)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)
}
