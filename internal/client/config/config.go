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

// Config holds runtime settings for the estately CLI.
type Config struct {
	ServerURL   string
	SessionFile string
	// Persona is sent as X-Active-Persona. UI state only.
	Persona string
	Timeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.SessionFile = defaultSessionFile()
	c.Persona = ""
	c.Timeout = 10 * time.Second
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "estately", "session.json")
}

// FileConfig is the on-disk shape of Config.
type FileConfig struct {
	ServerURL   string         `json:"server_url" yaml:"server_url"`
	SessionFile string         `json:"session_file" yaml:"session_file"`
	Persona     string         `json:"persona" yaml:"persona"`
	Timeout     timex.Duration `json:"timeout" yaml:"timeout"`
}

// LoadFile overlays c with the non-empty values of a JSON (.json) or YAML
// (.yml, .yaml) file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.ServerURL != "" {
		c.ServerURL = fc.ServerURL
	}
	if fc.SessionFile != "" {
		c.SessionFile = fc.SessionFile
	}
	if fc.Persona != "" {
		c.Persona = fc.Persona
	}
	if fc.Timeout.Duration > 0 {
		c.Timeout = fc.Timeout.Duration
	}
	return nil
}
