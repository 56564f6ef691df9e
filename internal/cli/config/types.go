// Package config provides configuration management for the leapmix CLI.
//
// Configuration is layered with koanf: built-in defaults, then leapmix.yaml,
// then LEAPMIX_* environment variables, then explicitly set flags.
package config

import (
	"github.com/leapstack-labs/leapmix/internal/objectstore"
)

// Config holds all CLI configuration options.
type Config struct {
	SourcesDir   string    `koanf:"sources_dir"`
	RecipesDir   string    `koanf:"recipes_dir"`
	OutputDir    string    `koanf:"output_dir"`
	CacheDir     string    `koanf:"cache_dir"`
	StatePath    string    `koanf:"state_path"`
	Verbose      bool      `koanf:"verbose"`
	OutputFormat string    `koanf:"output"`
	Workers      int       `koanf:"workers"`
	Seed         uint64    `koanf:"seed"`
	Hub          HubConfig `koanf:"hub"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// HubConfig configures the S3-compatible object store backing hub sources.
type HubConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// ObjectStore converts the hub section to an object store configuration.
// It returns nil when no endpoint is configured.
func (h HubConfig) ObjectStore() *objectstore.Config {
	cfg := objectstore.Config{
		Endpoint:  h.Endpoint,
		AccessKey: h.AccessKey,
		SecretKey: h.SecretKey,
		Region:    h.Region,
		Bucket:    h.Bucket,
		UseSSL:    h.UseSSL,
	}
	if !cfg.Enabled() {
		return nil
	}
	return &cfg
}
