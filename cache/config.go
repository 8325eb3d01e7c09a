package cache

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
)

// Config is the environment-facing form of Options.
type Config struct {
	Dir            string `env:"MEMOCACHE_DIR" envDefault:"~/.memocache"`
	Verbosity      int    `env:"MEMOCACHE_VERBOSE" envDefault:"1"`
	Disabled       bool   `env:"MEMOCACHE_DISABLE"`
	Compression    string `env:"MEMOCACHE_COMPRESSION" envDefault:"zstd"`
	OnStorageError string `env:"MEMOCACHE_ON_STORAGE_ERROR" envDefault:"propagate"`
	SingleFlight   bool   `env:"MEMOCACHE_SINGLE_FLIGHT"`
}

// LoadConfig reads Config from MEMOCACHE_* environment variables.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("cache: parse environment: %w", err)
	}
	return cfg, nil
}

// Options validates c and converts it. A leading "~" in Dir is expanded
// to the user's home directory.
func (c Config) Options() (Options, error) {
	dir, err := homedir.Expand(c.Dir)
	if err != nil {
		return Options{}, fmt.Errorf("cache: expand %q: %w", c.Dir, err)
	}
	comp, err := ParseCompression(c.Compression)
	if err != nil {
		return Options{}, err
	}
	policy, err := ParseStorageErrorPolicy(c.OnStorageError)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Dir:            dir,
		Verbosity:      c.Verbosity,
		Disabled:       c.Disabled,
		Codec:          GobCodec{Compression: comp},
		OnStorageError: policy,
		SingleFlight:   c.SingleFlight,
	}, nil
}

// NewFromEnv builds a Manager from the environment.
func NewFromEnv() (*Manager, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	opt, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return New(opt)
}
