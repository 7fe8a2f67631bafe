package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yuya-takeyama/bulklift/pkg/lister"
)

const (
	BackendS3    = "s3"
	BackendSwift = "swift"
	BackendMinio = "minio"
)

// Config holds the options of one run.
//
// YAML example:
//
//	container: backups
//	source: ./data
//	concurrency: 50
//	error_retry: 5
//	delete_remote: true
//	backend: swift
//	endpoint: https://storage.example.com/v1/AUTH_account
//	exclude:
//	  - "**/*.tmp"
//
// Environment overrides:
//
//	BULKLIFT_AUTH_TOKEN overrides AuthToken.
//	BULKLIFT_ACCESS_KEY and BULKLIFT_SECRET_KEY override the static key pair.
type Config struct {
	Container    string `yaml:"container"`
	Source       string `yaml:"source"`
	Concurrency  int    `yaml:"concurrency"`
	ErrorRetry   int    `yaml:"error_retry"`
	DeleteRemote bool   `yaml:"delete_remote"`
	Quiet        bool   `yaml:"quiet"`
	Verbose      bool   `yaml:"verbose"`
	DryRun       bool   `yaml:"dry_run"`

	Backend   string `yaml:"backend"`  // "s3", "swift" or "minio"
	Endpoint  string `yaml:"endpoint"` // storage URL for swift, host:port for minio
	Region    string `yaml:"region,omitempty"`
	Profile   string `yaml:"profile,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
	Insecure  bool   `yaml:"insecure,omitempty"`
	AuthToken string `yaml:"auth_token,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`

	Excludes       []string `yaml:"exclude,omitempty"`
	PageSize       int      `yaml:"page_size,omitempty"`
	ResultJSONFile string   `yaml:"result_json_file,omitempty"`
	MetricsFile    string   `yaml:"metrics_file,omitempty"`
}

func Default() Config {
	return Config{
		Concurrency: 50,
		ErrorRetry:  5,
		Backend:     BackendS3,
		PageSize:    lister.DefaultPageSize,
	}
}

// Load reads path on top of Default. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return applyEnvOverrides(cfg), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return applyEnvOverrides(cfg), nil
}

func applyEnvOverrides(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv("BULKLIFT_AUTH_TOKEN")); v != "" {
		cfg.AuthToken = v
	}
	if v := strings.TrimSpace(os.Getenv("BULKLIFT_ACCESS_KEY")); v != "" {
		cfg.AccessKey = v
	}
	if v := strings.TrimSpace(os.Getenv("BULKLIFT_SECRET_KEY")); v != "" {
		cfg.SecretKey = v
	}
	return cfg
}

// Validate checks the options needed by an upload run.
func (c Config) Validate() error {
	var errs []error
	if err := c.ValidateStore(); err != nil {
		errs = append(errs, err)
	}
	if c.Source == "" {
		errs = append(errs, errors.New("source directory is required"))
	} else if info, err := os.Stat(c.Source); err != nil {
		errs = append(errs, fmt.Errorf("source directory: %w", err))
	} else if !info.IsDir() {
		errs = append(errs, fmt.Errorf("source %s is not a directory", c.Source))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.ErrorRetry < 1 {
		errs = append(errs, fmt.Errorf("error_retry must be at least 1, got %d", c.ErrorRetry))
	}
	if c.PageSize < 0 {
		errs = append(errs, fmt.Errorf("page_size must not be negative, got %d", c.PageSize))
	}
	return errors.Join(errs...)
}

// ValidateStore checks only what is needed to talk to the container.
func (c Config) ValidateStore() error {
	var errs []error
	if c.Container == "" {
		errs = append(errs, errors.New("container is required"))
	}
	switch c.Backend {
	case BackendS3:
	case BackendSwift:
		if c.Endpoint == "" {
			errs = append(errs, errors.New("swift backend requires an endpoint (storage URL)"))
		}
		if c.AuthToken == "" {
			errs = append(errs, errors.New("swift backend requires an auth token"))
		}
	case BackendMinio:
		if c.Endpoint == "" {
			errs = append(errs, errors.New("minio backend requires an endpoint"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	return errors.Join(errs...)
}
