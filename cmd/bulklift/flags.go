package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/bulklift/internal/config"
)

func addStoreFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.PersistentFlags()
	f.StringVar(&c.Container, "container", c.Container, "Remote container (bucket) name")
	f.StringVar(&c.Backend, "backend", c.Backend, "Object store backend: s3, swift or minio")
	f.StringVar(&c.Endpoint, "endpoint", c.Endpoint, "Storage URL (swift), host:port (minio) or custom S3 endpoint")
	f.StringVar(&c.Region, "region", c.Region, "Region (uses default if not specified)")
	f.StringVar(&c.Profile, "profile", c.Profile, "AWS profile to use")
	f.BoolVar(&c.PathStyle, "path-style", c.PathStyle, "Use path-style addressing for S3")
	f.BoolVar(&c.Insecure, "insecure", c.Insecure, "Use plain HTTP for minio")
	f.StringVar(&c.AuthToken, "auth-token", c.AuthToken, "Swift auth token")
	f.StringVar(&c.AccessKey, "access-key", c.AccessKey, "Static access key")
	f.StringVar(&c.SecretKey, "secret-key", c.SecretKey, "Static secret key")
	f.IntVar(&c.PageSize, "page-size", c.PageSize, "Objects requested per listing page")
	f.BoolVar(&c.Quiet, "quiet", c.Quiet, "Suppress non-error output")
	f.BoolVar(&c.Verbose, "verbose", c.Verbose, "Print debug output")
}

func addUploadFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	f.StringVarP(&c.Source, "source", "s", c.Source, "Local source directory")
	f.IntVar(&c.Concurrency, "concurrency", c.Concurrency, "Number of concurrent workers")
	f.IntVar(&c.ErrorRetry, "error-retry", c.ErrorRetry, "Attempts per object before it is recorded as failed")
	f.BoolVar(&c.DeleteRemote, "delete-remote", c.DeleteRemote, "Delete remote objects not present locally")
	f.BoolVar(&c.DryRun, "dryrun", c.DryRun, "Shows operations without executing")
	f.StringSliceVar(&c.Excludes, "exclude", c.Excludes, "Exclude patterns (multiple allowed)")
	f.StringVar(&c.ResultJSONFile, "result-json-file", c.ResultJSONFile, "Path to output result as JSON file")
	f.StringVar(&c.MetricsFile, "metrics-file", c.MetricsFile, "Path to write Prometheus textfile metrics")
}

// loadConfig reads the config file and applies every flag the user set
// explicitly on top of it.
func loadConfig(cmd *cobra.Command, path string, flags config.Config) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	fs := cmd.Flags()
	override := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	override("container", func() { cfg.Container = flags.Container })
	override("backend", func() { cfg.Backend = flags.Backend })
	override("endpoint", func() { cfg.Endpoint = flags.Endpoint })
	override("region", func() { cfg.Region = flags.Region })
	override("profile", func() { cfg.Profile = flags.Profile })
	override("path-style", func() { cfg.PathStyle = flags.PathStyle })
	override("insecure", func() { cfg.Insecure = flags.Insecure })
	override("auth-token", func() { cfg.AuthToken = flags.AuthToken })
	override("access-key", func() { cfg.AccessKey = flags.AccessKey })
	override("secret-key", func() { cfg.SecretKey = flags.SecretKey })
	override("page-size", func() { cfg.PageSize = flags.PageSize })
	override("quiet", func() { cfg.Quiet = flags.Quiet })
	override("verbose", func() { cfg.Verbose = flags.Verbose })
	override("source", func() { cfg.Source = flags.Source })
	override("concurrency", func() { cfg.Concurrency = flags.Concurrency })
	override("error-retry", func() { cfg.ErrorRetry = flags.ErrorRetry })
	override("delete-remote", func() { cfg.DeleteRemote = flags.DeleteRemote })
	override("dryrun", func() { cfg.DryRun = flags.DryRun })
	override("exclude", func() { cfg.Excludes = flags.Excludes })
	override("result-json-file", func() { cfg.ResultJSONFile = flags.ResultJSONFile })
	override("metrics-file", func() { cfg.MetricsFile = flags.MetricsFile })

	return cfg, nil
}
