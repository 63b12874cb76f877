// Package config loads the beamline configuration from a YAML file and the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/smartcontractkit/beamline/artifact/store"
	"github.com/smartcontractkit/beamline/build"
	"github.com/smartcontractkit/beamline/internal/secrets"
)

// Storage backends.
const (
	BackendS3    = "s3"
	BackendMinIO = "minio"
)

// AWSConfig selects the AWS account and region.
type AWSConfig struct {
	Region  string `mapstructure:"region" yaml:"region"`
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// StorageConfig is the configuration of the package store.
type StorageConfig struct {
	Backend      string            `mapstructure:"backend" yaml:"backend"`             // s3 or minio
	Bucket       string            `mapstructure:"bucket" yaml:"bucket"`               // Overrides the regional bucket name
	BucketPrefix string            `mapstructure:"bucket_prefix" yaml:"bucket_prefix"` // The regional bucket is <prefix>-<region>
	Channel      string            `mapstructure:"channel" yaml:"channel"`             // Key prefix of uploaded packages
	MinIO        store.MinIOConfig `mapstructure:"minio" yaml:"minio"`
}

// BucketName returns the bucket packages are uploaded to.
func (c StorageConfig) BucketName(region string) string {
	if c.Bucket != "" {
		return c.Bucket
	}

	return store.BucketName(c.BucketPrefix, region)
}

// FunctionConfig is the configuration applied to the released function.
type FunctionConfig struct {
	Handler      string        `mapstructure:"handler" yaml:"handler"`
	Role         string        `mapstructure:"role" yaml:"role"`
	Runtime      string        `mapstructure:"runtime" yaml:"runtime"`
	MemoryMB     int64         `mapstructure:"memory_mb" yaml:"memory_mb"`
	TimeoutSec   int64         `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	Description  string        `mapstructure:"description" yaml:"description"`
	Includes     []string      `mapstructure:"includes" yaml:"includes"`           // Paths packaged from the checkout
	SmokePayload string        `mapstructure:"smoke_payload" yaml:"smoke_payload"` // JSON payload sent by both smoke tests
	PollAttempts uint          `mapstructure:"poll_attempts" yaml:"poll_attempts"`
	PollDelay    time.Duration `mapstructure:"poll_delay" yaml:"poll_delay"`
}

// BuildConfig is the configuration of the build stage.
type BuildConfig struct {
	Steps   []build.Step  `mapstructure:"steps" yaml:"steps"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"` // Per step
}

// GitConfig is the configuration of the repository host.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type GitConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"` // Clone host, e.g. https://github.com
	APIURL  string `mapstructure:"api_url" yaml:"api_url"`   // GitHub Enterprise API URL. Empty means github.com
	Token   string `mapstructure:"token" yaml:"token"`       // Secret: may be a secretsmanager: reference
	Branch  string `mapstructure:"branch" yaml:"branch"`     // Branch to fetch. Empty means the remote default
	Base    string `mapstructure:"base" yaml:"base"`         // Target branch of pull requests
}

// NotifyConfig is the configuration of stage notifications.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type NotifyConfig struct {
	SlackWebhookURL string        `mapstructure:"slack_webhook_url" yaml:"slack_webhook_url"` // Secret: may be a secretsmanager: reference
	RelayFunction   string        `mapstructure:"relay_function" yaml:"relay_function"`       // Function that relays notifications
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// WorkspaceConfig is the configuration of the scratch directory.
type WorkspaceConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
}

// Config wraps the entire beamline configuration.
type Config struct {
	AWS       AWSConfig       `mapstructure:"aws" yaml:"aws"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Function  FunctionConfig  `mapstructure:"function" yaml:"function"`
	Build     BuildConfig     `mapstructure:"build" yaml:"build"`
	Git       GitConfig       `mapstructure:"git" yaml:"git"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
}

// Validate checks the values a run cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.AWS.Region == "" {
		errs = append(errs, errors.New("aws.region is required"))
	}
	if c.Function.Role == "" {
		errs = append(errs, errors.New("function.role is required"))
	}
	if c.Function.Handler == "" {
		errs = append(errs, errors.New("function.handler is required"))
	}
	if len(c.Function.Includes) == 0 {
		errs = append(errs, errors.New("function.includes must name at least one path"))
	}
	switch c.Storage.Backend {
	case BackendS3:
	case BackendMinIO:
		if err := c.Storage.MinIO.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("storage.minio: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of %s, %s", c.Storage.Backend, BackendS3, BackendMinIO))
	}
	if c.Workspace.Root == "" {
		errs = append(errs, errors.New("workspace.root is required"))
	}

	return errors.Join(errs...)
}

// BuildSteps returns the configured build steps, or build.DefaultSteps when none are set.
func (c *Config) BuildSteps() []build.Step {
	if len(c.Build.Steps) == 0 {
		return build.DefaultSteps
	}

	return c.Build.Steps
}

// secretFields returns the values that may hold secret references.
func (c *Config) secretFields() []*string {
	return []*string{&c.Git.Token, &c.Notify.SlackWebhookURL, &c.Storage.MinIO.SecretKey}
}

// HasSecretReferences reports whether any secret value references a secret store.
func (c *Config) HasSecretReferences() bool {
	for _, v := range c.secretFields() {
		if secrets.IsReference(*v) {
			return true
		}
	}

	return false
}

// ResolveSecrets replaces secret references with their values.
func (c *Config) ResolveSecrets(ctx context.Context, r *secrets.Resolver) error {
	if err := r.ResolveAll(ctx, c.secretFields()...); err != nil {
		return fmt.Errorf("failed to resolve secrets: %w", err)
	}

	return nil
}

// defaults mirrors the values the release pipeline has always used.
var defaults = map[string]any{
	"storage.backend":        BackendS3,
	"storage.bucket_prefix":  "beamline-bucket",
	"storage.channel":        store.DefaultChannel,
	"function.handler":       "index.handler",
	"function.runtime":       "nodejs20.x",
	"function.memory_mb":     128,
	"function.timeout_sec":   30,
	"function.description":   "Sample function",
	"function.includes":      []string{"index.js", "node_modules"},
	"function.smoke_payload": "{}",
	"function.poll_attempts": 60,
	"function.poll_delay":    "5s",
	"build.timeout":          "10m",
	"git.base_url":           "https://github.com",
	"git.base":               "develop",
	"notify.relay_function":  "slack-notify",
	"notify.timeout":         "10s",
	"workspace.root":         "/tmp/beamline",
}

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	// If the config file exists, we continue to read it, otherwise we fallback to using
	// environment variables
	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := newViper()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// LoadFile loads the config from a file.
func LoadFile(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

var (
	// envBindings maps a config key to the environment variables that can provide its value.
	//
	// The first element is the preferred name. The second, when present, is the name the
	// pipeline used before the BEAMLINE_ prefix was introduced.
	envBindings = map[string][]string{
		"aws.region":               {"BEAMLINE_AWS_REGION", "AWS_REGION"},
		"aws.profile":              {"BEAMLINE_AWS_PROFILE", "AWS_PROFILE"},
		"storage.backend":          {"BEAMLINE_STORAGE_BACKEND"},
		"storage.bucket":           {"BEAMLINE_STORAGE_BUCKET", "BUCKET_NAME"},
		"storage.channel":          {"BEAMLINE_STORAGE_CHANNEL"},
		"storage.minio.endpoint":   {"BEAMLINE_STORAGE_MINIO_ENDPOINT"},
		"storage.minio.access_key": {"BEAMLINE_STORAGE_MINIO_ACCESS_KEY"},
		"storage.minio.secret_key": {"BEAMLINE_STORAGE_MINIO_SECRET_KEY"},
		"function.role":            {"BEAMLINE_FUNCTION_ROLE", "LAMBDA_ROLE_ARN"},
		"function.runtime":         {"BEAMLINE_FUNCTION_RUNTIME"},
		"git.token":                {"BEAMLINE_GIT_TOKEN", "GIT_TOKEN"},
		"git.base_url":             {"BEAMLINE_GIT_BASE_URL"},
		"git.api_url":              {"BEAMLINE_GIT_API_URL"},
		"git.base":                 {"BEAMLINE_GIT_BASE"},
		"notify.slack_webhook_url": {"BEAMLINE_NOTIFY_SLACK_WEBHOOK_URL", "SLACK_WEBHOOK_URL"},
		"notify.relay_function":    {"BEAMLINE_NOTIFY_RELAY_FUNCTION"},
		"workspace.root":           {"BEAMLINE_WORKSPACE_ROOT"},
	}
)

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		// Prepend the env key to the start of the arguments
		inputs := slices.Insert(envs, 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
