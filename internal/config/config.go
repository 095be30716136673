package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "CLEANING"

// ConfigFileEnv names the variable that points at an optional YAML file.
const ConfigFileEnv = EnvPrefix + "_CONFIG_FILE"

// DefaultConfigFile is picked up from the working directory when present.
const DefaultConfigFile = "cleaning.yaml"

// Config represents the complete configuration of the cleaning step
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Tracking  TrackingConfig  `yaml:"tracking" envconfig:"TRACKING"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Events    EventsConfig    `yaml:"events" envconfig:"EVENTS"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/basic_cleaning.log" validate:"required_unless=Output console"`
}

// PathsConfig contains local filesystem locations used by a run
type PathsConfig struct {
	WorkDir    string `yaml:"work_dir" envconfig:"WORK_DIR" default:"." validate:"required"`
	OutputFile string `yaml:"output_file" envconfig:"OUTPUT_FILE" default:"clean_sample.csv" validate:"required"`
}

// TrackingConfig locates the run/artifact metadata store
type TrackingConfig struct {
	DSN     string `yaml:"dsn" envconfig:"DSN" default:"sqlite://.tracking/tracking.db" validate:"required"`
	Project string `yaml:"project" envconfig:"PROJECT" default:"nyc_airbnb" validate:"required"`
	Entity  string `yaml:"entity" envconfig:"ENTITY"`
}

// StorageConfig selects where artifact files live
type StorageConfig struct {
	Backend         string `yaml:"backend" envconfig:"BACKEND" default:"local" validate:"oneof=local gcs"`
	LocalDir        string `yaml:"local_dir" envconfig:"LOCAL_DIR" default:".tracking/blobs" validate:"required_if=Backend local"`
	Bucket          string `yaml:"bucket" envconfig:"BUCKET" validate:"required_if=Backend gcs"`
	Prefix          string `yaml:"prefix" envconfig:"PREFIX"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

// TelemetryConfig controls tracing and batch metrics
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none" validate:"oneof=stdout none"`
	PushgatewayURL string `yaml:"pushgateway_url" envconfig:"PUSHGATEWAY_URL" validate:"omitempty,url"`
	JobName        string `yaml:"job_name" envconfig:"JOB_NAME" default:"basic_cleaning" validate:"required"`
}

// EventsConfig configures the optional artifact-published notifications
type EventsConfig struct {
	Brokers string `yaml:"brokers" envconfig:"BROKERS"`
	Topic   string `yaml:"topic" envconfig:"TOPIC" default:"artifacts" validate:"required_with=Brokers"`
}

// BrokerList splits the comma separated broker list, dropping blanks.
func (e EventsConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Load loads configuration from environment variables and an optional YAML
// file. An explicitly set environment variable always wins over the file,
// and the file wins over built-in defaults.
func Load(configFile string) (*Config, error) {
	var envCfg Config

	if err := envconfig.Process(EnvPrefix, &envCfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg := envCfg
	if path := resolveConfigFile(configFile); path != "" {
		fileCfg, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", path, err)
		}
		cfg = mergeConfigs(*fileCfg, envCfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveConfigFile picks the explicit path, then the env override, then
// the default file in the working directory.
func resolveConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fromEnv := os.Getenv(ConfigFileEnv); fromEnv != "" {
		return fromEnv
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(file, env Config) Config {
	out := env

	out.Logging.Level = overlay("LOGGING_LEVEL", env.Logging.Level, file.Logging.Level)
	out.Logging.Format = overlay("LOGGING_FORMAT", env.Logging.Format, file.Logging.Format)
	out.Logging.Output = overlay("LOGGING_OUTPUT", env.Logging.Output, file.Logging.Output)
	out.Logging.FilePath = overlay("LOGGING_FILE_PATH", env.Logging.FilePath, file.Logging.FilePath)

	out.Paths.WorkDir = overlay("PATHS_WORK_DIR", env.Paths.WorkDir, file.Paths.WorkDir)
	out.Paths.OutputFile = overlay("PATHS_OUTPUT_FILE", env.Paths.OutputFile, file.Paths.OutputFile)

	out.Tracking.DSN = overlay("TRACKING_DSN", env.Tracking.DSN, file.Tracking.DSN)
	out.Tracking.Project = overlay("TRACKING_PROJECT", env.Tracking.Project, file.Tracking.Project)
	out.Tracking.Entity = overlay("TRACKING_ENTITY", env.Tracking.Entity, file.Tracking.Entity)

	out.Storage.Backend = overlay("STORAGE_BACKEND", env.Storage.Backend, file.Storage.Backend)
	out.Storage.LocalDir = overlay("STORAGE_LOCAL_DIR", env.Storage.LocalDir, file.Storage.LocalDir)
	out.Storage.Bucket = overlay("STORAGE_BUCKET", env.Storage.Bucket, file.Storage.Bucket)
	out.Storage.Prefix = overlay("STORAGE_PREFIX", env.Storage.Prefix, file.Storage.Prefix)
	out.Storage.CredentialsFile = overlay("STORAGE_CREDENTIALS_FILE", env.Storage.CredentialsFile, file.Storage.CredentialsFile)

	out.Telemetry.TraceExporter = overlay("TELEMETRY_TRACE_EXPORTER", env.Telemetry.TraceExporter, file.Telemetry.TraceExporter)
	out.Telemetry.PushgatewayURL = overlay("TELEMETRY_PUSHGATEWAY_URL", env.Telemetry.PushgatewayURL, file.Telemetry.PushgatewayURL)
	out.Telemetry.JobName = overlay("TELEMETRY_JOB_NAME", env.Telemetry.JobName, file.Telemetry.JobName)

	out.Events.Brokers = overlay("EVENTS_BROKERS", env.Events.Brokers, file.Events.Brokers)
	out.Events.Topic = overlay("EVENTS_TOPIC", env.Events.Topic, file.Events.Topic)

	return out
}

// overlay returns the env value when its variable is set, else the file
// value when non-zero, else the env value (which carries the default).
func overlay[T comparable](key string, envVal, fileVal T) T {
	if _, ok := os.LookupEnv(EnvPrefix + "_" + key); ok {
		return envVal
	}
	var zero T
	if fileVal != zero {
		return fileVal
	}
	return envVal
}
