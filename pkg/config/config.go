package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/archetype/pkg/registry"
	"github.com/openfroyo/archetype/pkg/repository"
	"github.com/openfroyo/archetype/pkg/telemetry"
)

const (
	// AppName is the application name.
	AppName = "archetype"

	// FileName is the configuration file name.
	FileName = "archetype.yaml"

	// EnvPrefix prefixes environment overrides, e.g. ARCHETYPE_LOCAL_REPOSITORY.
	EnvPrefix = "ARCHETYPE"

	// DatabaseFile is the history database inside the data directory.
	DatabaseFile = "archetype.db"
)

// Config is the archetype configuration.
type Config struct {
	// LocalRepository is the Maven local repository holding archetype jars.
	LocalRepository string `mapstructure:"local_repository" yaml:"local_repository" validate:"required"`

	// Catalogs lists the catalog sources searched in order.
	Catalogs []string `mapstructure:"catalogs" yaml:"catalogs" validate:"dive,required"`

	// RegistryFile is the archetype.xml registry used by create.
	RegistryFile string `mapstructure:"registry_file" yaml:"registry_file" validate:"required"`

	// Interactive enables prompting for missing values.
	Interactive bool `mapstructure:"interactive" yaml:"interactive"`

	// DataDir holds the history database.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`

	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Policy    PolicyConfig    `mapstructure:"policy" yaml:"policy"`
	Script    ScriptConfig    `mapstructure:"script" yaml:"script"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// HistoryConfig configures the run history.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Retention prunes runs older than this on startup; zero keeps everything.
	Retention time.Duration `mapstructure:"retention" yaml:"retention" validate:"gte=0"`
}

// PolicyConfig configures generation policies.
type PolicyConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Paths are extra .rego or .json policy files and directories.
	Paths []string `mapstructure:"paths" yaml:"paths"`

	// Enable and Disable override the enabled state of loaded policies by
	// name. Disable wins over Enable.
	Enable  []string `mapstructure:"enable" yaml:"enable,omitempty"`
	Disable []string `mapstructure:"disable" yaml:"disable,omitempty"`
}

// ScriptConfig configures post-generate scripts.
type ScriptConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

// TelemetryConfig holds the logging, metrics, and tracing sections.
type TelemetryConfig struct {
	Logging telemetry.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics telemetry.MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing telemetry.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// DefaultDir returns ~/.archetype.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, "."+AppName)
}

// DefaultConfig returns the configuration used when no file sets a value.
func DefaultConfig() *Config {
	tel := telemetry.DefaultConfig()
	return &Config{
		LocalRepository: repository.DefaultRoot(),
		Catalogs:        []string{"local", "internal"},
		RegistryFile:    registry.DefaultPath(),
		Interactive:     true,
		DataDir:         DefaultDir(),
		History: HistoryConfig{
			Enabled: true,
		},
		Policy: PolicyConfig{
			Enabled: true,
		},
		Script: ScriptConfig{
			Timeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Logging: tel.Logging,
			Metrics: tel.Metrics,
			Tracing: tel.Tracing,
		},
	}
}

// DatabasePath returns the history database path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, DatabaseFile)
}

// TelemetryFor builds the telemetry configuration for a service version.
func (c *Config) TelemetryFor(version string) *telemetry.Config {
	tel := telemetry.DefaultConfig()
	tel.ServiceVersion = version
	tel.Logging = c.Telemetry.Logging
	tel.Metrics = c.Telemetry.Metrics
	tel.Tracing = c.Telemetry.Tracing
	return tel
}

// LoadOptions controls where Load looks for the configuration file.
type LoadOptions struct {
	// ConfigFile is an explicit file; it must exist.
	ConfigFile string

	// SearchPaths are tried in order when ConfigFile is empty. Nil means
	// the working directory, then DefaultDir.
	SearchPaths []string
}

// Load reads the configuration: defaults, then the file (validated against
// the #Config schema), then ARCHETYPE_* environment overrides. It returns
// the file used, or "" when none was found.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}

	if path != "" {
		if err := loadFileIntoViper(ctx, v, NewSchemaRegistry(), path); err != nil {
			return nil, "", fmt.Errorf("load configuration %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, path, nil
}

func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		if !fileExists(opts.ConfigFile) {
			return "", fmt.Errorf("config file not found: %s", opts.ConfigFile)
		}
		return opts.ConfigFile, nil
	}

	search := opts.SearchPaths
	if search == nil {
		search = []string{".", DefaultDir()}
	}
	for _, dir := range search {
		candidate := filepath.Join(dir, FileName)
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// setDefaults registers every key so that environment overrides apply to
// keys the file does not mention.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("local_repository", d.LocalRepository)
	v.SetDefault("catalogs", d.Catalogs)
	v.SetDefault("registry_file", d.RegistryFile)
	v.SetDefault("interactive", d.Interactive)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.retention", d.History.Retention.String())
	v.SetDefault("policy.enabled", d.Policy.Enabled)
	v.SetDefault("policy.paths", d.Policy.Paths)
	v.SetDefault("policy.enable", d.Policy.Enable)
	v.SetDefault("policy.disable", d.Policy.Disable)
	v.SetDefault("script.timeout", d.Script.Timeout.String())

	l := d.Telemetry.Logging
	v.SetDefault("telemetry.logging.level", l.Level)
	v.SetDefault("telemetry.logging.format", l.Format)
	v.SetDefault("telemetry.logging.output", l.Output)
	v.SetDefault("telemetry.logging.caller", l.EnableCaller)
	v.SetDefault("telemetry.logging.time_format", l.TimeFormat)

	m := d.Telemetry.Metrics
	v.SetDefault("telemetry.metrics.enabled", m.Enabled)
	v.SetDefault("telemetry.metrics.textfile", m.Textfile)
	v.SetDefault("telemetry.metrics.namespace", m.Namespace)
	v.SetDefault("telemetry.metrics.buckets", m.DefaultHistogramBuckets)

	t := d.Telemetry.Tracing
	v.SetDefault("telemetry.tracing.enabled", t.Enabled)
	v.SetDefault("telemetry.tracing.exporter", t.Exporter)
	v.SetDefault("telemetry.tracing.endpoint", t.Endpoint)
	v.SetDefault("telemetry.tracing.sampling_rate", t.SamplingRate)
	v.SetDefault("telemetry.tracing.max_export_batch_size", t.MaxExportBatchSize)
	v.SetDefault("telemetry.tracing.export_timeout", t.ExportTimeout.String())
	v.SetDefault("telemetry.tracing.insecure", t.Insecure)
}

// loadFileIntoViper parses a YAML file, validates it against the #Config
// schema, and merges it into v over the defaults.
func loadFileIntoViper(ctx context.Context, v *viper.Viper, schemas *SchemaRegistry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	doc := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	if err := schemas.ValidateConfig(ctx, doc); err != nil {
		return err
	}

	if err := v.MergeConfigMap(doc); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// Validate checks struct constraints and the telemetry settings.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				result = multierror.Append(result, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			result = multierror.Append(result, err)
		}
	}

	if err := c.TelemetryFor("").Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) expandPaths() {
	c.LocalRepository = expandHome(c.LocalRepository)
	c.RegistryFile = expandHome(c.RegistryFile)
	c.DataDir = expandHome(c.DataDir)
	c.Telemetry.Metrics.Textfile = expandHome(c.Telemetry.Metrics.Textfile)
	for i, p := range c.Policy.Paths {
		c.Policy.Paths[i] = expandHome(p)
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Write saves cfg as YAML. An existing file is kept unless force is set.
func Write(path string, cfg *Config, force bool) error {
	if !force && fileExists(path) {
		return fmt.Errorf("config file %s already exists", path)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := append([]byte("# archetype configuration\n"), data...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// UpdateFile applies fn to the YAML document at path and writes it back.
// A missing file starts as an empty document. Keys fn leaves alone keep
// their written form; the result must still match the #Config schema.
func UpdateFile(ctx context.Context, path string, fn func(doc map[string]interface{})) error {
	doc := map[string]interface{}{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fn(doc)

	if err := NewSchemaRegistry().ValidateConfig(ctx, doc); err != nil {
		return fmt.Errorf("refusing to write %s: %w", path, err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	content := append([]byte("# archetype configuration\n"), out...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
