package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"ducklint/internal/paths"
)

// CurrentVersion is the config schema version this build reads and writes.
const CurrentVersion = 1

// Config represents the complete ducklint configuration
type Config struct {
	Version int `json:"version" toml:"version" mapstructure:"version"`

	Inspections InspectionsConfig `json:"inspections" toml:"inspections" mapstructure:"inspections"`
	QuickFix    QuickFixConfig    `json:"quickFix" toml:"quickFix" mapstructure:"quickFix"`
	Parser      ParserConfig      `json:"parser" toml:"parser" mapstructure:"parser"`
	Watch       WatchConfig       `json:"watch" toml:"watch" mapstructure:"watch"`
	Journal     JournalConfig     `json:"journal" toml:"journal" mapstructure:"journal"`
	Output      OutputConfig      `json:"output" toml:"output" mapstructure:"output"`
	Logging     LoggingConfig     `json:"logging" toml:"logging" mapstructure:"logging"`
}

// InspectionsConfig controls which inspections run and how they are tuned
type InspectionsConfig struct {
	// InterfaceMemberThreshold is the largest public member count an
	// interface may have before ExcessiveInterfaceMembers reports it.
	InterfaceMemberThreshold int      `json:"interfaceMemberThreshold" toml:"interfaceMemberThreshold" mapstructure:"interfaceMemberThreshold"`
	Disabled                 []string `json:"disabled" toml:"disabled" mapstructure:"disabled"`
	MinSeverity              string   `json:"minSeverity" toml:"minSeverity" mapstructure:"minSeverity"`
}

// QuickFixConfig contains quick-fix defaults
type QuickFixConfig struct {
	DefaultScope string   `json:"defaultScope" toml:"defaultScope" mapstructure:"defaultScope"`
	Disabled     []string `json:"disabled" toml:"disabled" mapstructure:"disabled"`
}

// ParserConfig contains parser settings
type ParserConfig struct {
	// Jobs bounds how many modules are parsed at once. 0 means GOMAXPROCS.
	Jobs int `json:"jobs" toml:"jobs" mapstructure:"jobs"`
}

// WatchConfig contains file watcher settings
type WatchConfig struct {
	DebounceMs int      `json:"debounceMs" toml:"debounceMs" mapstructure:"debounceMs"`
	Include    []string `json:"include" toml:"include" mapstructure:"include"`
	Exclude    []string `json:"exclude" toml:"exclude" mapstructure:"exclude"`
}

// JournalConfig contains rewrite journal settings
type JournalConfig struct {
	Enabled bool `json:"enabled" toml:"enabled" mapstructure:"enabled"`
	// Retain is how many sessions are kept. 0 keeps everything.
	Retain int `json:"retain" toml:"retain" mapstructure:"retain"`
}

// OutputConfig contains CLI output settings
type OutputConfig struct {
	Format string `json:"format" toml:"format" mapstructure:"format"`
	Color  bool   `json:"color" toml:"color" mapstructure:"color"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" toml:"format" mapstructure:"format"`
	Level      string `json:"level" toml:"level" mapstructure:"level"`
	MaxSize    string `json:"maxSize" toml:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" toml:"maxBackups" mapstructure:"maxBackups"`
	Watch      string `json:"watch,omitempty" toml:"watch,omitempty" mapstructure:"watch"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Inspections: InspectionsConfig{
			InterfaceMemberThreshold: 10,
			Disabled:                 []string{},
			MinSeverity:              "hint",
		},
		QuickFix: QuickFixConfig{
			DefaultScope: "module",
			Disabled:     []string{},
		},
		Watch: WatchConfig{
			DebounceMs: 300,
			Include:    []string{"**/*.bas", "**/*.cls", "**/*.frm", "vbaproject.toml"},
			Exclude:    []string{paths.DirName + "/**", "**/~$*"},
		},
		Journal: JournalConfig{
			Enabled: true,
			Retain:  200,
		},
		Output: OutputConfig{
			Format: "human",
			Color:  true,
		},
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// envBindings maps supported environment variables to config keys.
var envBindings = map[string]string{
	"DUCKLINT_INTERFACE_MEMBER_THRESHOLD": "inspections.interfaceMemberThreshold",
	"DUCKLINT_DISABLED_INSPECTIONS":       "inspections.disabled",
	"DUCKLINT_PARSER_JOBS":                "parser.jobs",
	"DUCKLINT_WATCH_DEBOUNCE_MS":          "watch.debounceMs",
	"DUCKLINT_JOURNAL_ENABLED":            "journal.enabled",
	"DUCKLINT_OUTPUT_FORMAT":              "output.format",
	"DUCKLINT_LOG_LEVEL":                  "logging.level",
	"DUCKLINT_LOG_FORMAT":                 "logging.format",
}

// SupportedEnvVars returns the environment variables LoadConfig honours.
func SupportedEnvVars() map[string]string {
	out := make(map[string]string, len(envBindings))
	for k, v := range envBindings {
		out[k] = v
	}
	return out
}

// LoadResult describes where a configuration came from
type LoadResult struct {
	Config       *Config
	ConfigPath   string
	UsedDefaults bool
}

// LoadConfig loads configuration from .ducklint/config.json or
// .ducklint/config.toml. Missing files yield defaults; environment variables
// override both.
func LoadConfig(projectRoot string) (*Config, error) {
	res, err := LoadConfigWithDetails(projectRoot)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadConfigWithDetails is LoadConfig that also reports the file used.
func LoadConfigWithDetails(projectRoot string) (*LoadResult, error) {
	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath(paths.StateDir(projectRoot))

	res := &LoadResult{}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		res.UsedDefaults = true
	} else {
		res.ConfigPath = v.ConfigFileUsed()
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	res.Config = cfg
	return res, nil
}

// LoadConfigFromPath loads a config file at an explicit path. The format
// follows the file extension.
func LoadConfigFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	for env, key := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("inspections.interfaceMemberThreshold", d.Inspections.InterfaceMemberThreshold)
	v.SetDefault("inspections.disabled", d.Inspections.Disabled)
	v.SetDefault("inspections.minSeverity", d.Inspections.MinSeverity)
	v.SetDefault("quickFix.defaultScope", d.QuickFix.DefaultScope)
	v.SetDefault("quickFix.disabled", d.QuickFix.Disabled)
	v.SetDefault("parser.jobs", d.Parser.Jobs)
	v.SetDefault("watch.debounceMs", d.Watch.DebounceMs)
	v.SetDefault("watch.include", d.Watch.Include)
	v.SetDefault("watch.exclude", d.Watch.Exclude)
	v.SetDefault("journal.enabled", d.Journal.Enabled)
	v.SetDefault("journal.retain", d.Journal.Retain)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.color", d.Output.Color)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
	v.SetDefault("logging.watch", d.Logging.Watch)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to .ducklint/config.toml
func (c *Config) Save(projectRoot string) error {
	if _, err := paths.EnsureStateDir(projectRoot); err != nil {
		return err
	}
	return c.SaveTo(paths.ConfigPath(projectRoot))
}

// SaveTo writes the configuration as TOML to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var (
	validSeverities = []string{"error", "warning", "suggestion", "hint"}
	validScopes     = []string{"result", "procedure", "module", "project", "all"}
	validLevels     = []string{"debug", "info", "warn", "warning", "error"}
	validFormats    = []string{"human", "json", "yaml"}
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if c.Inspections.InterfaceMemberThreshold < 0 {
		return &ConfigError{Field: "inspections.interfaceMemberThreshold", Message: "must not be negative"}
	}
	if !oneOf(c.Inspections.MinSeverity, validSeverities) {
		return &ConfigError{Field: "inspections.minSeverity", Message: "must be one of " + strings.Join(validSeverities, ", ")}
	}
	if !oneOf(c.QuickFix.DefaultScope, validScopes) {
		return &ConfigError{Field: "quickFix.defaultScope", Message: "must be one of " + strings.Join(validScopes, ", ")}
	}
	if c.Parser.Jobs < 0 {
		return &ConfigError{Field: "parser.jobs", Message: "must not be negative"}
	}
	if c.Watch.DebounceMs < 0 {
		return &ConfigError{Field: "watch.debounceMs", Message: "must not be negative"}
	}
	if c.Journal.Retain < 0 {
		return &ConfigError{Field: "journal.retain", Message: "must not be negative"}
	}
	if !oneOf(c.Output.Format, validFormats) {
		return &ConfigError{Field: "output.format", Message: "must be one of " + strings.Join(validFormats, ", ")}
	}
	if !oneOf(c.Logging.Level, validLevels) {
		return &ConfigError{Field: "logging.level", Message: "must be one of debug, info, warn, error"}
	}
	if c.Logging.Watch != "" && !oneOf(c.Logging.Watch, validLevels) {
		return &ConfigError{Field: "logging.watch", Message: "must be one of debug, info, warn, error"}
	}
	if c.Logging.Format != "human" && c.Logging.Format != "json" {
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	return nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return true
		}
	}
	return false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
