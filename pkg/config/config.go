// Package config loads frost's process-level properties (the
// Default/ACM/ThreadPool/Trace/Warn property groups) layered the usual way:
// viper for file/env/flag precedence, mapstructure decode hooks for
// time.Duration and byte sizes, and struct-tag validation before the
// properties are handed to a Communicator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/frostrpc/frost/internal/bytesize"
	"github.com/frostrpc/frost/pkg/reactor"
	"github.com/frostrpc/frost/pkg/reference"
)

// Properties is the narrow read interface pkg/communicator consumes, so
// callers that don't load from viper (tests, embedders with their own
// config layer) can satisfy it without depending on this package's file
// format at all.
type Properties interface {
	MessageSizeMax() int32
	ConnectionIdleTimeout() time.Duration
	ConnectionInactivityTimeout() time.Duration
	ACM() ACMConfig
	ThreadPool(pool string) reactor.Config
	DefaultEndpointSelection() reference.EndpointSelection
	DefaultLocatorCacheTimeout() time.Duration
	RetryIntervals() []time.Duration
	AcceptClassCycles() bool
	Trace() TraceConfig
	Warn() WarnConfig
}

// Config is the on-disk/on-env shape of frost's properties, using a
// mapstructure+yaml dual-tag convention so the same struct decodes from a
// YAML file, with FROST_-prefixed environment variables overriding the keys
// that file sets (see Load).
type Config struct {
	MessageSize MessageSizeConfig `mapstructure:"message_size" yaml:"message_size"`
	Connection  ConnectionConfig  `mapstructure:"connection" yaml:"connection"`
	ACM         ACMConfig         `mapstructure:"acm" yaml:"acm"`
	ThreadPool  ThreadPoolsConfig `mapstructure:"thread_pool" yaml:"thread_pool"`
	Default     DefaultConfig     `mapstructure:"default" yaml:"default"`
	Retry       RetryConfig       `mapstructure:"retry" yaml:"retry"`
	Trace       TraceConfig       `mapstructure:"trace" yaml:"trace"`
	Warn        WarnConfig        `mapstructure:"warn" yaml:"warn"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`

	// AcceptClassCycles governs whether pkg/valueser's reference graph
	// permits a back-reference that closes a cycle.
	AcceptClassCycles bool `mapstructure:"accept_class_cycles" yaml:"accept_class_cycles"`
}

// MessageSizeConfig bounds the wire message size, in kilobytes.
type MessageSizeConfig struct {
	// MaxKB is the maximum message size in kilobytes; 0 means unbounded.
	MaxKB int32 `mapstructure:"max_kb" validate:"gte=0" yaml:"max_kb"`
}

// ConnectionConfig carries the idle/inactivity heartbeat properties.
type ConnectionConfig struct {
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" validate:"gte=0" yaml:"idle_timeout"`
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout" validate:"gte=0" yaml:"inactivity_timeout"`
}

// ACMConfig configures Active Connection Management: heartbeat and
// idle-close behavior.
type ACMConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0" yaml:"timeout"`
	Close   string        `mapstructure:"close" validate:"omitempty,oneof=OnIdle OnInvocation Never" yaml:"close"`
	Heartbeat string      `mapstructure:"heartbeat" validate:"omitempty,oneof=Always OnInvocation Never" yaml:"heartbeat"`
}

// ThreadPoolConfig mirrors pkg/reactor.Config's knobs for one named pool.
type ThreadPoolConfig struct {
	Size      int  `mapstructure:"size" validate:"gte=0" yaml:"size"`
	SizeMax   int  `mapstructure:"size_max" validate:"gte=0" yaml:"size_max"`
	Serialize bool `mapstructure:"serialize" yaml:"serialize"`
}

// ThreadPoolsConfig carries the Client/Server thread pool properties.
type ThreadPoolsConfig struct {
	Client ThreadPoolConfig `mapstructure:"client" yaml:"client"`
	Server ThreadPoolConfig `mapstructure:"server" yaml:"server"`
}

// DefaultConfig carries proxy defaults applied when a reference doesn't
// override them.
type DefaultConfig struct {
	EndpointSelection string `mapstructure:"endpoint_selection" validate:"omitempty,oneof=Random Ordered" yaml:"endpoint_selection"`
	// LocatorCacheTimeout is -1 (meaning "cache forever") by default; any
	// other negative value is invalid, so it's validated with gte=-1 rather
	// than gte=0.
	LocatorCacheTimeout time.Duration `mapstructure:"locator_cache_timeout" validate:"gte=-1" yaml:"locator_cache_timeout"`
}

// RetryConfig carries the invocation retry budget.
type RetryConfig struct {
	Intervals []time.Duration `mapstructure:"intervals" yaml:"intervals"`
}

// TraceConfig gates diagnostic logging categories.
type TraceConfig struct {
	Protocol int `mapstructure:"protocol" validate:"gte=0,lte=3" yaml:"protocol"`
	Network  int `mapstructure:"network" validate:"gte=0,lte=3" yaml:"network"`
}

// WarnConfig carries the Warn.* properties. No runtime component reads
// them: warnings for recoverable protocol anomalies (unknown request ids,
// deprecated size encodings, and the like) are logged regardless.
type WarnConfig struct {
	Connections bool `mapstructure:"connections" yaml:"connections"`
	Datagrams   bool `mapstructure:"datagrams" yaml:"datagrams"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load reads configuration from configPath (or the default search path if
// empty) over the built-in defaults. FROST_-prefixed environment variables
// override only keys the config file itself sets; when no config file is
// found, the defaults are returned and the environment is not consulted.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig_()
	if !found {
		return cfg, nil
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FROST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(configDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: failed to read config file: %w", err)
	}
	return true, nil
}

// decodeHooks composes the mapstructure decode hooks that let config files
// and env vars write human-readable durations and byte sizes instead of
// raw nanosecond/byte integers.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		byteSizeDecodeHook(),
	)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// byteSizeDecodeHook lets message-size-like fields accept "1MB"/"512Ki"
// strings even though MessageSizeConfig.MaxKB is itself a plain int32 kB
// count, not a ByteSize — kept for any future byte-denominated property
// (e.g. a transceiver buffer size override) that wants the same
// human-readable parsing.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "frost")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "frost")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

var structValidator = validator.New()

// Validate runs struct-tag validation over cfg via go-playground/validator,
// returning every failing rule joined into one error.
func Validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		return err
	}
	if _, err := parseEndpointSelection(cfg.Default.EndpointSelection); err != nil {
		return err
	}
	return nil
}

func parseEndpointSelection(s string) (reference.EndpointSelection, error) {
	switch s {
	case "", "Random":
		return reference.Random, nil
	case "Ordered":
		return reference.Ordered, nil
	default:
		return 0, fmt.Errorf("config: invalid default.endpoint_selection %q", s)
	}
}
