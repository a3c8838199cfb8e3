package config

import "time"

// DefaultConfig_ returns a Config with every property set to its documented
// default. Named with a trailing underscore to avoid colliding with the
// Config.Default field's natural accessor name.
func DefaultConfig_() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills any zero-valued field of cfg with its documented
// default; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyMessageSizeDefaults(&cfg.MessageSize)
	applyConnectionDefaults(&cfg.Connection)
	applyACMDefaults(&cfg.ACM)
	applyThreadPoolDefaults(&cfg.ThreadPool)
	applyDefaultDefaults(&cfg.Default)
	applyRetryDefaults(&cfg.Retry)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyMessageSizeDefaults(cfg *MessageSizeConfig) {
	if cfg.MaxKB == 0 {
		cfg.MaxKB = 1024 // 1MB default ceiling
	}
}

func applyConnectionDefaults(cfg *ConnectionConfig) {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.InactivityTimeout == 0 {
		cfg.InactivityTimeout = 0 // disabled unless explicitly set
	}
}

func applyACMDefaults(cfg *ACMConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Close == "" {
		cfg.Close = "OnIdle"
	}
	if cfg.Heartbeat == "" {
		cfg.Heartbeat = "OnInvocation"
	}
}

func applyThreadPoolDefaults(cfg *ThreadPoolsConfig) {
	if cfg.Client.Size == 0 {
		cfg.Client.Size = 1
	}
	if cfg.Client.SizeMax == 0 {
		cfg.Client.SizeMax = cfg.Client.Size
	}
	if cfg.Server.Size == 0 {
		cfg.Server.Size = 10
	}
	if cfg.Server.SizeMax == 0 {
		cfg.Server.SizeMax = cfg.Server.Size
	}
}

func applyDefaultDefaults(cfg *DefaultConfig) {
	if cfg.EndpointSelection == "" {
		cfg.EndpointSelection = "Random"
	}
	if cfg.LocatorCacheTimeout == 0 {
		cfg.LocatorCacheTimeout = -1 // -1 means "cache forever"
	}
}

func applyRetryDefaults(cfg *RetryConfig) {
	if len(cfg.Intervals) == 0 {
		cfg.Intervals = []time.Duration{0, 200 * time.Millisecond, 500 * time.Millisecond}
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}
