package config

import (
	"time"

	"github.com/frostrpc/frost/pkg/reactor"
	"github.com/frostrpc/frost/pkg/reference"
)

// ViperProperties adapts a loaded Config to the Properties interface
// pkg/communicator consumes, so a Communicator never imports viper or
// mapstructure directly.
type ViperProperties struct {
	cfg *Config
}

// NewProperties wraps cfg as a Properties. cfg must already have had
// ApplyDefaults/Validate run over it (Load does both).
func NewProperties(cfg *Config) *ViperProperties {
	return &ViperProperties{cfg: cfg}
}

func (p *ViperProperties) MessageSizeMax() int32 {
	return p.cfg.MessageSize.MaxKB * 1024
}

func (p *ViperProperties) ConnectionIdleTimeout() time.Duration {
	return p.cfg.Connection.IdleTimeout
}

func (p *ViperProperties) ConnectionInactivityTimeout() time.Duration {
	return p.cfg.Connection.InactivityTimeout
}

func (p *ViperProperties) ACM() ACMConfig { return p.cfg.ACM }

func (p *ViperProperties) ThreadPool(pool string) reactor.Config {
	var tp ThreadPoolConfig
	switch pool {
	case "client":
		tp = p.cfg.ThreadPool.Client
	case "server":
		tp = p.cfg.ThreadPool.Server
	}
	return reactor.Config{Name: pool, Size: tp.Size, SizeMax: tp.SizeMax, Serialize: tp.Serialize}
}

func (p *ViperProperties) DefaultEndpointSelection() reference.EndpointSelection {
	sel, err := parseEndpointSelection(p.cfg.Default.EndpointSelection)
	if err != nil {
		return reference.Random
	}
	return sel
}

func (p *ViperProperties) DefaultLocatorCacheTimeout() time.Duration {
	return p.cfg.Default.LocatorCacheTimeout
}

func (p *ViperProperties) RetryIntervals() []time.Duration {
	return p.cfg.Retry.Intervals
}

func (p *ViperProperties) AcceptClassCycles() bool {
	return p.cfg.AcceptClassCycles
}

func (p *ViperProperties) Trace() TraceConfig { return p.cfg.Trace }
func (p *ViperProperties) Warn() WarnConfig   { return p.cfg.Warn }
