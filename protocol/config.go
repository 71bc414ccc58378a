package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-mxpsu/logger"
)

// Settle delays observed on current instrument firmware. Older revisions may
// need longer values; both are configurable.
const (
	DefaultSettleDelay = 50 * time.Millisecond  // command to status register read
	DefaultResetDelay  = 500 * time.Millisecond // "*RST" to next command

	MaxSettleDelay = 10 * time.Second
	MaxResetDelay  = 30 * time.Second
)

// Config holds the Engine settings.
type Config struct {
	settleDelay time.Duration
	resetDelay  time.Duration

	logger logger.Logger
}

// NewConfig creates an Engine configuration with defaults overridden by opts.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		settleDelay: DefaultSettleDelay,
		resetDelay:  DefaultResetDelay,
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// SettleDelay returns the pause between a command and its status register read.
func (cfg *Config) SettleDelay() time.Duration { return cfg.settleDelay }

// ResetDelay returns the pause after "*RST".
func (cfg *Config) ResetDelay() time.Duration { return cfg.resetDelay }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring an Engine.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithSettleDelay sets the pause between sending a mutating command and
// reading the status register. Range: 0 to MaxSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxSettleDelay {
			return fmt.Errorf("protocol: settle delay %v out of range [0, %v]", d, MaxSettleDelay)
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithResetDelay sets the pause after "*RST". Range: 0 to MaxResetDelay.
func WithResetDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxResetDelay {
			return fmt.Errorf("protocol: reset delay %v out of range [0, %v]", d, MaxResetDelay)
		}
		cfg.resetDelay = d

		return nil
	})
}

// WithLogger sets the logger for the engine.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("protocol: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
