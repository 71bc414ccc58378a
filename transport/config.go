package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-mxpsu/logger"
)

const (
	DefaultTimeout        = 5 * time.Second
	DefaultConnectTimeout = 3 * time.Second
	DefaultBaudRate       = 9600
)

// Config holds the settings shared by all transports.
type Config struct {
	timeout        time.Duration
	connectTimeout time.Duration
	baudRate       int

	logger logger.Logger
}

// NewConfig creates a transport configuration with defaults overridden by opts.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		timeout:        DefaultTimeout,
		connectTimeout: DefaultConnectTimeout,
		baudRate:       DefaultBaudRate,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Timeout returns the read/write deadline.
func (cfg *Config) Timeout() time.Duration { return cfg.timeout }

// ConnectTimeout returns the TCP dial timeout.
func (cfg *Config) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// BaudRate returns the serial baud rate.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a transport.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithTimeout sets the read/write deadline. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return fmt.Errorf("transport: timeout %v must not be negative", d)
		}
		cfg.timeout = d

		return nil
	})
}

// WithConnectTimeout sets the TCP dial timeout.
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("transport: connect timeout must be positive")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithBaudRate sets the serial baud rate.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("transport: invalid baud rate %d", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithLogger sets the logger for the transport.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("transport: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
