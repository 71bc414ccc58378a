// Package config loads instrument connection settings from YAML files.
//
// A configuration file looks like:
//
//	transport: tcp              # tcp, serial or simulator
//	address: 192.168.0.10:9221  # host[:port] or serial device path
//	baud_rate: 9600             # serial only
//	timeout: 5s
//	connect_timeout: 3s         # tcp only
//	settle_delay: 50ms
//	reset_delay: 500ms
//	multi_settle_delay: 100ms
//	log_level: info
//
// Omitted or zero values take the package defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/arloliu/go-mxpsu/logger"
	"github.com/arloliu/go-mxpsu/mx"
	"github.com/arloliu/go-mxpsu/protocol"
	"github.com/arloliu/go-mxpsu/simulator"
	"github.com/arloliu/go-mxpsu/transport"
	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	TransportTCP       = "tcp"
	TransportSerial    = "serial"
	TransportSimulator = "simulator"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config describes how to reach one instrument.
type Config struct {
	Transport        string        `yaml:"transport"`
	Address          string        `yaml:"address"`
	BaudRate         int           `yaml:"baud_rate"`
	Timeout          time.Duration `yaml:"timeout"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
	ResetDelay       time.Duration `yaml:"reset_delay"`
	MultiSettleDelay time.Duration `yaml:"multi_settle_delay"`
	LogLevel         string        `yaml:"log_level"`
}

// Load reads, normalizes and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	Normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML data. Unknown keys are rejected. The result is neither
// normalized nor validated.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return cfg, nil
}

// Normalize fills in defaults. It never fails; call Validate afterwards.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if cfg.Transport == "" {
		cfg.Transport = TransportTCP
	}

	cfg.Address = strings.TrimSpace(cfg.Address)

	if cfg.BaudRate == 0 {
		cfg.BaudRate = transport.DefaultBaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = transport.DefaultTimeout
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = transport.DefaultConnectTimeout
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = protocol.DefaultSettleDelay
	}
	if cfg.ResetDelay == 0 {
		cfg.ResetDelay = protocol.DefaultResetDelay
	}
	if cfg.MultiSettleDelay == 0 {
		cfg.MultiSettleDelay = mx.DefaultMultiSettleDelay
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate checks cfg. It does not modify it.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}

	switch cfg.Transport {
	case TransportTCP, TransportSerial:
		if cfg.Address == "" {
			return fmt.Errorf("%w: address is required for transport %q", ErrInvalidConfig, cfg.Transport)
		}
	case TransportSimulator:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, cfg.Transport)
	}

	if cfg.BaudRate <= 0 {
		return fmt.Errorf("%w: baud_rate %d must be positive", ErrInvalidConfig, cfg.BaudRate)
	}

	if cfg.Timeout < 0 {
		return fmt.Errorf("%w: timeout %v must not be negative", ErrInvalidConfig, cfg.Timeout)
	}

	if cfg.ConnectTimeout < 0 {
		return fmt.Errorf("%w: connect_timeout %v must not be negative", ErrInvalidConfig, cfg.ConnectTimeout)
	}

	if err := checkRange("settle_delay", cfg.SettleDelay, protocol.MaxSettleDelay); err != nil {
		return err
	}

	if err := checkRange("reset_delay", cfg.ResetDelay, protocol.MaxResetDelay); err != nil {
		return err
	}

	if err := checkRange("multi_settle_delay", cfg.MultiSettleDelay, mx.MaxMultiSettleDelay); err != nil {
		return err
	}

	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

func checkRange(name string, d, limit time.Duration) error {
	if d < 0 || d > limit {
		return fmt.Errorf("%w: %s %v out of range [0, %v]", ErrInvalidConfig, name, d, limit)
	}

	return nil
}

// Open connects to the instrument described by cfg. l is passed to every
// layer as is. When l is nil, Open creates a logger at cfg.LogLevel; the
// package default logger is never modified.
func Open(cfg *Config, l logger.Logger) (*mx.PowerSupply, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	if l == nil {
		level, _ := logger.ParseLevel(cfg.LogLevel)
		l = logger.NewSlog(level, false)
	}

	opts := []mx.Option{
		mx.WithLogger(l),
		mx.WithSettleDelay(cfg.SettleDelay),
		mx.WithResetDelay(cfg.ResetDelay),
		mx.WithMultiSettleDelay(cfg.MultiSettleDelay),
		mx.WithTransportOptions(
			transport.WithTimeout(cfg.Timeout),
			transport.WithConnectTimeout(cfg.ConnectTimeout),
			transport.WithBaudRate(cfg.BaudRate),
		),
	}

	l.Info("config: opening instrument", "transport", cfg.Transport, "address", cfg.Address)

	switch cfg.Transport {
	case TransportSerial:
		return mx.OpenSerial(cfg.Address, opts...)
	case TransportSimulator:
		sim := simulator.New(simulator.WithLogger(l))
		if err := sim.SetTimeout(cfg.Timeout); err != nil {
			return nil, err
		}

		return mx.Open(sim, opts...)
	default:
		return mx.Dial(cfg.Address, opts...)
	}
}
