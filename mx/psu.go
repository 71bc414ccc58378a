package mx

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/arloliu/go-mxpsu/channel"
	"github.com/arloliu/go-mxpsu/logger"
	"github.com/arloliu/go-mxpsu/protocol"
	"github.com/arloliu/go-mxpsu/transport"
)

const (
	// MaxChannel is the highest output number on any MX-series model.
	MaxChannel = 4

	// DefaultMultiSettleDelay is the pause between switching an output's
	// multi action to DELAY and sending its delay value.
	DefaultMultiSettleDelay = 100 * time.Millisecond
	MaxMultiSettleDelay     = 10 * time.Second
)

// Executor runs commands against the instrument with status verification.
// *protocol.Engine implements it.
type Executor interface {
	Execute(cmd string) error
	QueryChecked(cmd string) (string, error)
	StatusRegister() (protocol.StatusRegister, error)
	Reset() error
	Clear() error
	SetTimeout(d time.Duration) error
	Close() error
}

var _ Executor = (*protocol.Engine)(nil)

// PowerSupply is an MX-series power supply.
//
// PowerSupply is safe for concurrent use; the executor serializes exchanges.
// Multi-On and Multi-Off sequences are not atomic with respect to other
// callers.
type PowerSupply struct {
	exec             Executor
	multiSettleDelay time.Duration
	logger           logger.Logger

	sleep func(time.Duration)
}

type options struct {
	transportOpts    []transport.Option
	engineOpts       []protocol.Option
	channelOpts      []channel.Option
	multiSettleDelay time.Duration
	logger           logger.Logger

	connOnly []string // names of options New cannot apply
}

// Option is a functional option for configuring a PowerSupply.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithSettleDelay sets the pause between a command and its status check.
// It only applies to Open, Dial and OpenSerial; New rejects it.
func WithSettleDelay(d time.Duration) Option {
	return optFunc(func(o *options) error {
		o.connOnly = append(o.connOnly, "WithSettleDelay")
		o.engineOpts = append(o.engineOpts, protocol.WithSettleDelay(d))
		return nil
	})
}

// WithResetDelay sets the pause after a reset. It only applies to Open,
// Dial and OpenSerial; New rejects it.
func WithResetDelay(d time.Duration) Option {
	return optFunc(func(o *options) error {
		o.connOnly = append(o.connOnly, "WithResetDelay")
		o.engineOpts = append(o.engineOpts, protocol.WithResetDelay(d))
		return nil
	})
}

// WithMultiSettleDelay sets the pause between the DELAY action command and
// the delay value command of a Multi-On or Multi-Off configuration.
func WithMultiSettleDelay(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d < 0 || d > MaxMultiSettleDelay {
			return fmt.Errorf("mx: multi settle delay %v out of range [0, %v]", d, MaxMultiSettleDelay)
		}
		o.multiSettleDelay = d

		return nil
	})
}

// WithTransportOptions sets the options used by Dial and OpenSerial to
// create the transport. New rejects it.
func WithTransportOptions(opts ...transport.Option) Option {
	return optFunc(func(o *options) error {
		o.connOnly = append(o.connOnly, "WithTransportOptions")
		o.transportOpts = append(o.transportOpts, opts...)
		return nil
	})
}

// WithLogger sets the logger for the power supply and, unless it is created
// with New, for its engine, channel and transport.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(o *options) error {
		if l == nil {
			return errors.New("mx: logger must not be nil")
		}
		o.logger = l
		o.engineOpts = append(o.engineOpts, protocol.WithLogger(l))
		o.channelOpts = append(o.channelOpts, channel.WithLogger(l))
		o.transportOpts = append(o.transportOpts, transport.WithLogger(l))

		return nil
	})
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		multiSettleDelay: DefaultMultiSettleDelay,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// Dial connects to the LAN interface of an instrument at address
// ("host" or "host:port").
func Dial(address string, opts ...Option) (*PowerSupply, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	tr, err := transport.DialTCP(address, o.transportOpts...)
	if err != nil {
		return nil, err
	}

	return openOrClose(tr, o)
}

// OpenSerial opens the instrument's serial (RS232 or USB virtual COM)
// interface at path.
func OpenSerial(path string, opts ...Option) (*PowerSupply, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	tr, err := transport.OpenSerial(path, o.transportOpts...)
	if err != nil {
		return nil, err
	}

	return openOrClose(tr, o)
}

// Open creates a PowerSupply talking over tr. Closing the PowerSupply closes tr.
func Open(tr transport.Transport, opts ...Option) (*PowerSupply, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	return open(tr, o)
}

func openOrClose(tr transport.Transport, o *options) (*PowerSupply, error) {
	p, err := open(tr, o)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}

	return p, nil
}

func open(tr transport.Transport, o *options) (*PowerSupply, error) {
	ch, err := channel.New(tr, o.channelOpts...)
	if err != nil {
		return nil, err
	}

	engine, err := protocol.NewEngine(ch, o.engineOpts...)
	if err != nil {
		return nil, err
	}

	return newPowerSupply(engine, o), nil
}

// New creates a PowerSupply on top of an existing executor. The executor
// is already configured, so WithSettleDelay, WithResetDelay and
// WithTransportOptions are rejected; WithLogger only sets the power supply's
// own logger.
func New(exec Executor, opts ...Option) (*PowerSupply, error) {
	if exec == nil {
		return nil, errors.New("mx: executor is nil")
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	if len(o.connOnly) > 0 {
		return nil, fmt.Errorf("mx: %s cannot be applied to an existing executor", strings.Join(o.connOnly, ", "))
	}

	return newPowerSupply(exec, o), nil
}

func newPowerSupply(exec Executor, o *options) *PowerSupply {
	return &PowerSupply{
		exec:             exec,
		multiSettleDelay: o.multiSettleDelay,
		logger:           o.logger,
		sleep:            time.Sleep,
	}
}

// SetTimeout sets the communication timeout.
func (p *PowerSupply) SetTimeout(d time.Duration) error {
	return p.exec.SetTimeout(d)
}

// Close closes the connection to the instrument.
func (p *PowerSupply) Close() error {
	return p.exec.Close()
}

// Reset sends "*RST" and waits for the instrument to settle.
func (p *PowerSupply) Reset() error {
	return p.exec.Reset()
}

// Clear sends "*CLS", clearing the status registers.
func (p *PowerSupply) Clear() error {
	return p.exec.Clear()
}

// EventStatusRegister reads and clears the standard event status register.
func (p *PowerSupply) EventStatusRegister() (protocol.StatusRegister, error) {
	return p.exec.StatusRegister()
}

// Identify returns the "*IDN?" identification string.
func (p *PowerSupply) Identify() (string, error) {
	return p.exec.QueryChecked("*IDN?")
}

// ResetTrip attempts to clear all trip conditions.
func (p *PowerSupply) ResetTrip() error {
	return p.exec.Execute("TRIPRST")
}

// SetVoltageTrackingMode sets the voltage tracking mode of the unit.
func (p *PowerSupply) SetVoltageTrackingMode(mode int) error {
	if mode < 0 {
		return protocol.InvalidParameterf("tracking mode %d must not be negative", mode)
	}

	return p.exec.Execute(fmt.Sprintf("CONFIG %d", mode))
}

// VoltageTrackingMode returns the voltage tracking mode of the unit.
func (p *PowerSupply) VoltageTrackingMode() (int, error) {
	return p.queryInt("CONFIG?")
}

func (p *PowerSupply) queryFloat(cmd string, parse func(cmd, reply string) (float64, error)) (float64, error) {
	reply, err := p.exec.QueryChecked(cmd)
	if err != nil {
		return 0, err
	}

	return parse(cmd, reply)
}

func (p *PowerSupply) queryInt(cmd string) (int, error) {
	reply, err := p.exec.QueryChecked(cmd)
	if err != nil {
		return 0, err
	}

	return parseInt(cmd, reply)
}

func checkChannel(ch int) error {
	if ch < 1 || ch > MaxChannel {
		return protocol.InvalidParameterf("channel %d out of range [1, %d]", ch, MaxChannel)
	}

	return nil
}

func checkLevel(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return protocol.InvalidParameterf("%s %v must be a finite, non-negative number", name, v)
	}

	return nil
}

func verifySuffix(verify bool) string {
	if verify {
		return "V"
	}

	return ""
}
