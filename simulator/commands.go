package simulator

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-mxpsu/protocol"
)

// fault is a rejection recorded in the status and error registers.
type fault struct {
	status protocol.StatusRegister
	code   int
}

func (f *fault) Error() string {
	return fmt.Sprintf("simulator: status %s, code %d", f.status, f.code)
}

var (
	errSyntax         = &fault{status: protocol.StatusCommandError}
	errNumeric        = &fault{status: protocol.StatusExecutionError, code: 100}
	errRecall         = &fault{status: protocol.StatusExecutionError, code: 102}
	errCommandInvalid = &fault{status: protocol.StatusExecutionError, code: 103}
	errRangeChange    = &fault{status: protocol.StatusExecutionError, code: 104}
)

var (
	outputHeader = regexp.MustCompile(`^([A-Z]+)([1-9])([VO]?)(\?)?$`)
	globalHeader = regexp.MustCompile(`^(\*?[A-Z]+)(\?)?$`)
)

type command struct {
	verb   string
	ch     int
	suffix string // "V" (verify) or "O" (output reading)
	query  bool
	arg    string
}

type (
	outputHandler func(in *Instrument, o *output, c command) (string, error)
	globalHandler func(in *Instrument, c command) (string, error)
)

var outputVerbs = map[string]outputHandler{
	"V":         (*Instrument).voltage,
	"I":         (*Instrument).current,
	"DELTAV":    stepHandler(func(o *output) *float64 { return &o.VoltageStep }, MaxVoltage),
	"DELTAI":    stepHandler(func(o *output) *float64 { return &o.CurrentStep }, MaxCurrent),
	"INCV":      (*Instrument).stepVoltage,
	"DECV":      (*Instrument).stepVoltage,
	"INCI":      (*Instrument).stepCurrent,
	"DECI":      (*Instrument).stepCurrent,
	"VRANGE":    (*Instrument).voltageRange,
	"DAMPING":   (*Instrument).damping,
	"OVP":       protectionHandler(func(o *output) (*bool, *float64) { return &o.OVPEnabled, &o.OVP }, MaxOVP),
	"OCP":       protectionHandler(func(o *output) (*bool, *float64) { return &o.OCPEnabled, &o.OCP }, MaxOCP),
	"OP":        (*Instrument).outputSwitch,
	"ONACTION":  actionHandler(func(o *output) *string { return &o.OnAction }),
	"OFFACTION": actionHandler(func(o *output) *string { return &o.OffAction }),
	"ONDELAY":   delayHandler(func(o *output) (*time.Duration, string) { return &o.OnDelay, o.OnAction }),
	"OFFDELAY":  delayHandler(func(o *output) (*time.Duration, string) { return &o.OffDelay, o.OffAction }),
	"SAV":       (*Instrument).save,
	"RCL":       (*Instrument).recall,
}

var globalVerbs = map[string]globalHandler{
	"*IDN":    (*Instrument).identify,
	"*ESR":    (*Instrument).statusRegister,
	"EER":     (*Instrument).errorRegister,
	"*RST":    (*Instrument).reset,
	"*CLS":    (*Instrument).clear,
	"*SAV":    (*Instrument).saveAll,
	"*RCL":    (*Instrument).recallAll,
	"TRIPRST": (*Instrument).tripReset,
	"CONFIG":  (*Instrument).config,
	"OPALL":   (*Instrument).switchAll,
}

func (in *Instrument) execute(part string) (string, error) {
	header, arg, _ := strings.Cut(part, " ")
	header = strings.ToUpper(header)
	arg = strings.TrimSpace(arg)

	if m := outputHeader.FindStringSubmatch(header); m != nil {
		h, ok := outputVerbs[m[1]]
		if !ok {
			return "", errSyntax
		}

		ch := int(m[2][0] - '0')
		if ch > len(in.outputs) {
			return "", errSyntax
		}

		c := command{verb: m[1], ch: ch, suffix: m[3], query: m[4] == "?", arg: arg}
		if c.query && c.arg != "" {
			return "", errSyntax
		}

		return h(in, in.outputs[ch-1], c)
	}

	if m := globalHeader.FindStringSubmatch(header); m != nil {
		h, ok := globalVerbs[m[1]]
		if !ok {
			return "", errSyntax
		}

		c := command{verb: m[1], query: m[2] == "?", arg: arg}
		if c.query && c.arg != "" {
			return "", errSyntax
		}

		return h(in, c)
	}

	return "", errSyntax
}

// --- output commands ---

func (in *Instrument) voltage(o *output, c command) (string, error) {
	if c.query {
		switch c.suffix {
		case "":
			return fmt.Sprintf("V%d %.3f", c.ch, o.Voltage), nil
		case "O":
			return fmt.Sprintf("%.3fV", o.measuredVoltage()), nil
		}

		return "", errSyntax
	}

	if c.suffix == "O" {
		return "", errSyntax
	}

	v, err := parseLevel(c.arg, 0, MaxVoltage)
	if err != nil {
		return "", err
	}

	if c.ch == 2 && in.tracking != 0 {
		return "", errCommandInvalid
	}

	o.Voltage = v
	o.checkTrip()

	if c.ch == 1 && in.tracking != 0 && len(in.outputs) > 1 {
		in.outputs[1].Voltage = v
		in.outputs[1].checkTrip()
	}

	return "", nil
}

func (in *Instrument) current(o *output, c command) (string, error) {
	if c.query {
		switch c.suffix {
		case "":
			return fmt.Sprintf("I%d %.3f", c.ch, o.CurrentLimit), nil
		case "O":
			return "0.000A", nil
		}

		return "", errSyntax
	}

	if c.suffix != "" {
		return "", errSyntax
	}

	v, err := parseLevel(c.arg, 0, MaxCurrent)
	if err != nil {
		return "", err
	}
	o.CurrentLimit = v

	return "", nil
}

func stepHandler(field func(o *output) *float64, limit float64) outputHandler {
	return func(_ *Instrument, o *output, c command) (string, error) {
		if c.suffix != "" {
			return "", errSyntax
		}

		step := field(o)
		if c.query {
			return fmt.Sprintf("%s%d %.3f", c.verb, c.ch, *step), nil
		}

		v, err := parseLevel(c.arg, 0, limit)
		if err != nil {
			return "", err
		}
		*step = v

		return "", nil
	}
}

func (in *Instrument) stepVoltage(o *output, c command) (string, error) {
	if c.query || c.suffix == "O" || c.arg != "" {
		return "", errSyntax
	}

	v := o.Voltage + o.VoltageStep
	if c.verb == "DECV" {
		v = o.Voltage - o.VoltageStep
	}

	if v < 0 || v > MaxVoltage {
		return "", errNumeric
	}

	return in.voltage(o, command{verb: "V", ch: c.ch, arg: strconv.FormatFloat(v, 'f', 3, 64)})
}

func (in *Instrument) stepCurrent(o *output, c command) (string, error) {
	if c.query || c.suffix != "" || c.arg != "" {
		return "", errSyntax
	}

	v := o.CurrentLimit + o.CurrentStep
	if c.verb == "DECI" {
		v = o.CurrentLimit - o.CurrentStep
	}

	if v < 0 || v > MaxCurrent {
		return "", errNumeric
	}
	o.CurrentLimit = v

	return "", nil
}

func (in *Instrument) voltageRange(o *output, c command) (string, error) {
	if c.suffix != "" {
		return "", errSyntax
	}

	if c.query {
		return strconv.Itoa(o.Range), nil
	}

	r, err := parseIndex(c.arg, 1, MaxRange)
	if err != nil {
		return "", err
	}

	if r != o.Range && o.measuredVoltage() > rangeVolts {
		return "", errRangeChange
	}
	o.Range = r

	return "", nil
}

func (in *Instrument) damping(o *output, c command) (string, error) {
	if c.suffix != "" || c.query {
		return "", errSyntax
	}

	switch arg := strings.ToUpper(c.arg); arg {
	case "ON", "OFF", "LOW", "MED", "HIGH":
		o.Damping = arg
		return "", nil
	}

	return "", errSyntax
}

func protectionHandler(field func(o *output) (*bool, *float64), limit float64) outputHandler {
	return func(_ *Instrument, o *output, c command) (string, error) {
		if c.suffix != "" {
			return "", errSyntax
		}

		enabled, level := field(o)
		if c.query {
			if !*enabled {
				return fmt.Sprintf("%s%d OFF", c.verb, c.ch), nil
			}

			return fmt.Sprintf("%s%d %.3f", c.verb, c.ch, *level), nil
		}

		switch strings.ToUpper(c.arg) {
		case "ON":
			*enabled = true
		case "OFF":
			*enabled = false
		default:
			v, err := parseLevel(c.arg, 0, limit)
			if err != nil {
				return "", err
			}
			*level = v
		}
		o.checkTrip()

		return "", nil
	}
}

func (in *Instrument) outputSwitch(o *output, c command) (string, error) {
	if c.suffix != "" {
		return "", errSyntax
	}

	if c.query {
		return boolReply(o.On), nil
	}

	switch c.arg {
	case "1":
		if o.Tripped {
			return "", errCommandInvalid
		}
		o.On = true
		o.checkTrip()
	case "0":
		o.On = false
	default:
		return "", errSyntax
	}

	return "", nil
}

func actionHandler(field func(o *output) *string) outputHandler {
	return func(_ *Instrument, o *output, c command) (string, error) {
		if c.suffix != "" {
			return "", errSyntax
		}

		action := field(o)
		if c.query {
			return *action, nil
		}

		switch arg := strings.ToUpper(c.arg); arg {
		case "QUICK", "NEVER", "DELAY":
			*action = arg
			return "", nil
		}

		return "", errSyntax
	}
}

func delayHandler(field func(o *output) (*time.Duration, string)) outputHandler {
	return func(_ *Instrument, o *output, c command) (string, error) {
		if c.suffix != "" {
			return "", errSyntax
		}

		delay, action := field(o)
		if c.query {
			return strconv.FormatInt(delay.Milliseconds(), 10), nil
		}

		ms, err := parseIndex(c.arg, 0, MaxDelayMS)
		if err != nil {
			return "", err
		}

		if action != "DELAY" {
			return "", errCommandInvalid
		}
		*delay = time.Duration(ms) * time.Millisecond

		return "", nil
	}
}

func (in *Instrument) save(o *output, c command) (string, error) {
	if c.query || c.suffix != "" {
		return "", errSyntax
	}

	idx, err := parseIndex(c.arg, 0, StoreCount-1)
	if err != nil {
		return "", err
	}

	s := o.settings()
	o.stores[idx] = &s

	return "", nil
}

func (in *Instrument) recall(o *output, c command) (string, error) {
	if c.query || c.suffix != "" {
		return "", errSyntax
	}

	idx, err := parseIndex(c.arg, 0, StoreCount-1)
	if err != nil {
		return "", err
	}

	if o.stores[idx] == nil {
		return "", errRecall
	}
	o.restore(*o.stores[idx])

	return "", nil
}

// --- instrument commands ---

func (in *Instrument) identify(c command) (string, error) {
	if !c.query {
		return "", errSyntax
	}

	return in.identity, nil
}

func (in *Instrument) statusRegister(c command) (string, error) {
	if !c.query {
		return "", errSyntax
	}

	esr := in.esr
	in.esr = 0

	return strconv.Itoa(int(esr)), nil
}

func (in *Instrument) errorRegister(c command) (string, error) {
	if !c.query {
		return "", errSyntax
	}

	code := in.eer
	in.eer = 0

	return strconv.Itoa(code), nil
}

func (in *Instrument) reset(c command) (string, error) {
	if c.query || c.arg != "" {
		return "", errSyntax
	}

	for _, o := range in.outputs {
		o.OutputState = defaultOutputState()
	}
	in.tracking = 0

	return "", nil
}

func (in *Instrument) clear(c command) (string, error) {
	if c.query || c.arg != "" {
		return "", errSyntax
	}

	in.esr = 0
	in.eer = 0

	return "", nil
}

func (in *Instrument) saveAll(c command) (string, error) {
	if c.query {
		return "", errSyntax
	}

	idx, err := parseIndex(c.arg, 0, StoreCount-1)
	if err != nil {
		return "", err
	}

	snapshot := make([]OutputState, len(in.outputs))
	for i, o := range in.outputs {
		snapshot[i] = o.settings()
	}
	in.allStores[idx] = snapshot

	return "", nil
}

func (in *Instrument) recallAll(c command) (string, error) {
	if c.query {
		return "", errSyntax
	}

	idx, err := parseIndex(c.arg, 0, StoreCount-1)
	if err != nil {
		return "", err
	}

	snapshot := in.allStores[idx]
	if snapshot == nil {
		return "", errRecall
	}

	for i, o := range in.outputs {
		o.restore(snapshot[i])
	}

	return "", nil
}

func (in *Instrument) tripReset(c command) (string, error) {
	if c.query || c.arg != "" {
		return "", errSyntax
	}

	for _, o := range in.outputs {
		o.Tripped = false
	}

	return "", nil
}

func (in *Instrument) config(c command) (string, error) {
	if c.query {
		return strconv.Itoa(in.tracking), nil
	}

	mode, err := parseIndex(c.arg, 0, MaxConfig)
	if err != nil {
		return "", err
	}
	in.tracking = mode

	return "", nil
}

func (in *Instrument) switchAll(c command) (string, error) {
	if c.query {
		return "", errSyntax
	}

	var on bool
	switch c.arg {
	case "1":
		on = true
	case "0":
	default:
		return "", errSyntax
	}

	for _, o := range in.outputs {
		action := o.OffAction
		if on {
			action = o.OnAction
		}

		if action == "NEVER" || (on && o.Tripped) {
			continue
		}

		o.On = on
		o.checkTrip()
	}

	return "", nil
}

// --- helpers ---

func (o *output) measuredVoltage() float64 {
	if !o.On {
		return 0
	}

	return o.Voltage
}

// checkTrip switches the output off when its voltage exceeds an enabled
// over-voltage trip point.
func (o *output) checkTrip() {
	if o.On && o.OVPEnabled && o.Voltage > o.OVP {
		o.On = false
		o.Tripped = true
	}
}

func (o *output) restore(s OutputState) {
	on, tripped := o.On, o.Tripped
	o.OutputState = s
	o.On, o.Tripped = on, tripped
	o.checkTrip()
}

func parseLevel(arg string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errSyntax
	}

	if v < lo || v > hi {
		return 0, errNumeric
	}

	return v, nil
}

func parseIndex(arg string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(arg)
	if err != nil {
		return 0, errSyntax
	}

	if v < lo || v > hi {
		return 0, errNumeric
	}

	return v, nil
}

func boolReply(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
