package mx

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/arloliu/go-mxpsu/protocol"
)

// MaxMultiDelay is the longest Multi-On/Multi-Off delay the protocol can express.
const MaxMultiDelay = math.MaxUint16 * time.Millisecond

type multiCommands struct {
	action string // per-output action verb
	delay  string // per-output delay verb
	all    string // aggregate command
}

var (
	multiOn  = multiCommands{action: "ONACTION", delay: "ONDELAY", all: "OPALL 1"}
	multiOff = multiCommands{action: "OFFACTION", delay: "OFFDELAY", all: "OPALL 0"}
)

// SetMultiOnAction sets the Multi-On action of ch.
func (p *PowerSupply) SetMultiOnAction(ch int, action MultiActionType) error {
	return p.setMultiAction(multiOn, ch, action)
}

// SetMultiOnDelay sets the Multi-On delay of ch.
func (p *PowerSupply) SetMultiOnDelay(ch int, d time.Duration) error {
	return p.setMultiDelay(multiOn, ch, d)
}

// SetMultiOffAction sets the Multi-Off action of ch.
func (p *PowerSupply) SetMultiOffAction(ch int, action MultiActionType) error {
	return p.setMultiAction(multiOff, ch, action)
}

// SetMultiOffDelay sets the Multi-Off delay of ch.
func (p *PowerSupply) SetMultiOffDelay(ch int, d time.Duration) error {
	return p.setMultiDelay(multiOff, ch, d)
}

// TurnOnMulti configures the outputs listed in ops and then switches on all
// outputs with the Multi-On feature ("OPALL 1"). A nil or empty ops uses the
// configuration already held by the instrument.
func (p *PowerSupply) TurnOnMulti(ops map[int]MultiOperation) error {
	return p.runMulti(multiOn, ops)
}

// TurnOffMulti configures the outputs listed in ops and then switches off
// all outputs with the Multi-Off feature ("OPALL 0").
func (p *PowerSupply) TurnOffMulti(ops map[int]MultiOperation) error {
	return p.runMulti(multiOff, ops)
}

// runMulti applies the per-output configuration in ascending channel order,
// then issues the aggregate command once. A delay configuration is sent as
// the DELAY action followed, after the multi settle pause, by the delay
// value; the instrument rejects a delay value until the action change has
// taken effect. The first failure aborts the sequence.
func (p *PowerSupply) runMulti(mc multiCommands, ops map[int]MultiOperation) error {
	channels := make([]int, 0, len(ops))
	for ch, op := range ops {
		if err := checkChannel(ch); err != nil {
			return err
		}
		if err := checkMultiOperation(op); err != nil {
			return err
		}
		channels = append(channels, ch)
	}
	slices.Sort(channels)

	for _, ch := range channels {
		op := ops[ch]

		if err := p.exec.Execute(multiActionCommand(mc, ch, op.action)); err != nil {
			return err
		}

		if op.action != MultiDelay {
			continue
		}

		p.sleep(p.multiSettleDelay)

		if err := p.exec.Execute(multiDelayCommand(mc, ch, op.delay)); err != nil {
			return err
		}
	}

	p.logger.Debug("mx: multi-channel sequence configured", "command", mc.all, "channels", channels)

	return p.exec.Execute(mc.all)
}

func (p *PowerSupply) setMultiAction(mc multiCommands, ch int, action MultiActionType) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if err := checkMultiAction(action); err != nil {
		return err
	}

	return p.exec.Execute(multiActionCommand(mc, ch, action))
}

func (p *PowerSupply) setMultiDelay(mc multiCommands, ch int, d time.Duration) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if err := checkMultiDelay(d); err != nil {
		return err
	}

	return p.exec.Execute(multiDelayCommand(mc, ch, d))
}

func multiActionCommand(mc multiCommands, ch int, action MultiActionType) string {
	return fmt.Sprintf("%s%d %s", mc.action, ch, action)
}

func multiDelayCommand(mc multiCommands, ch int, d time.Duration) string {
	return fmt.Sprintf("%s%d %d", mc.delay, ch, d.Milliseconds())
}

func checkMultiAction(action MultiActionType) error {
	switch action {
	case MultiQuick, MultiNever, MultiDelay:
		return nil
	}

	return protocol.InvalidParameterf("unknown multi action %v", action)
}

func checkMultiDelay(d time.Duration) error {
	if d < 0 || d > MaxMultiDelay {
		return protocol.InvalidParameterf("multi delay %v out of range [0, %v]", d, MaxMultiDelay)
	}

	return nil
}

func checkMultiOperation(op MultiOperation) error {
	if err := checkMultiAction(op.action); err != nil {
		return err
	}

	if op.action == MultiDelay {
		return checkMultiDelay(op.delay)
	}

	return nil
}
