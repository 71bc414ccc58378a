package mx

import (
	"fmt"
)

// SetVoltage sets the output voltage of ch. With verify the instrument waits
// until the output has settled at the new value before accepting further
// commands ("V{ch}V").
func (p *PowerSupply) SetVoltage(ch int, volts float64, verify bool) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if err := checkLevel("voltage", volts); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("V%d%s %.3f", ch, verifySuffix(verify), volts))
}

// VoltageSetpoint returns the voltage set point of ch.
func (p *PowerSupply) VoltageSetpoint(ch int) (float64, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}

	return p.queryFloat(fmt.Sprintf("V%d?", ch), parseLabeled)
}

// Voltage returns the measured output voltage of ch.
func (p *PowerSupply) Voltage(ch int) (float64, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}

	return p.queryFloat(fmt.Sprintf("V%dO?", ch), unitParser('V'))
}

// SetCurrentLimit sets the current limit of ch.
func (p *PowerSupply) SetCurrentLimit(ch int, amps float64) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if err := checkLevel("current limit", amps); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("I%d %.3f", ch, amps))
}

// CurrentLimit returns the current limit of ch.
func (p *PowerSupply) CurrentLimit(ch int) (float64, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}

	return p.queryFloat(fmt.Sprintf("I%d?", ch), parseLabeled)
}

// Current returns the measured output current of ch.
func (p *PowerSupply) Current(ch int) (float64, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}

	return p.queryFloat(fmt.Sprintf("I%dO?", ch), unitParser('A'))
}

// SetVoltageStepSize sets the voltage step size of ch.
func (p *PowerSupply) SetVoltageStepSize(ch int, volts float64) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if err := checkLevel("voltage step", volts); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("DELTAV%d %.3f", ch, volts))
}

// VoltageStepSize returns the voltage step size of ch.
func (p *PowerSupply) VoltageStepSize(ch int) (float64, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}

	return p.queryFloat(fmt.Sprintf("DELTAV%d?", ch), parseLabeled)
}

// SetCurrentStepSize sets the current limit step size of ch.
func (p *PowerSupply) SetCurrentStepSize(ch int, amps float64) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if err := checkLevel("current step", amps); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("DELTAI%d %.3f", ch, amps))
}

// CurrentStepSize returns the current limit step size of ch.
func (p *PowerSupply) CurrentStepSize(ch int) (float64, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}

	return p.queryFloat(fmt.Sprintf("DELTAI%d?", ch), parseLabeled)
}

// IncrementVoltage raises the voltage of ch by its step size.
func (p *PowerSupply) IncrementVoltage(ch int, verify bool) error {
	if err := checkChannel(ch); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("INCV%d%s", ch, verifySuffix(verify)))
}

// DecrementVoltage lowers the voltage of ch by its step size.
func (p *PowerSupply) DecrementVoltage(ch int, verify bool) error {
	if err := checkChannel(ch); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("DECV%d%s", ch, verifySuffix(verify)))
}

// IncrementCurrent raises the current limit of ch by its step size.
func (p *PowerSupply) IncrementCurrent(ch int) error {
	if err := checkChannel(ch); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("INCI%d", ch))
}

// DecrementCurrent lowers the current limit of ch by its step size.
func (p *PowerSupply) DecrementCurrent(ch int) error {
	if err := checkChannel(ch); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("DECI%d", ch))
}

// SetVoltageRange selects the output voltage range of ch.
func (p *PowerSupply) SetVoltageRange(ch int, index int) error {
	if err := checkChannel(ch); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("VRANGE%d %d", ch, index))
}

// VoltageRange returns the output voltage range index of ch.
func (p *PowerSupply) VoltageRange(ch int) (int, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}

	return p.queryInt(fmt.Sprintf("VRANGE%d?", ch))
}

// SetCurrentMeterAveraging sets the current meter averaging of ch.
func (p *PowerSupply) SetCurrentMeterAveraging(ch int, avg MeterAveraging) error {
	if err := checkChannel(ch); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("DAMPING%d %s", ch, avg))
}

// EnableOverVoltageProtection enables the over-voltage trip of ch at volts.
func (p *PowerSupply) EnableOverVoltageProtection(ch int, volts float64) error {
	return p.enableProtection("OVP", ch, volts)
}

// DisableOverVoltageProtection disables the over-voltage trip of ch.
func (p *PowerSupply) DisableOverVoltageProtection(ch int) error {
	return p.disableProtection("OVP", ch)
}

// OverVoltageProtection returns the over-voltage trip setting of ch.
func (p *PowerSupply) OverVoltageProtection(ch int) (Protection, error) {
	return p.protection("OVP", ch)
}

// EnableOverCurrentProtection enables the over-current trip of ch at amps.
func (p *PowerSupply) EnableOverCurrentProtection(ch int, amps float64) error {
	return p.enableProtection("OCP", ch, amps)
}

// DisableOverCurrentProtection disables the over-current trip of ch.
func (p *PowerSupply) DisableOverCurrentProtection(ch int) error {
	return p.disableProtection("OCP", ch)
}

// OverCurrentProtection returns the over-current trip setting of ch.
func (p *PowerSupply) OverCurrentProtection(ch int) (Protection, error) {
	return p.protection("OCP", ch)
}

// enableProtection switches the trip on and sets its level in one line.
func (p *PowerSupply) enableProtection(verb string, ch int, level float64) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if err := checkLevel(verb+" trip point", level); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("%s%d ON;%s%d %.3f", verb, ch, verb, ch, level))
}

func (p *PowerSupply) disableProtection(verb string, ch int) error {
	if err := checkChannel(ch); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("%s%d OFF", verb, ch))
}

func (p *PowerSupply) protection(verb string, ch int) (Protection, error) {
	if err := checkChannel(ch); err != nil {
		return Protection{}, err
	}

	cmd := fmt.Sprintf("%s%d?", verb, ch)
	reply, err := p.exec.QueryChecked(cmd)
	if err != nil {
		return Protection{}, err
	}

	return parseProtection(cmd, reply)
}

// TurnOn switches ch on.
func (p *PowerSupply) TurnOn(ch int) error {
	if err := checkChannel(ch); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("OP%d 1", ch))
}

// TurnOff switches ch off.
func (p *PowerSupply) TurnOff(ch int) error {
	if err := checkChannel(ch); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("OP%d 0", ch))
}

// IsOutputOn reports whether ch is on.
func (p *PowerSupply) IsOutputOn(ch int) (bool, error) {
	if err := checkChannel(ch); err != nil {
		return false, err
	}

	cmd := fmt.Sprintf("OP%d?", ch)
	reply, err := p.exec.QueryChecked(cmd)
	if err != nil {
		return false, err
	}

	return parseBool(cmd, reply)
}
