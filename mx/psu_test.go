package mx

import (
	"math"
	"testing"
	"time"

	"github.com/arloliu/go-mxpsu/logger"
	"github.com/arloliu/go-mxpsu/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NilExecutor(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestNew_InvalidOptions(t *testing.T) {
	fe := newFakeExecutor()

	_, err := New(fe, WithMultiSettleDelay(-time.Millisecond))
	require.Error(t, err)

	_, err = New(fe, WithMultiSettleDelay(MaxMultiSettleDelay+time.Millisecond))
	require.Error(t, err)

	_, err = New(fe, WithLogger(nil))
	require.Error(t, err)
}

func TestNew_RejectsConnectionOptions(t *testing.T) {
	fe := newFakeExecutor()

	for name, opt := range map[string]Option{
		"WithSettleDelay":      WithSettleDelay(10 * time.Millisecond),
		"WithResetDelay":       WithResetDelay(time.Second),
		"WithTransportOptions": WithTransportOptions(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(fe, opt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}

	_, err := New(fe, WithLogger(logger.NewNop()), WithMultiSettleDelay(time.Millisecond))
	require.NoError(t, err)
}

func TestPowerSupply_SetCommands(t *testing.T) {
	tests := []struct {
		name string
		call func(p *PowerSupply) error
		want string
	}{
		{"SetVoltage", func(p *PowerSupply) error { return p.SetVoltage(1, 5, false) }, "V1 5.000"},
		{"SetVoltageVerify", func(p *PowerSupply) error { return p.SetVoltage(2, 12.3456, true) }, "V2V 12.346"},
		{"SetCurrentLimit", func(p *PowerSupply) error { return p.SetCurrentLimit(3, 1.5) }, "I3 1.500"},
		{"SetVoltageStepSize", func(p *PowerSupply) error { return p.SetVoltageStepSize(1, 0.1) }, "DELTAV1 0.100"},
		{"SetCurrentStepSize", func(p *PowerSupply) error { return p.SetCurrentStepSize(1, 0.01) }, "DELTAI1 0.010"},
		{"IncrementVoltage", func(p *PowerSupply) error { return p.IncrementVoltage(1, false) }, "INCV1"},
		{"IncrementVoltageVerify", func(p *PowerSupply) error { return p.IncrementVoltage(1, true) }, "INCV1V"},
		{"DecrementVoltage", func(p *PowerSupply) error { return p.DecrementVoltage(2, true) }, "DECV2V"},
		{"IncrementCurrent", func(p *PowerSupply) error { return p.IncrementCurrent(1) }, "INCI1"},
		{"DecrementCurrent", func(p *PowerSupply) error { return p.DecrementCurrent(4) }, "DECI4"},
		{"SetVoltageRange", func(p *PowerSupply) error { return p.SetVoltageRange(1, 2) }, "VRANGE1 2"},
		{"SetCurrentMeterAveraging", func(p *PowerSupply) error { return p.SetCurrentMeterAveraging(1, AveragingHigh) }, "DAMPING1 HIGH"},
		{"EnableOVP", func(p *PowerSupply) error { return p.EnableOverVoltageProtection(1, 30.5) }, "OVP1 ON;OVP1 30.500"},
		{"DisableOVP", func(p *PowerSupply) error { return p.DisableOverVoltageProtection(1) }, "OVP1 OFF"},
		{"EnableOCP", func(p *PowerSupply) error { return p.EnableOverCurrentProtection(2, 1.5) }, "OCP2 ON;OCP2 1.500"},
		{"DisableOCP", func(p *PowerSupply) error { return p.DisableOverCurrentProtection(2) }, "OCP2 OFF"},
		{"TurnOn", func(p *PowerSupply) error { return p.TurnOn(1) }, "OP1 1"},
		{"TurnOff", func(p *PowerSupply) error { return p.TurnOff(1) }, "OP1 0"},
		{"ResetTrip", func(p *PowerSupply) error { return p.ResetTrip() }, "TRIPRST"},
		{"SetVoltageTrackingMode", func(p *PowerSupply) error { return p.SetVoltageTrackingMode(2) }, "CONFIG 2"},
		{"Save", func(p *PowerSupply) error { return p.Save(1, 49) }, "SAV1 49"},
		{"Recall", func(p *PowerSupply) error { return p.Recall(2, 0) }, "RCL2 0"},
		{"SaveAll", func(p *PowerSupply) error { return p.SaveAll(3) }, "*SAV 3"},
		{"RecallAll", func(p *PowerSupply) error { return p.RecallAll(3) }, "*RCL 3"},
		{"SetMultiOnAction", func(p *PowerSupply) error { return p.SetMultiOnAction(1, MultiNever) }, "ONACTION1 NEVER"},
		{"SetMultiOffAction", func(p *PowerSupply) error { return p.SetMultiOffAction(2, MultiQuick) }, "OFFACTION2 QUICK"},
		{"SetMultiOnDelay", func(p *PowerSupply) error { return p.SetMultiOnDelay(1, 250*time.Millisecond) }, "ONDELAY1 250"},
		{"SetMultiOffDelay", func(p *PowerSupply) error { return p.SetMultiOffDelay(1, 2*time.Second) }, "OFFDELAY1 2000"},
		{"Reset", func(p *PowerSupply) error { return p.Reset() }, protocol.ResetCommand},
		{"Clear", func(p *PowerSupply) error { return p.Clear() }, protocol.ClearCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := newFakeExecutor()
			p := newTestPowerSupply(t, fe)

			require.NoError(t, tt.call(p))
			assert.Equal(t, []string{tt.want}, fe.commands())
		})
	}
}

func TestPowerSupply_Queries(t *testing.T) {
	fe := newFakeExecutor()
	fe.replies = map[string]string{
		"V1?":      "V1 5.000",
		"V1O?":     "4.998V",
		"I2?":      "I2 1.500",
		"I2O?":     "1.234A",
		"DELTAV1?": "DV1 0.100",
		"DELTAI1?": "DI1 0.010",
		"VRANGE1?": "2",
		"OVP1?":    "OVP1 30.50",
		"OCP1?":    "OCP1 OFF",
		"OP1?":     "1",
		"OP2?":     "0",
		"CONFIG?":  "3",
		"*IDN?":    "THURLBY THANDAR, MX100TP, 123456, 1.00-1.00-1.00",
	}
	p := newTestPowerSupply(t, fe)

	v, err := p.VoltageSetpoint(1)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, v, 1e-9)

	v, err = p.Voltage(1)
	require.NoError(t, err)
	assert.InDelta(t, 4.998, v, 1e-9)

	v, err = p.CurrentLimit(2)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, v, 1e-9)

	v, err = p.Current(2)
	require.NoError(t, err)
	assert.InDelta(t, 1.234, v, 1e-9)

	v, err = p.VoltageStepSize(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, v, 1e-9)

	v, err = p.CurrentStepSize(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, v, 1e-9)

	r, err := p.VoltageRange(1)
	require.NoError(t, err)
	assert.Equal(t, 2, r)

	ovp, err := p.OverVoltageProtection(1)
	require.NoError(t, err)
	assert.Equal(t, Protection{Enabled: true, Level: 30.5}, ovp)

	ocp, err := p.OverCurrentProtection(1)
	require.NoError(t, err)
	assert.Equal(t, Protection{}, ocp)

	on, err := p.IsOutputOn(1)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = p.IsOutputOn(2)
	require.NoError(t, err)
	assert.False(t, on)

	mode, err := p.VoltageTrackingMode()
	require.NoError(t, err)
	assert.Equal(t, 3, mode)

	id, err := p.Identify()
	require.NoError(t, err)
	assert.Contains(t, id, "MX100TP")
}

func TestPowerSupply_Query_ParseError(t *testing.T) {
	fe := newFakeExecutor()
	fe.replies["I1O?"] = "garbage"
	p := newTestPowerSupply(t, fe)

	_, err := p.Current(1)
	require.ErrorIs(t, err, protocol.ErrParse)

	var pe *protocol.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "I1O?", pe.Command)
	assert.Equal(t, "garbage", pe.Reply)
}

func TestPowerSupply_PropagatesExecutorError(t *testing.T) {
	fe := newFakeExecutor()
	fault := &protocol.ExecutionError{Code: 104, Category: "Range Change Error", Command: "VRANGE1 9"}
	fe.fail["VRANGE1 9"] = fault
	p := newTestPowerSupply(t, fe)

	err := p.SetVoltageRange(1, 9)
	require.ErrorIs(t, err, protocol.ErrExecutionError)
	assert.Same(t, fault, err)
}

func TestPowerSupply_InvalidParameters_NoIO(t *testing.T) {
	tests := []struct {
		name string
		call func(p *PowerSupply) error
	}{
		{"ChannelZero", func(p *PowerSupply) error { return p.TurnOn(0) }},
		{"ChannelTooHigh", func(p *PowerSupply) error { return p.TurnOn(MaxChannel + 1) }},
		{"NegativeVoltage", func(p *PowerSupply) error { return p.SetVoltage(1, -1, false) }},
		{"NaNVoltage", func(p *PowerSupply) error { return p.SetVoltage(1, math.NaN(), false) }},
		{"InfCurrent", func(p *PowerSupply) error { return p.SetCurrentLimit(1, math.Inf(1)) }},
		{"NegativeOVP", func(p *PowerSupply) error { return p.EnableOverVoltageProtection(1, -0.5) }},
		{"StoreTooHigh", func(p *PowerSupply) error { return p.Save(1, MaxStoreIndex+1) }},
		{"StoreNegative", func(p *PowerSupply) error { return p.Recall(1, -1) }},
		{"SaveAllTooHigh", func(p *PowerSupply) error { return p.SaveAll(50) }},
		{"RecallAllTooHigh", func(p *PowerSupply) error { return p.RecallAll(50) }},
		{"TrackingMode", func(p *PowerSupply) error { return p.SetVoltageTrackingMode(-1) }},
		{"MultiDelayNegative", func(p *PowerSupply) error { return p.SetMultiOnDelay(1, -time.Millisecond) }},
		{"MultiDelayTooLong", func(p *PowerSupply) error { return p.SetMultiOffDelay(1, MaxMultiDelay+time.Millisecond) }},
		{"MultiActionUnknown", func(p *PowerSupply) error { return p.SetMultiOnAction(1, MultiActionType(9)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := newFakeExecutor()
			p := newTestPowerSupply(t, fe)

			err := tt.call(p)
			require.ErrorIs(t, err, protocol.ErrInvalidParameter)
			assert.Empty(t, fe.commands())
		})
	}
}

func TestPowerSupply_InvalidChannel_Queries(t *testing.T) {
	fe := newFakeExecutor()
	p := newTestPowerSupply(t, fe)

	_, err := p.Voltage(5)
	require.ErrorIs(t, err, protocol.ErrInvalidParameter)

	_, err = p.OverCurrentProtection(0)
	require.ErrorIs(t, err, protocol.ErrInvalidParameter)

	_, err = p.IsOutputOn(-1)
	require.ErrorIs(t, err, protocol.ErrInvalidParameter)

	assert.Empty(t, fe.commands())
}

func TestPowerSupply_EventStatusRegister(t *testing.T) {
	fe := newFakeExecutor()
	fe.status = protocol.StatusPowerOn | protocol.StatusExecutionError
	p := newTestPowerSupply(t, fe)

	esr, err := p.EventStatusRegister()
	require.NoError(t, err)
	assert.True(t, esr.Has(protocol.StatusPowerOn))
	assert.Equal(t, []string{protocol.StatusQuery}, fe.commands())
}

func TestPowerSupply_TimeoutAndClose(t *testing.T) {
	fe := newFakeExecutor()
	p := newTestPowerSupply(t, fe)

	require.NoError(t, p.SetTimeout(2*time.Second))
	assert.Equal(t, 2*time.Second, fe.timeout)

	require.NoError(t, p.Close())
	assert.True(t, fe.closed)
}

func TestWithLogger_UsedForSequenceLogging(t *testing.T) {
	ml := &logger.MockLogger{}
	ml.AllowAll()

	fe := newFakeExecutor()
	p, err := New(fe, WithLogger(ml))
	require.NoError(t, err)
	p.sleep = func(time.Duration) {}

	require.NoError(t, p.TurnOnMulti(nil))
	ml.AssertCalled(t, "Debug", "mx: multi-channel sequence configured", []any{"command", "OPALL 1", "channels", []int{}})
}
