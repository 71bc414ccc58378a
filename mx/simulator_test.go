package mx_test

import (
	"io"
	"testing"
	"time"

	"github.com/arloliu/go-mxpsu/channel"
	"github.com/arloliu/go-mxpsu/logger"
	"github.com/arloliu/go-mxpsu/mx"
	"github.com/arloliu/go-mxpsu/protocol"
	"github.com/arloliu/go-mxpsu/simulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimulated(t *testing.T, opts ...simulator.Option) (*mx.PowerSupply, *simulator.Instrument) {
	t.Helper()

	sim := simulator.New(opts...)
	psu, err := mx.Open(sim,
		mx.WithSettleDelay(0),
		mx.WithResetDelay(0),
		mx.WithMultiSettleDelay(0),
		mx.WithLogger(logger.NewNop()),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = psu.Close() })

	return psu, sim
}

func TestSimulated_SetAndReadBack(t *testing.T) {
	psu, sim := newSimulated(t)

	require.NoError(t, psu.SetVoltage(1, 5, false))
	require.NoError(t, psu.SetCurrentLimit(1, 1.5))
	require.NoError(t, psu.TurnOn(1))

	v, err := psu.VoltageSetpoint(1)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, v, 1e-9)

	v, err = psu.Voltage(1)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, v, 1e-9)

	a, err := psu.CurrentLimit(1)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, a, 1e-9)

	a, err = psu.Current(1)
	require.NoError(t, err)
	assert.Zero(t, a)

	on, err := psu.IsOutputOn(1)
	require.NoError(t, err)
	assert.True(t, on)

	assert.Equal(t, []string{
		"V1 5.000", "*ESR?",
		"I1 1.500", "*ESR?",
		"OP1 1", "*ESR?",
		"V1?", "V1O?", "I1?", "I1O?", "OP1?",
	}, sim.Commands())
}

func TestSimulated_OutOfRange_ExecutionError(t *testing.T) {
	psu, _ := newSimulated(t)

	err := psu.SetVoltage(1, 500, false)
	require.ErrorIs(t, err, protocol.ErrExecutionError)

	var ee *protocol.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 100, ee.Code)
	assert.Equal(t, "NumericError", ee.Category)
	assert.Equal(t, "V1 500.000", ee.Command)
}

func TestSimulated_StoreBounds(t *testing.T) {
	psu, sim := newSimulated(t)

	err := psu.Save(1, 50)
	require.ErrorIs(t, err, protocol.ErrInvalidParameter)
	assert.Empty(t, sim.Commands())

	require.NoError(t, psu.Save(1, 49))
	assert.Contains(t, sim.Commands(), "SAV1 49")

	err = psu.Recall(2, 10)
	var ee *protocol.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 102, ee.Code)

	require.NoError(t, psu.SaveAll(3))
	require.NoError(t, psu.RecallAll(3))
	assert.Contains(t, sim.Commands(), "*SAV 3")
	assert.Contains(t, sim.Commands(), "*RCL 3")
}

func TestSimulated_UnknownCode(t *testing.T) {
	psu, sim := newSimulated(t)

	sim.ReplyOn("EER?", "999")
	sim.ReplyOn("*ESR?", "16")

	err := psu.TurnOn(1)
	require.ErrorIs(t, err, protocol.ErrUndefinedCode)

	var ue *protocol.UndefinedCodeError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 999, ue.Code)
	assert.Equal(t, "OP1 1", ue.Command)
}

func TestSimulated_QueryRecovery_DeviceFaultReplacesCommError(t *testing.T) {
	psu, sim := newSimulated(t)

	sim.FailOn("V1?", io.ErrUnexpectedEOF)
	sim.SetStatus(protocol.StatusQueryError)

	_, err := psu.VoltageSetpoint(1)
	require.ErrorIs(t, err, protocol.ErrQueryError)
	assert.NotErrorIs(t, err, channel.ErrCommunication)
}

func TestSimulated_QueryRecovery_ClearStatusKeepsCommError(t *testing.T) {
	psu, sim := newSimulated(t)

	// drain the power-on bit
	_, err := psu.EventStatusRegister()
	require.NoError(t, err)

	sim.FailOn("V1?", io.ErrUnexpectedEOF)

	_, err = psu.VoltageSetpoint(1)
	require.ErrorIs(t, err, channel.ErrCommunication)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSimulated_SilentlyRejectedQuery_ParseError(t *testing.T) {
	psu, sim := newSimulated(t, simulator.WithOutputs(3))

	_, err := psu.EventStatusRegister()
	require.NoError(t, err)

	// output 4 passes validation but the instrument has only three; it sets
	// the command error bit and sends nothing, so the read times out empty.
	_, err = psu.Voltage(4)
	require.ErrorIs(t, err, protocol.ErrParse)
	assert.NotErrorIs(t, err, channel.ErrCommunication)

	var pe *protocol.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "V4O?", pe.Command)
	assert.Empty(t, pe.Reply)

	assert.Equal(t, []string{"*ESR?", "V4O?"}, sim.Commands())

	esr, err := psu.EventStatusRegister()
	require.NoError(t, err)
	assert.True(t, esr.Has(protocol.StatusCommandError))
}

func TestSimulated_MultiOnSequence(t *testing.T) {
	psu, sim := newSimulated(t)

	err := psu.TurnOnMulti(map[int]mx.MultiOperation{
		1: mx.MultiDelayOf(250 * time.Millisecond),
		2: mx.MultiAction(false),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ONACTION1 DELAY", "*ESR?",
		"ONDELAY1 250", "*ESR?",
		"ONACTION2 NEVER", "*ESR?",
		"OPALL 1", "*ESR?",
	}, sim.Commands())

	s, err := sim.Output(1)
	require.NoError(t, err)
	assert.True(t, s.On)
	assert.Equal(t, 250*time.Millisecond, s.OnDelay)

	s, err = sim.Output(2)
	require.NoError(t, err)
	assert.False(t, s.On)
}

func TestSimulated_Protection(t *testing.T) {
	psu, _ := newSimulated(t)

	require.NoError(t, psu.EnableOverVoltageProtection(1, 30.5))
	ovp, err := psu.OverVoltageProtection(1)
	require.NoError(t, err)
	assert.Equal(t, mx.Protection{Enabled: true, Level: 30.5}, ovp)

	require.NoError(t, psu.DisableOverCurrentProtection(2))
	ocp, err := psu.OverCurrentProtection(2)
	require.NoError(t, err)
	assert.False(t, ocp.Enabled)
}

func TestSimulated_ResetAndIdentify(t *testing.T) {
	psu, sim := newSimulated(t, simulator.WithIdentity("THURLBY THANDAR, MX180TP, 1, 2"))

	require.NoError(t, psu.SetVoltage(2, 3, true))
	require.NoError(t, psu.Reset())

	v, err := psu.VoltageSetpoint(2)
	require.NoError(t, err)
	assert.Zero(t, v)

	id, err := psu.Identify()
	require.NoError(t, err)
	assert.Equal(t, "THURLBY THANDAR, MX180TP, 1, 2", id)

	require.NoError(t, psu.Clear())
	assert.Equal(t, protocol.StatusRegister(0), sim.Status())
}

func TestSimulated_TrackingMode(t *testing.T) {
	psu, _ := newSimulated(t)

	require.NoError(t, psu.SetVoltageTrackingMode(3))
	mode, err := psu.VoltageTrackingMode()
	require.NoError(t, err)
	assert.Equal(t, 3, mode)

	err = psu.SetVoltage(2, 1, false)
	var ee *protocol.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 103, ee.Code)
}

func TestSimulated_SetTimeoutAndClose(t *testing.T) {
	sim := simulator.New()
	psu, err := mx.Open(sim, mx.WithLogger(logger.NewNop()))
	require.NoError(t, err)

	require.NoError(t, psu.SetTimeout(250*time.Millisecond))
	assert.Equal(t, 250*time.Millisecond, sim.Timeout())

	require.NoError(t, psu.Close())
	assert.True(t, sim.Closed())
}
