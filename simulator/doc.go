// Package simulator provides an in-process MX-series power supply that
// speaks the instrument's text protocol.
//
// An Instrument implements transport.Transport, so it can stand in for a TCP
// or serial connection anywhere a transport is expected:
//
//	sim := simulator.New(simulator.WithOutputs(3))
//	psu, err := mx.Open(sim)
//
// The simulator keeps per-output settings, the setting stores, the standard
// event status register and the execution error register, and updates them
// the way the instrument does: unknown or malformed commands set the command
// error bit, rejected values set the execution error bit together with an
// error code readable through "EER?".
//
// The model is deliberately simple. Outputs are unloaded, so the measured
// current is always zero and the measured voltage equals the set point while
// the output is on. Any tracking mode other than 0 slaves output 2 to
// output 1. Multi-On and Multi-Off delays are recorded but switching happens
// immediately.
//
// Tests can inject faults with SetStatus, SetErrorCode, FailOn and ReplyOn,
// and inspect every received line with Commands.
package simulator
