// Package mx drives MX-series triple and quad output bench power supplies
// (MX100TP, MX100QP, MX180TP and relatives).
//
// A PowerSupply translates each operation into one instrument command. Every
// setter is verified through the instrument's status register by the
// protocol engine, and every getter parses the reply shape of its query:
//
//	"V1?"      -> "V1 5.000"  labelled value
//	"V1O?"     -> "5.000V"    value with unit suffix
//	"OVP1?"    -> "OVP1 OFF"  labelled value or OFF
//	"VRANGE1?" -> "1"         bare value
//
// Parameters are checked before anything is sent; a rejected parameter
// returns an error matching protocol.ErrInvalidParameter.
//
// TurnOnMulti and TurnOffMulti configure several outputs and then switch
// them together with a single "OPALL" command.
//
// Example:
//
//	psu, _ := mx.Dial("192.168.0.10")
//	defer psu.Close()
//
//	_ = psu.SetVoltage(1, 5.0, false)
//	_ = psu.TurnOn(1)
//	v, _ := psu.Voltage(1)
package mx
