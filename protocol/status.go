package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusRegister is a snapshot of the Standard Event Status Register.
//
// The instrument clears the register when it is read, so a snapshot is only
// meaningful for the command executed right before it was taken.
type StatusRegister uint8

// Status register bits.
const (
	StatusOperationComplete    StatusRegister = 1 << 0
	StatusQueryError           StatusRegister = 1 << 2
	StatusDeviceDependentError StatusRegister = 1 << 3
	StatusExecutionError       StatusRegister = 1 << 4
	StatusCommandError         StatusRegister = 1 << 5
	StatusUserRequest          StatusRegister = 1 << 6
	StatusPowerOn              StatusRegister = 1 << 7
)

// faultPrecedence lists the fault bits in the order they are checked.
var faultPrecedence = [...]StatusRegister{
	StatusCommandError,
	StatusExecutionError,
	StatusDeviceDependentError,
	StatusQueryError,
}

// ParseStatusRegister parses a "*ESR?" reply ("0" to "255").
func ParseStatusRegister(reply string) (StatusRegister, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(reply), 10, 8)
	if err != nil {
		return 0, &ParseError{Command: StatusQuery, Reply: reply, Err: err}
	}

	return StatusRegister(v), nil
}

// Has reports whether all bits in mask are set.
func (s StatusRegister) Has(mask StatusRegister) bool {
	return s&mask == mask
}

// Fault returns the highest precedence fault bit that is set, or 0.
func (s StatusRegister) Fault() StatusRegister {
	for _, bit := range faultPrecedence {
		if s&bit != 0 {
			return bit
		}
	}

	return 0
}

// String returns the register as eight binary digits, most significant bit first.
func (s StatusRegister) String() string {
	return fmt.Sprintf("%08b", uint8(s))
}
