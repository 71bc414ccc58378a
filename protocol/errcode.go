package protocol

// ErrorCode describes an execution error code reported by "EER?".
type ErrorCode struct {
	Code        int
	Category    string
	Description string
}

var errorCodes = map[int]ErrorCode{
	0: {
		Code:        0,
		Category:    "OK",
		Description: "No error has occurred since this register was last read.",
	},
	100: {
		Code:        100,
		Category:    "NumericError",
		Description: "The parameter value sent was outside the permitted range for the command in the present circumstances.",
	},
	102: {
		Code:        102,
		Category:    "RecallError",
		Description: "A recall of set up data has been requested but the store specified does not contain any data.",
	},
	103: {
		Code:        103,
		Category:    "CommandInvalid",
		Description: "The command is recognised but is not valid in the current circumstances. Typical examples would be trying to change V2 directly while the outputs are in voltage tracking mode with V1 as the master.",
	},
	104: {
		Code:        104,
		Category:    "RangeChangeError",
		Description: "An operation requiring a range change was requested but could not be completed. Typically this occurs because >0.5V was still present on output 1 and/or output 2 terminals at the time the command was executed.",
	},
	200: {
		Code:        200,
		Category:    "AccessDenied",
		Description: "An attempt was made to change the instrument's settings from an interface which is locked out of write privileges by a lock held by another interface.",
	},
}

// LookupErrorCode resolves an execution error code.
func LookupErrorCode(code int) (ErrorCode, bool) {
	ec, ok := errorCodes[code]
	return ec, ok
}
