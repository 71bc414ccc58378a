package mx

import (
	"strconv"
	"strings"

	"github.com/arloliu/go-mxpsu/protocol"
)

// unitParser parses replies such as "1.234A" where the value carries a unit suffix.
func unitParser(unit byte) func(cmd, reply string) (float64, error) {
	return func(cmd, reply string) (float64, error) {
		s, ok := strings.CutSuffix(reply, string(unit))
		if !ok {
			return 0, &protocol.ParseError{Command: cmd, Reply: reply}
		}

		return parseFloat(cmd, reply, s)
	}
}

// parseLabeled parses "LABEL value" replies such as "V1 5.000".
func parseLabeled(cmd, reply string) (float64, error) {
	fields := strings.Fields(reply)
	if len(fields) != 2 {
		return 0, &protocol.ParseError{Command: cmd, Reply: reply}
	}

	return parseFloat(cmd, reply, fields[1])
}

// parseProtection parses "OVP1 30.50" or "OVP1 OFF".
func parseProtection(cmd, reply string) (Protection, error) {
	if strings.HasSuffix(strings.ToUpper(reply), "OFF") {
		return Protection{}, nil
	}

	level, err := parseLabeled(cmd, reply)
	if err != nil {
		return Protection{}, err
	}

	return Protection{Enabled: true, Level: level}, nil
}

func parseInt(cmd, reply string) (int, error) {
	v, err := strconv.Atoi(reply)
	if err != nil {
		return 0, &protocol.ParseError{Command: cmd, Reply: reply, Err: err}
	}

	return v, nil
}

func parseBool(cmd, reply string) (bool, error) {
	switch reply {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}

	return false, &protocol.ParseError{Command: cmd, Reply: reply}
}

func parseFloat(cmd, reply, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &protocol.ParseError{Command: cmd, Reply: reply, Err: err}
	}

	return v, nil
}
