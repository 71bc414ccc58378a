// Package protocol implements the command execution and error verification
// engine for MX-series power supplies.
//
// # Write-then-verify
//
// The instrument never acknowledges a command. Instead every mutating command
// is followed by a settle pause and a read of the Standard Event Status
// Register (ESR) with "*ESR?". Reading the ESR also clears it, so its value is
// never cached and each read is attributed to the command that preceded it.
//
// The ESR bits are inspected in a fixed order and the first set bit decides
// the outcome:
//
//   - bit 5 (32) Command Error: syntax error in command or parameter.
//   - bit 4 (16) Execution Error: the command was understood but could not be
//     carried out; "EER?" returns a numeric code that is resolved through the
//     error code table.
//   - bit 3 (8) Device Dependent Error: verify timeout on this instrument.
//   - bit 2 (4) Query Error: a reply was requested without a query.
//
// Power On (bit 7), User Request (bit 6) and Operation Complete (bit 0) are
// never treated as faults.
//
// # Checked queries
//
// A query that produces a reply is trusted as is; the ESR is read only when
// the query fails at the channel level. In that case a device reported fault
// replaces the communication failure, and a clear register leaves the
// original failure untouched. Checking after successful queries would consume
// faults that belong to earlier commands.
//
// # Reset and clear
//
// "*RST" is followed by a longer pause instead of a status check, and "*CLS"
// clears the very register that verification reads, so neither is verified.
package protocol
