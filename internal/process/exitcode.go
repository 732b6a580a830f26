package process

import "fmt"

// ExitCode is the raw exit status reported by the OS for a terminated process.
// Windows reports NTSTATUS values for abnormal terminations, so codes are kept
// as unsigned 32-bit values on every platform.
type ExitCode uint32

// unknownExitCode is recorded when the OS did not report a status at all.
const unknownExitCode ExitCode = 0xFFFFFFFF

func (c ExitCode) String() string { return fmt.Sprintf("0x%08X", uint32(c)) }

// ExitCategory is a human-readable bucket for a well-known exit code.
type ExitCategory string

const (
	ExitNormal             ExitCategory = "normal exit"
	ExitTerminatedByUser   ExitCategory = "terminated by user"
	ExitAccessViolation    ExitCategory = "access violation"
	ExitStackBufferOverrun ExitCategory = "stack buffer overrun"
	ExitHeapCorruption     ExitCategory = "heap corruption"
	ExitUnknown            ExitCategory = "unknown"
)

// exitTable is consulted in order; codes not listed fall into ExitUnknown.
var exitTable = []struct {
	code     ExitCode
	category ExitCategory
}{
	{0x00000000, ExitNormal},
	{0xC000013A, ExitTerminatedByUser}, // STATUS_CONTROL_C_EXIT: Ctrl+C or window closed
	{0xC0000005, ExitAccessViolation},
	{0xC0000409, ExitStackBufferOverrun},
	{0xC0000374, ExitHeapCorruption},
}

// Interpret maps an exit code to its category.
func Interpret(code ExitCode) ExitCategory {
	for _, e := range exitTable {
		if e.code == code {
			return e.category
		}
	}
	return ExitUnknown
}

// Describe renders the category of code for log lines. Unknown codes carry
// their hex value so they can be looked up later.
func Describe(code ExitCode) string {
	cat := Interpret(code)
	if cat == ExitUnknown {
		return fmt.Sprintf("unknown exit code (%s)", code)
	}
	return string(cat)
}
