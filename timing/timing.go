// Package timing defines the pin-level contract the ICSP command layer is
// built on: driving the four programming lines, sampling the bidirectional
// Data line, and busy-waiting for microsecond-scale intervals.
package timing

import "time"

// Line identifies one of the four ICSP programming lines.
type Line int

const (
	Vpp Line = iota
	Vdd
	Clock
	Data
)

func (l Line) String() string {
	switch l {
	case Vpp:
		return "Vpp"
	case Vdd:
		return "Vdd"
	case Clock:
		return "Clock"
	case Data:
		return "Data"
	default:
		return "unknown"
	}
}

// Level is a logic level driven onto or read from a line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Pins is the hardware abstraction the ICSP command layer drives. All four
// lines reset low on power-on. Data is the only bidirectional line: calling
// SetLine(Data, ...) always (re)configures it as a driven output, so the
// ICSP layer restores it to a low output with a single call on every exit
// path out of a read frame. EnableDataInput must be called before
// ReadDataLine and lasts until the next SetLine(Data, ...) call.
type Pins interface {
	SetLine(line Line, level Level)
	EnableDataInput()
	ReadDataLine() Level
	Delay(d time.Duration)
}

// Named timing constants from the target family's ICSP datasheet. Every
// wire-level operation in package icsp budgets its delays against these;
// shortening them corrupts the target.
const (
	// T_PPDP is the gap between driving Vdd high and driving Vpp high.
	T_PPDP = 5 * time.Microsecond
	// T_HLD0 is the gap between Vpp rising and the first clock pulse.
	T_HLD0 = 5 * time.Microsecond
	// T_SET is the clock-high setup time before the falling edge.
	T_SET = 100 * time.Nanosecond
	// T_HLD1 is the clock-low hold time after the falling edge.
	T_HLD1 = 100 * time.Nanosecond
	// T_DLY2 is the gap between a command and its payload.
	T_DLY2 = 1 * time.Microsecond
	// T_ERA is the settle time after Bulk Erase.
	T_ERA = 10 * time.Millisecond
	// T_PROG is the settle time after Begin Programming.
	T_PROG = 2 * time.Millisecond
	// T_DIS is the discharge time after End Programming.
	T_DIS = 100 * time.Microsecond
	// T_RESET is the hold time after exiting programming mode.
	T_RESET = 10 * time.Millisecond
)
