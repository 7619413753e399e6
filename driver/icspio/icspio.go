// Package icspio implements timing.Pins on top of periph.io's host GPIO
// support, the same way driver/wshat and lcd drive Waveshare peripherals in
// the reference application this program is built in the style of: resolve
// named GPIO lines through the platform registry, then drive them directly.
package icspio

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"picprog.dev/timing"
)

// PinNames names the four host GPIO lines wired to the target's ICSP
// header, resolved at start-up through gpioreg.ByName. This is the "must be
// configured at build time" mechanism spec.md calls for: pin assignment is
// a run-time value, not a compiled-in Broadcom pin constant.
type PinNames struct {
	Vpp, Vdd, Clock, Data string
}

// GPIO drives the four ICSP lines through periph.io gpio.PinIO handles.
type GPIO struct {
	pins     [4]gpio.PinIO
	spinUpTo time.Duration
}

// defaultSpinThreshold is the delay below which Delay busy-waits against a
// monotonic clock instead of handing control to the scheduler: on a stock
// Linux kernel, time.Sleep's wakeup latency dwarfs anything under a few
// tens of microseconds, which is well within this protocol's T_SET/T_HLD1
// windows.
const defaultSpinThreshold = 50 * time.Microsecond

// Open resolves the four named GPIO lines and initializes the periph.io
// host drivers. It leaves all four lines driven low, matching the power-on
// invariant in spec.md's data model.
func Open(names PinNames) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("icspio: %w", err)
	}
	if _, err := driverreg.Init(); err != nil {
		return nil, fmt.Errorf("icspio: %w", err)
	}
	g := &GPIO{spinUpTo: defaultSpinThreshold}
	lines := [4]string{names.Vpp, names.Vdd, names.Clock, names.Data}
	for i, name := range lines {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("icspio: no such GPIO pin %q", name)
		}
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("icspio: configure %s: %w", name, err)
		}
		g.pins[i] = p
	}
	return g, nil
}

func (g *GPIO) pin(line timing.Line) gpio.PinIO {
	return g.pins[line]
}

// SetLine drives line to level. Setting the Data line always (re)configures
// it as an output, undoing any prior EnableDataInput.
func (g *GPIO) SetLine(line timing.Line, level timing.Level) {
	l := gpio.Low
	if level == timing.High {
		l = gpio.High
	}
	g.pin(line).Out(l)
}

// EnableDataInput configures Data as a pulled-up input ahead of a
// data-in frame. SetLine(Data, ...) is the only way back to output mode.
func (g *GPIO) EnableDataInput() {
	g.pin(timing.Data).In(gpio.PullUp, gpio.NoEdge)
}

// ReadDataLine samples Data. Only valid after EnableDataInput.
func (g *GPIO) ReadDataLine() timing.Level {
	return timing.Level(g.pin(timing.Data).Read() == gpio.High)
}

// Delay busy-waits for at least d. Durations at or below spinUpTo are spun
// against a monotonic clock read, since the kernel scheduler cannot be
// trusted for sub-tens-of-microseconds wakeups; longer durations sleep.
func (g *GPIO) Delay(d time.Duration) {
	if d <= g.spinUpTo {
		deadline := time.Now().Add(d)
		for time.Now().Before(deadline) {
		}
		return
	}
	time.Sleep(d)
}
