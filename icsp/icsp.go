// Package icsp implements the In-Circuit Serial Programming command layer:
// six-bit command frames and sixteen-bit data frames clocked over the
// bidirectional Data line, plus the high-voltage mode entry and exit
// sequences that bracket a programming session. It is built directly on
// top of package timing the way driver/tmc2209 in the reference
// application layers register-level framing over its PIO UART.
package icsp

import (
	"picprog.dev/timing"
)

// Commands is the set of wire-level operations the programmer engine
// drives. Commander is the production implementation; tests substitute a
// fake target so the engine can be exercised without real hardware.
type Commands interface {
	EnterMode()
	ExitMode()
	LoadData(word uint16)
	ReadData() uint16
	IncrementAddress()
	BeginProgramming()
	EndProgramming()
	BulkErase()
}

// Commander drives the ICSP wire protocol over a set of timing.Pins.
type Commander struct {
	pins timing.Pins
}

// New returns a Commander driving pins. All four lines are assumed to be
// at their power-on state (driven low) when New is called.
func New(pins timing.Pins) *Commander {
	return &Commander{pins: pins}
}

// EnterMode raises Vdd then Vpp with the datasheet-mandated gap between
// them, placing the target in high-voltage programming mode. Clock and
// Data are left low.
func (c *Commander) EnterMode() {
	c.pins.SetLine(timing.Vpp, timing.Low)
	c.pins.SetLine(timing.Clock, timing.Low)
	c.pins.SetLine(timing.Data, timing.Low)
	c.pins.SetLine(timing.Vdd, timing.High)
	c.pins.Delay(timing.T_PPDP)
	c.pins.SetLine(timing.Vpp, timing.High)
	c.pins.Delay(timing.T_HLD0)
}

// ExitMode drops Vpp then Vdd, returning the target to normal run mode
// after the hold time the datasheet requires before the lines may be
// reused.
func (c *Commander) ExitMode() {
	c.pins.SetLine(timing.Vpp, timing.Low)
	c.pins.SetLine(timing.Vdd, timing.Low)
	c.pins.Delay(timing.T_RESET)
}

// clockBit drives Data to bit, pulses Clock high then low with the
// datasheet's setup and hold times, and leaves Data driven at bit's level.
func (c *Commander) clockBit(bit bool) {
	level := timing.Low
	if bit {
		level = timing.High
	}
	c.pins.SetLine(timing.Data, level)
	c.pins.SetLine(timing.Clock, timing.High)
	c.pins.Delay(timing.T_SET)
	c.pins.SetLine(timing.Clock, timing.Low)
	c.pins.Delay(timing.T_HLD1)
}

// sampleBit pulses Clock and samples Data on the high phase, the read-side
// mirror of clockBit. Data must already be configured as an input.
func (c *Commander) sampleBit() bool {
	c.pins.SetLine(timing.Clock, timing.High)
	c.pins.Delay(timing.T_SET)
	bit := c.pins.ReadDataLine() == timing.High
	c.pins.SetLine(timing.Clock, timing.Low)
	c.pins.Delay(timing.T_HLD1)
	return bit
}

// sendCommand clocks out the six-bit LSB-first command code.
func (c *Commander) sendCommand(code byte) {
	for i := 0; i < commandBits; i++ {
		c.clockBit(code&(1<<uint(i)) != 0)
	}
	c.pins.SetLine(timing.Data, timing.Low)
	c.pins.Delay(timing.T_DLY2)
}

// sendDataWord clocks out a sixteen-bit data-in frame: start bit, twelve
// payload bits LSB-first, two don't-care bits, stop bit.
func (c *Commander) sendDataWord(word uint16) {
	c.clockBit(false)
	for i := 0; i < payloadBits; i++ {
		c.clockBit(word&(1<<uint(i)) != 0)
	}
	c.clockBit(false)
	c.clockBit(false)
	c.clockBit(true)
	c.pins.SetLine(timing.Data, timing.Low)
}

// readDataWord clocks in a sixteen-bit data-out frame and returns the
// twelve payload bits, discarding the start, don't-care, and stop bits.
func (c *Commander) readDataWord() uint16 {
	c.pins.EnableDataInput()
	c.sampleBit() // start bit
	var word uint16
	for i := 0; i < payloadBits; i++ {
		if c.sampleBit() {
			word |= 1 << uint(i)
		}
	}
	c.sampleBit() // don't-care
	c.sampleBit() // don't-care
	c.sampleBit() // stop bit
	c.pins.SetLine(timing.Data, timing.Low)
	return word
}

// LoadData sends the Load Data For Program Memory command followed by
// word, leaving it latched for a subsequent BeginProgramming.
func (c *Commander) LoadData(word uint16) {
	c.sendCommand(loadDataCommand)
	c.sendDataWord(word)
}

// ReadData sends the Read Data From Program Memory command and returns the
// word at the current address pointer.
func (c *Commander) ReadData() uint16 {
	c.sendCommand(readDataCommand)
	return c.readDataWord()
}

// IncrementAddress advances the target's internal address pointer by one,
// wrapping at the end of its address space. It is the only operation that
// moves the pointer.
func (c *Commander) IncrementAddress() {
	c.sendCommand(incrementAddressCommand)
}

// BeginProgramming commits the latched data word to program memory at the
// current address and waits out the programming time.
func (c *Commander) BeginProgramming() {
	c.sendCommand(beginProgrammingCommand)
	c.pins.Delay(timing.T_PROG)
}

// EndProgramming discharges the programming voltage and waits out the
// discharge time.
func (c *Commander) EndProgramming() {
	c.sendCommand(endProgrammingCommand)
	c.pins.Delay(timing.T_DIS)
}

// BulkErase erases all of program memory and waits out the erase time.
func (c *Commander) BulkErase() {
	c.sendCommand(bulkEraseCommand)
	c.pins.Delay(timing.T_ERA)
}

var _ Commands = (*Commander)(nil)
