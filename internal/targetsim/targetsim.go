// Package targetsim is a software model of a PIC10/12-class target chip's
// ICSP command interface, standing in for real hardware in tests the way
// driver/mjolnir's sim.go stands in for a real serial device. Unlike that
// channel-driven simulator this one is a plain synchronous struct: the
// protocol it models has no concurrency of its own.
package targetsim

import (
	"picprog.dev/icsp"
	"picprog.dev/target"
)

// erasedWord is the value every word reads back as after a bulk erase.
const erasedWord = 0x0FFF

// Chip models program memory, the address pointer, and the data latch of
// a single target device.
type Chip struct {
	tgt     target.Map
	mem     map[uint16]uint16
	address uint16
	latch   uint16
	inMode  bool

	// EnterCount and ExitCount record how many times mode was entered and
	// exited.
	EnterCount int
	ExitCount  int
}

// New returns a Chip whose memory starts out erased, matching the state a
// real device is in before its first programming session.
func New(tgt target.Map) *Chip {
	c := &Chip{tgt: tgt, mem: make(map[uint16]uint16)}
	return c
}

// Word returns the value stored at addr, defaulting to the erased value
// for any address never written.
func (c *Chip) Word(addr uint16) uint16 {
	if w, ok := c.mem[addr]; ok {
		return w
	}
	return erasedWord
}

// Address returns the chip's current address pointer.
func (c *Chip) Address() uint16 {
	return c.address
}

// Latch returns the value last handed to LoadData, whether or not it was
// ever committed with BeginProgramming. A raw Load Data with no
// accompanying program cycle, as StopProgramming does for the backup
// OSCCAL word, only ever reaches here.
func (c *Chip) Latch() uint16 {
	return c.latch
}

func (c *Chip) EnterMode() {
	c.address = c.tgt.ConfigurationWordAddress
	c.inMode = true
	c.EnterCount++
}

func (c *Chip) ExitMode() {
	c.inMode = false
	c.ExitCount++
}

func (c *Chip) LoadData(word uint16) {
	c.latch = word & 0x0FFF
}

func (c *Chip) ReadData() uint16 {
	return c.Word(c.address)
}

func (c *Chip) IncrementAddress() {
	c.address = (c.address + 1) % c.tgt.AddressSize
}

func (c *Chip) BeginProgramming() {
	c.mem[c.address] = c.latch
}

func (c *Chip) EndProgramming() {}

func (c *Chip) BulkErase() {
	c.mem = make(map[uint16]uint16)
}

var _ icsp.Commands = (*Chip)(nil)
