// Package programmer sequences icsp.Commands into the logical operations
// a programming session needs: entering and leaving high voltage mode,
// seeking the monotonic address pointer, writing and reading words, and
// preserving the factory oscillator calibration word across a bulk erase.
// The operation order follows spec section 4.3 and driver/osccal_bits.rs
// from the original firmware, including the asymmetry between how the
// primary and backup OSCCAL words are written back.
package programmer

import (
	"picprog.dev/icsp"
	"picprog.dev/target"
)

// retlwOpcode is the top nibble of a baseline-core RETLW k
// instruction; OSCCAL is restored as RETLW calibration so that calling the
// address on power-on leaves the calibration value in W.
const retlwOpcode = 0x0C00

// Engine drives a target chip's ICSP command interface using the fixed
// addresses in a target.Map. It mirrors the target's address pointer in
// address so callers can Seek without tracking it themselves. The mirror
// is only valid because entering programming mode always leaves the real
// pointer at ConfigurationWordAddress and the pointer only ever advances
// through Increment Address.
type Engine struct {
	cmds    icsp.Commands
	tgt     target.Map
	address uint16

	osccalBits       uint16
	osccalBackupBits uint16
}

// New returns an Engine that drives cmds using tgt's addresses.
func New(cmds icsp.Commands, tgt target.Map) *Engine {
	return &Engine{cmds: cmds, tgt: tgt}
}

// Address returns the engine's current view of the target's address
// pointer.
func (e *Engine) Address() uint16 {
	return e.address
}

func (e *Engine) enterMode() {
	e.cmds.EnterMode()
	e.address = e.tgt.ConfigurationWordAddress
}

func (e *Engine) exitMode() {
	e.cmds.ExitMode()
}

func (e *Engine) advance() {
	e.cmds.IncrementAddress()
	e.address = (e.address + 1) % e.tgt.AddressSize
}

// Seek advances the pointer by repeated Increment Address commands until
// it equals addr. The target offers no way to move the pointer backward
// or read it directly, so this always advances forward, wrapping at the
// end of the address space if addr is numerically behind the current
// position.
func (e *Engine) Seek(addr uint16) {
	for e.address != addr {
		e.advance()
	}
}

// saveOSCCAL enters programming mode, reads the factory calibration word
// and its backup copy, and leaves mode. It is a self-contained enter/exit
// pair that runs before StartProgramming's own mode entry, since the
// erase that follows would otherwise destroy both values first.
func (e *Engine) saveOSCCAL() {
	e.enterMode()
	e.Seek(e.tgt.OSCCALAddress)
	e.osccalBits = e.cmds.ReadData()
	e.Seek(e.tgt.BackupOSCCALAddress)
	e.osccalBackupBits = e.cmds.ReadData() & 0xFF
	e.exitMode()
}

// restoreOSCCAL enters programming mode and writes both calibration
// words back: the primary word is written as a full RETLW instruction
// with a committed program cycle, but the backup word is only ever
// latched with a raw Load Data and no Begin/End Programming pulse.
func (e *Engine) restoreOSCCAL() {
	e.enterMode()
	e.Seek(e.tgt.OSCCALAddress)
	e.cmds.LoadData(retlwOpcode | (e.osccalBits & 0xFF))
	e.cmds.BeginProgramming()
	e.cmds.EndProgramming()
	e.Seek(e.tgt.BackupOSCCALAddress)
	e.cmds.LoadData(e.osccalBackupBits)
	e.exitMode()
}

// StartProgramming saves the factory OSCCAL words, enters programming
// mode, advances the pointer one step off the reserved configuration
// slot, and bulk erases program memory. The single post-entry increment
// before the erase reproduces start_programming in the original firmware.
func (e *Engine) StartProgramming() {
	e.saveOSCCAL()
	e.enterMode()
	e.advance()
	e.cmds.BulkErase()
}

// Program seeks to address, loads data into the latch, and commits it
// with a full begin/end programming cycle.
func (e *Engine) Program(address, data uint16) {
	e.Seek(address)
	e.cmds.LoadData(data)
	e.cmds.BeginProgramming()
	e.cmds.EndProgramming()
}

// ReadWord returns the current address and the word stored there,
// without advancing the pointer.
func (e *Engine) ReadWord() (address, data uint16) {
	return e.address, e.cmds.ReadData()
}

// AdvanceAddress moves the pointer forward by one word.
func (e *Engine) AdvanceAddress() {
	e.advance()
}

// StopProgramming exits the current programming mode, restores the
// factory OSCCAL words, re-enters mode, writes the configuration word and
// user ID, and exits for good. The configuration word is programmed
// without an explicit seek: mode entry always leaves the pointer at
// ConfigurationWordAddress already.
func (e *Engine) StopProgramming(config, userID uint16) {
	e.exitMode()
	e.restoreOSCCAL()
	e.enterMode()
	e.Program(e.tgt.ConfigurationWordAddress, config)
	e.Program(e.tgt.UserIDFirstAddress, userID)
	e.exitMode()
}

// BeginReading enters programming mode, leaving the pointer at
// ConfigurationWordAddress, ready for a sequence of ReadWord/
// AdvanceAddress calls.
func (e *Engine) BeginReading() {
	e.enterMode()
}

// EndReading leaves programming mode after a read session.
func (e *Engine) EndReading() {
	e.exitMode()
}
