// Package session implements the top-level host handshake: waiting for a
// session trigger, streaming and acknowledging Intel HEX records during a
// programming session, or dumping memory during a read session, the way
// driver/mjolnir's command/ack loop in the reference application drives
// its device protocol over a plain io.ReadWriter.
package session

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"picprog.dev/hexrecord"
	"picprog.dev/programmer"
	"picprog.dev/target"
)

// State is the session's top-level state, matching spec section 4.5.
type State int

const (
	StateWaiting State = iota
	StateProgramming
	StateReading
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "Waiting"
	case StateProgramming:
		return "Programming"
	case StateReading:
		return "Reading"
	case StateFinished:
		return "Finished"
	default:
		return "unknown"
	}
}

// Defaults for the configuration word and user ID, used until a
// programming record overrides them.
const (
	defaultConfig = 0xFF
	defaultUserID = 0xAA
)

// Controller owns the session state machine and routes accepted records
// to a programmer.Engine.
type Controller struct {
	eng *programmer.Engine
	tgt target.Map

	state  State
	config uint16
	userID uint16
}

// New returns a Controller that drives eng using tgt's special addresses
// to recognize configuration and user-ID records.
func New(eng *programmer.Engine, tgt target.Map) *Controller {
	return &Controller{
		eng:    eng,
		tgt:    tgt,
		state:  StateWaiting,
		config: defaultConfig,
		userID: defaultUserID,
	}
}

// State returns the controller's current top-level state.
func (c *Controller) State() State {
	return c.state
}

// Run announces readiness, waits for a session trigger, and runs that
// session to completion. It returns once the session reaches Finished, or
// if r or w return an error. Run does not loop forever: the caller is
// responsible for calling BlinkForever once Run returns successfully, the
// way the firmware blinks its status LED after Finished is reached.
func (c *Controller) Run(r io.Reader, w io.Writer) error {
	if _, err := io.WriteString(w, "Programmer ready!\n"); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	br := bufio.NewReader(r)
	trigger, err := waitForTrigger(br)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	switch trigger {
	case 'P':
		c.state = StateProgramming
		if err := c.runProgramming(br, w); err != nil {
			return fmt.Errorf("session: %w", err)
		}
	case 'D':
		c.state = StateReading
		if err := c.runReading(w); err != nil {
			return fmt.Errorf("session: %w", err)
		}
	}
	c.state = StateFinished
	return nil
}

// waitForTrigger reads bytes until it sees 'P' or 'D'; any other byte is
// ignored, matching the "unknown session-trigger byte while Waiting" rule.
func waitForTrigger(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == 'P' || b == 'D' {
			return b, nil
		}
	}
}

// runProgramming implements the programming handshake of spec section
// 4.5: feed records to the parser, ack Y and program on a valid checksum,
// ack R and discard on a mismatch, and finish on the end-of-file record.
func (c *Controller) runProgramming(r *bufio.Reader, w io.Writer) error {
	c.eng.StartProgramming()
	var rec hexrecord.Record
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b == '\r' {
			continue
		}
		rec.AddByte(b)
		if !rec.Done() {
			continue
		}

		if rec.IsEndOfFile() {
			if _, err := io.WriteString(w, "Y\n"); err != nil {
				return err
			}
			c.eng.StopProgramming(c.config, c.userID)
			_, err := io.WriteString(w, "done\n")
			return err
		}

		if !rec.ChecksumValid() {
			if _, err := io.WriteString(w, "R\n"); err != nil {
				return err
			}
			rec.Reset()
			continue
		}

		if rec.RecordType == hexrecord.RecordTypeData {
			data := uint16(rec.Data[0])<<8 | uint16(rec.Data[1])
			switch rec.Address {
			case c.tgt.ConfigurationWordAddress:
				c.config = data & 0xFF
			case c.tgt.UserIDFirstAddress:
				c.userID = data & 0xFF
			}
			c.eng.Program(rec.Address, data)
		}
		if _, err := io.WriteString(w, "Y\n"); err != nil {
			return err
		}
		rec.Reset()
	}
}

// runReading implements the reading handshake of spec section 4.5: dump
// every word starting at the configuration address, wrapping once all the
// way around the address space.
func (c *Controller) runReading(w io.Writer) error {
	c.eng.BeginReading()
	start := c.eng.Address()
	for {
		address, data := c.eng.ReadWord()
		if _, err := fmt.Fprintf(w, "A:%04X | D:%04X\n", address, data); err != nil {
			return err
		}
		c.eng.AdvanceAddress()
		if c.eng.Address() == start {
			break
		}
	}
	c.eng.EndReading()
	_, err := io.WriteString(w, "done\n")
	return err
}

// LED is the status indicator driven once a session reaches Finished.
type LED interface {
	SetOn(on bool)
}

// BlinkForever toggles led on and off at interval, forever. Run never
// calls this itself, since doing so would make the protocol logic
// unreturning and untestable; production entry points call it after Run
// returns successfully, matching "Finished: blink LED every 1s, forever."
func BlinkForever(led LED, interval time.Duration) {
	on := false
	for {
		on = !on
		led.SetOn(on)
		time.Sleep(interval)
	}
}
