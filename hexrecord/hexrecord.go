// Package hexrecord parses Intel HEX records one byte at a time, the same
// byte-driven state machine original_source/src/hex_instruction.rs uses: a
// record is fed in as a stream of bytes arriving over a slow UART link,
// with no guarantee the caller has a whole line buffered before it must
// start interpreting it.
package hexrecord

import "fmt"

// state is a record's position in the ":BBAAAARRDD...DDCC\n" grammar.
type state int

const (
	stateWaitForColon state = iota
	stateByteCount
	stateAddress
	stateRecordType
	stateData
	stateChecksum
	stateDone
)

// MaxDataBytes bounds the payload a single record can carry; Intel HEX
// limits the byte count field to a single byte, so this is its maximum
// value.
const MaxDataBytes = 255

// Record accumulates one Intel HEX record as its bytes arrive.
type Record struct {
	state state

	nibbles          int
	nibbleHigh       byte
	pending          uint16
	addressByteCount int

	ByteCount  byte
	Address    uint16
	RecordType byte
	Data       [MaxDataBytes]byte
	DataLen    int
	Checksum   byte
}

// RecordType values this parser recognizes.
const (
	RecordTypeData            = 0x00
	RecordTypeEndOfFile       = 0x01
	RecordTypeExtendedAddress = 0x04
)

// Reset clears the record back to its initial state, ready to parse a new
// line starting from its leading colon.
func (r *Record) Reset() {
	*r = Record{}
}

// Done reports whether a complete record, including its checksum byte,
// has been accumulated.
func (r *Record) Done() bool {
	return r.state == stateDone
}

// AddByte feeds the next byte of the record to the parser. Bytes before
// the leading ':' are ignored, matching the original firmware's tolerance
// for stray newlines between records. A byte that is not a hex digit is
// folded into the current field unchanged rather than rejected; this
// corrupts the field and is caught downstream by ChecksumValid, never by
// AddByte itself.
func (r *Record) AddByte(b byte) {
	if r.state == stateWaitForColon {
		if b == ':' {
			r.state = stateByteCount
		}
		return
	}
	if r.state == stateDone {
		return
	}

	nibble := hexNibbleOrPassthrough(b)

	if r.nibbles == 0 {
		r.nibbleHigh = nibble
		r.nibbles = 1
		return
	}
	byteVal := r.nibbleHigh<<4 | nibble
	r.nibbles = 0

	switch r.state {
	case stateByteCount:
		r.ByteCount = byteVal
		r.state = stateAddress
		r.pending = 0
		r.nibbles = 0
		r.addressByteCount = 0
	case stateAddress:
		r.pending = r.pending<<8 | uint16(byteVal)
		r.addressByteCount++
		if r.addressByteCount == 2 {
			r.Address = r.pending
			r.state = stateRecordType
		}
	case stateRecordType:
		r.RecordType = byteVal
		if r.ByteCount == 0 {
			r.state = stateChecksum
		} else {
			r.state = stateData
		}
	case stateData:
		r.Data[r.DataLen] = byteVal
		r.DataLen++
		if r.DataLen == int(r.ByteCount) {
			r.state = stateChecksum
		}
	case stateChecksum:
		r.Checksum = byteVal
		r.state = stateDone
	}
}

// IsEndOfFile reports whether this record is the Intel HEX end-of-file
// marker.
func (r *Record) IsEndOfFile() bool {
	return r.Done() && r.RecordType == RecordTypeEndOfFile
}

// ComputeChecksum returns the record's expected checksum byte: the
// two's-complement negation of the sum of the byte count, address,
// record type, and data bytes, computed in a wider accumulator so the
// negation is not truncated before the final mask to one byte.
func (r *Record) ComputeChecksum() byte {
	var sum uint16
	sum += uint16(r.ByteCount)
	sum += uint16(r.Address >> 8)
	sum += uint16(r.Address & 0xFF)
	sum += uint16(r.RecordType)
	for i := 0; i < r.DataLen; i++ {
		sum += uint16(r.Data[i])
	}
	return byte((^sum + 1) & 0xFF)
}

// ChecksumValid reports whether the record's transmitted checksum matches
// ComputeChecksum.
func (r *Record) ChecksumValid() bool {
	return r.Checksum == r.ComputeChecksum()
}

// String renders the record back into its ":BBAAAARRDD...DDCC" wire form,
// upper-case as Intel HEX conventionally is, primarily for tests that
// round-trip a record through the parser.
func (r *Record) String() string {
	s := fmt.Sprintf(":%02X%04X%02X", r.ByteCount, r.Address, r.RecordType)
	for i := 0; i < r.DataLen; i++ {
		s += fmt.Sprintf("%02X", r.Data[i])
	}
	s += fmt.Sprintf("%02X", r.Checksum)
	return s
}

// hexNibbleOrPassthrough decodes an ASCII hex digit to its 4-bit value.
// A byte that is not a valid hex digit is returned as-is, so it still
// occupies the field slot but almost certainly yields the wrong value,
// which ChecksumValid will catch.
func hexNibbleOrPassthrough(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	default:
		return b
	}
}
