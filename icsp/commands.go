package icsp

// The six-bit command codes the target's ICSP state machine recognizes,
// transmitted LSB-first. Values and ordering follow the target family's
// programming specification exactly; see driver/commands.rs in the
// original firmware this layer replaces.
const (
	loadDataCommand         = 0b000010
	readDataCommand         = 0b000100
	incrementAddressCommand = 0b000110
	beginProgrammingCommand = 0b001000
	endProgrammingCommand   = 0b001110
	bulkEraseCommand        = 0b001001
)

const commandBits = 6

// dataFrameBits is the width of a data-in/data-out transaction: one start
// bit, twelve payload bits, two don't-care bits, one stop bit.
const dataFrameBits = 16

// payloadBits is the width of a program-memory word.
const payloadBits = 12
