package icsp

import (
	"testing"
	"time"

	"picprog.dev/timing"
)

// fakePins is a software model of the four ICSP lines: it records every
// level driven onto Clock and Data and lets a test script queue up bits to
// hand back on EnableDataInput/ReadDataLine, mirroring driver/mjolnir's
// sim.go stand-in for real hardware.
type fakePins struct {
	clock, data, vpp, vdd timing.Level
	inputMode             bool
	vppRoseBeforeVdd      bool           // Vpp was driven High while Vdd was still Low
	clockHighAt           []timing.Level // Data level sampled each time Clock goes high while in output mode
	readQueue             []timing.Level
	readPos               int
}

func (f *fakePins) SetLine(line timing.Line, level timing.Level) {
	switch line {
	case timing.Clock:
		if level == timing.High && !f.inputMode {
			f.clockHighAt = append(f.clockHighAt, f.data)
		}
		f.clock = level
	case timing.Data:
		f.data = level
		f.inputMode = false
	case timing.Vpp:
		if level == timing.High && f.vdd == timing.Low {
			f.vppRoseBeforeVdd = true
		}
		f.vpp = level
	case timing.Vdd:
		f.vdd = level
	}
}

func (f *fakePins) EnableDataInput() {
	f.inputMode = true
}

func (f *fakePins) ReadDataLine() timing.Level {
	if f.readPos >= len(f.readQueue) {
		return timing.Low
	}
	l := f.readQueue[f.readPos]
	f.readPos++
	return l
}

func (f *fakePins) Delay(time.Duration) {}

func bitsLSBFirst(n int, value uint64) []timing.Level {
	out := make([]timing.Level, n)
	for i := 0; i < n; i++ {
		out[i] = timing.Level(value&(1<<uint(i)) != 0)
	}
	return out
}

func TestEnterModeSequencesVddBeforeVpp(t *testing.T) {
	pins := &fakePins{}
	c := New(pins)
	c.EnterMode()
	if pins.vppRoseBeforeVdd {
		t.Fatal("EnterMode raised Vpp while Vdd was still Low")
	}
	if pins.vdd != timing.High || pins.vpp != timing.High {
		t.Fatalf("EnterMode left Vdd=%v Vpp=%v, want both High", pins.vdd, pins.vpp)
	}
}

func TestExitModeDropsBothRails(t *testing.T) {
	pins := &fakePins{vpp: timing.High, vdd: timing.High}
	c := New(pins)
	c.ExitMode()
	if pins.vpp != timing.Low || pins.vdd != timing.Low {
		t.Fatalf("ExitMode left Vpp=%v Vdd=%v, want both Low", pins.vpp, pins.vdd)
	}
}

func TestSendCommandClocksSixBitsLSBFirst(t *testing.T) {
	pins := &fakePins{}
	c := New(pins)
	c.sendCommand(loadDataCommand)
	want := bitsLSBFirst(commandBits, loadDataCommand)
	if len(pins.clockHighAt) != commandBits {
		t.Fatalf("got %d clock pulses, want %d", len(pins.clockHighAt), commandBits)
	}
	for i, w := range want {
		if pins.clockHighAt[i] != w {
			t.Errorf("bit %d: got %v, want %v", i, pins.clockHighAt[i], w)
		}
	}
}

func TestSendDataWordFramesStartPayloadAndStop(t *testing.T) {
	pins := &fakePins{}
	c := New(pins)
	const word = 0x0AB // 12-bit payload
	c.sendDataWord(word)
	if len(pins.clockHighAt) != dataFrameBits {
		t.Fatalf("got %d clock pulses, want %d", len(pins.clockHighAt), dataFrameBits)
	}
	if pins.clockHighAt[0] != timing.Low {
		t.Errorf("start bit = %v, want Low", pins.clockHighAt[0])
	}
	payload := bitsLSBFirst(payloadBits, word)
	for i, w := range payload {
		if got := pins.clockHighAt[1+i]; got != w {
			t.Errorf("payload bit %d: got %v, want %v", i, got, w)
		}
	}
	if pins.clockHighAt[13] != timing.Low || pins.clockHighAt[14] != timing.Low {
		t.Errorf("don't-care bits = %v, %v, want both Low", pins.clockHighAt[13], pins.clockHighAt[14])
	}
	if pins.clockHighAt[15] != timing.High {
		t.Errorf("stop bit = %v, want High", pins.clockHighAt[15])
	}
}

func TestReadDataWordExtractsPayload(t *testing.T) {
	pins := &fakePins{}
	c := New(pins)
	const word uint16 = 0x0C3A & 0x0FFF
	queue := make([]timing.Level, 0, dataFrameBits)
	queue = append(queue, timing.Low) // start
	queue = append(queue, bitsLSBFirst(payloadBits, uint64(word))...)
	queue = append(queue, timing.Low, timing.Low, timing.High) // don't-care, don't-care, stop
	pins.readQueue = queue
	got := c.ReadData()
	if got != word {
		t.Fatalf("ReadData() = %#03x, want %#03x", got, word)
	}
}

func TestIncrementAddressSendsItsCommand(t *testing.T) {
	pins := &fakePins{}
	c := New(pins)
	c.IncrementAddress()
	want := bitsLSBFirst(commandBits, incrementAddressCommand)
	for i, w := range want {
		if pins.clockHighAt[i] != w {
			t.Errorf("bit %d: got %v, want %v", i, pins.clockHighAt[i], w)
		}
	}
}

func TestBeginEndProgrammingAndBulkEraseSendDistinctCommands(t *testing.T) {
	cases := []struct {
		name string
		run  func(c *Commander)
		code byte
	}{
		{"BeginProgramming", func(c *Commander) { c.BeginProgramming() }, beginProgrammingCommand},
		{"EndProgramming", func(c *Commander) { c.EndProgramming() }, endProgrammingCommand},
		{"BulkErase", func(c *Commander) { c.BulkErase() }, bulkEraseCommand},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pins := &fakePins{}
			c := New(pins)
			tc.run(c)
			want := bitsLSBFirst(commandBits, uint64(tc.code))
			if len(pins.clockHighAt) != commandBits {
				t.Fatalf("got %d clock pulses, want %d", len(pins.clockHighAt), commandBits)
			}
			for i, w := range want {
				if pins.clockHighAt[i] != w {
					t.Errorf("bit %d: got %v, want %v", i, pins.clockHighAt[i], w)
				}
			}
		})
	}
}
