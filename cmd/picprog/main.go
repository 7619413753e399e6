// Command picprog drives a bit-banged ICSP programming session against a
// PIC10/12-class target chip over a host UART link, the way
// cmd/controller wires up the reference application's Raspberry Pi
// hardware: resolve GPIO pins and a serial device, then hand them to the
// protocol layers above.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tarm/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"picprog.dev/driver/icspio"
	"picprog.dev/icsp"
	"picprog.dev/programmer"
	"picprog.dev/session"
	"picprog.dev/target"
)

func main() {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(2)
	}
}

func run() error {
	var (
		device   = flag.String("device", "/dev/ttyUSB0", "serial device the host-side ICSP UART link is attached to")
		baud     = flag.Int("baud", 57600, "UART baud rate")
		preset   = flag.String("target", "pic10f200", "target family preset name")
		pinVpp   = flag.String("pin-vpp", "GPIO17", "GPIO line driving the target's Vpp programming voltage enable")
		pinVdd   = flag.String("pin-vdd", "GPIO27", "GPIO line driving the target's Vdd")
		pinClock = flag.String("pin-clock", "GPIO22", "GPIO line driving the target's Clock")
		pinData  = flag.String("pin-data", "GPIO23", "GPIO line driving the target's bidirectional Data")
		pinLED   = flag.String("pin-led", "GPIO24", "GPIO line driving the status LED")
	)
	flag.Parse()

	tgt, err := target.Lookup(*preset)
	if err != nil {
		return fmt.Errorf("picprog: %w", err)
	}

	pins, err := icspio.Open(icspio.PinNames{
		Vpp:   *pinVpp,
		Vdd:   *pinVdd,
		Clock: *pinClock,
		Data:  *pinData,
	})
	if err != nil {
		return fmt.Errorf("picprog: %w", err)
	}

	led := gpioreg.ByName(*pinLED)
	if led == nil {
		return fmt.Errorf("picprog: no such GPIO pin %q", *pinLED)
	}
	if err := led.Out(gpio.Low); err != nil {
		return fmt.Errorf("picprog: configure LED pin: %w", err)
	}

	port, err := serial.OpenPort(&serial.Config{Name: *device, Baud: *baud})
	if err != nil {
		return fmt.Errorf("picprog: open %s: %w", *device, err)
	}
	defer port.Close()

	cmds := icsp.New(pins)
	eng := programmer.New(cmds, tgt)
	ctrl := session.New(eng, tgt)

	if err := ctrl.Run(port, port); err != nil {
		return fmt.Errorf("picprog: %w", err)
	}

	session.BlinkForever(gpioLED{led}, time.Second)
	return nil
}

// gpioLED adapts a periph.io gpio.PinOut to session.LED.
type gpioLED struct {
	pin gpio.PinOut
}

func (l gpioLED) SetOn(on bool) {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	l.pin.Out(level)
}
