//go:build tinygo

package main

import (
	"time"

	"machine"

	"github.com/sunsetTH/Flight-Controller/drivers/tinygoboard"
	"github.com/sunsetTH/Flight-Controller/internal/flight"
	"github.com/sunsetTH/Flight-Controller/internal/ports"
	"github.com/sunsetTH/Flight-Controller/internal/prefs"
)

func newBoard() board {
	machine.DefaultUART.Configure(machine.UARTConfig{BaudRate: 115200})

	imuDev, err := tinygoboard.NewIMU(machine.I2C0)
	if err != nil {
		panic(err)
	}
	motors, err := tinygoboard.NewMotors(machine.PWM0, machine.D0, machine.D1, machine.D2, machine.D3)
	if err != nil {
		panic(err)
	}
	led, err := tinygoboard.NewLED(machine.PWM1, machine.D4, machine.D5, machine.D6)
	if err != nil {
		panic(err)
	}

	return board{
		sensor:    imuDev,
		servo:     motors,
		led:       led,
		beeper:    tinygoboard.NewBeeper(machine.D7),
		watchdog:  tinygoboard.NewWatchdog(machine.Watchdog),
		battery:   nil,
		curve:     nil,
		usb:       machineSerial{machine.USBCDC},
		radioUART: machineSerial{machine.DefaultUART},
		scale: flight.SensorScale{
			GyroToRadPerSec: (2000.0 / 32768.0) * (3.14159265 / 180.0),
			AccelToMPerSec2: (16.0 / 32768.0) * 9.80665,
		},
	}
}

func newStore() ports.Store { return &prefs.MemStore{} }

// machineSerial adapts a machine.UART/USBCDC-shaped port to
// ports.SerialPort. Both expose Buffered/ReadByte/Write with identical
// signatures on every TinyGo board target.
type machineSerial struct {
	port interface {
		Buffered() int
		ReadByte() (byte, error)
		Write(p []byte) (int, error)
	}
}

func (m machineSerial) TryReadByte() (byte, bool) {
	if m.port.Buffered() == 0 {
		return 0, false
	}
	b, err := m.port.ReadByte()
	if err != nil {
		return 0, false
	}
	return b, true
}

func (m machineSerial) ReadByteTimeout(timeout time.Duration) (byte, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b, ok := m.TryReadByte(); ok {
			return b, nil
		}
	}
	return 0, errTimeout
}

func (m machineSerial) Write(p []byte) (int, error) { return m.port.Write(p) }

var errTimeout = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string { return "flightcore: serial read timed out" }
