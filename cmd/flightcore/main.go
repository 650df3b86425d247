// Command flightcore is the on-target entry point: it wires a hardware
// backend into the fixed-rate flight loop and runs until the board resets.
// The backend itself is selected at compile time by build tag, the same way
// the radio decoder is selected between ibus and crsf/elrs.
package main

import (
	"context"
	"time"

	"github.com/sunsetTH/Flight-Controller/internal/flight"
	"github.com/sunsetTH/Flight-Controller/internal/imu"
	"github.com/sunsetTH/Flight-Controller/internal/ports"
	"github.com/sunsetTH/Flight-Controller/internal/prefs"
	"github.com/sunsetTH/Flight-Controller/internal/radio"
	"github.com/sunsetTH/Flight-Controller/internal/sensors"
	"github.com/sunsetTH/Flight-Controller/internal/telemetry"
)

// board bundles every hardware collaborator the loop needs. Exactly one
// board_*.go file (selected by build tag) provides newBoard and newStore.
type board struct {
	sensor   ports.IMUSensor
	servo    ports.ServoOutput
	led      ports.LEDOutput
	beeper   ports.Beeper
	watchdog ports.Watchdog
	battery  flight.BatteryCycle
	curve    flight.VoltageCurve
	usb      ports.SerialPort
	radioUART ports.SerialPort
	scale    flight.SensorScale
}

func main() {
	store := newStore()
	pm := prefs.NewManager(context.Background(), store)

	b := newBoard()

	rd := &radio.Shared{}
	est := imu.New(1.0 / float64(flight.UpdateRateHz))
	ctrl := flight.NewControllers(flight.UpdateRateHz)

	loop := flight.NewLoop(b.sensor, b.servo, rd, b.led, b.beeper, b.watchdog, b.battery, b.curve, pm, est, ctrl, b.scale)
	link := telemetry.NewLink(b.usb, b.radioUART, pm, loop)

	loop.OnTick = func(s *flight.State, frame sensors.Frame, rf radio.Frame, motors flight.MotorOutputs) {
		link.PollOnce(context.Background(), frame, rf, motors)
	}

	if err := loop.Run(context.Background()); err != nil {
		for {
			time.Sleep(time.Second)
		}
	}
}
