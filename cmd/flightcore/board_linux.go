//go:build !tinygo

package main

import (
	"github.com/sunsetTH/Flight-Controller/drivers/hostserial"
	"github.com/sunsetTH/Flight-Controller/drivers/linuxsbc"
	"github.com/sunsetTH/Flight-Controller/internal/flight"
	"github.com/sunsetTH/Flight-Controller/internal/ports"
	"github.com/sunsetTH/Flight-Controller/internal/prefs"
)

func newBoard() board {
	if err := linuxsbc.Init(); err != nil {
		panic(err)
	}

	imuDev, err := linuxsbc.NewIMU("/dev/spidev0.0", "GPIO24")
	if err != nil {
		panic(err)
	}
	motors, err := linuxsbc.NewMotors([4]string{"GPIO17", "GPIO18", "GPIO27", "GPIO22"})
	if err != nil {
		panic(err)
	}
	led, err := linuxsbc.NewLED("GPIO5", "GPIO6", "GPIO13")
	if err != nil {
		panic(err)
	}
	beeper, err := linuxsbc.NewBeeper("GPIO12")
	if err != nil {
		panic(err)
	}
	wd, err := linuxsbc.NewWatchdog("/dev/watchdog")
	if err != nil {
		wd = nil
	}

	usb, err := hostserial.Open("/dev/ttyACM0", 115200)
	if err != nil {
		usb = nil
	}
	radioUART, err := hostserial.Open("/dev/ttyAMA0", 57600)
	if err != nil {
		radioUART = nil
	}

	return board{
		sensor:    imuDev,
		servo:     motors,
		led:       led,
		beeper:    beeper,
		watchdog:  watchdogOrNil(wd),
		battery:   nil,
		curve:     nil,
		usb:       serialOrNil(usb),
		radioUART: serialOrNil(radioUART),
		scale: flight.SensorScale{
			GyroToRadPerSec: (2000.0 / 32768.0) * (3.14159265 / 180.0),
			AccelToMPerSec2: (16.0 / 32768.0) * 9.80665,
		},
	}
}

func newStore() ports.Store { return &prefs.MemStore{} }

// watchdogOrNil and serialOrNil avoid boxing a nil *T into a non-nil
// interface value, which would otherwise make the loop's nil checks on
// these fields misfire.
func watchdogOrNil(wd *linuxsbc.Watchdog) ports.Watchdog {
	if wd == nil {
		return nil
	}
	return wd
}

func serialOrNil(p *hostserial.Port) ports.SerialPort {
	if p == nil {
		return nil
	}
	return p
}
