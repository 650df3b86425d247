// Package flight implements the fixed-rate flight loop: mode arbitration,
// arm/disarm gesture detection, cascade PID control, motor mixing, LED
// status, and the battery monitor ticker.
package flight

import (
	"github.com/sunsetTH/Flight-Controller/internal/pidctrl"
	"github.com/sunsetTH/Flight-Controller/internal/prefs"
)

// Mode is the flight-mode enumeration arbitrated from the gear switch.
type Mode int

const (
	ModeManual Mode = iota
	ModeAssisted
	ModeAutomatic
	ModeCalibrateCompass
)

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeAssisted:
		return "assisted"
	case ModeAutomatic:
		return "automatic"
	case ModeCalibrateCompass:
		return "calibrate-compass"
	default:
		return "unknown"
	}
}

// Stick and gesture thresholds from the arming/mode-arbitration design.
const (
	GearAssistedThreshold = 512
	GearManualThreshold   = -512

	StickArmThreshold  = 750
	AltiThrottleDeadband = 100
	ThrottleKillThreshold = -800
	ThrottleKillStickThreshold = -900

	CompassCalHoldTicks = 250
)

// Controllers bundles every PID stage the cascade needs, seeded to the
// defaults the cascade design documents.
type Controllers struct {
	Roll, Pitch, Yaw *pidctrl.Controller
	Alti, Ascent     *pidctrl.Controller
}

// NewControllers builds the seeded controller set. updateRate is the loop
// frequency in Hz (nominally 250) that several gains are scaled by.
func NewControllers(updateRate int32) *Controllers {
	roll := pidctrl.New(8000, 0, 20000*updateRate, 12)
	roll.SetMaxOutput(3000)
	roll.SetPIMax(100)
	roll.SetMaxIntegral(1900)
	roll.SetDerivativeFilter(128)

	pitch := pidctrl.New(8000, 0, 20000*updateRate, 12)
	pitch.SetMaxOutput(3000)
	pitch.SetPIMax(100)
	pitch.SetMaxIntegral(1900)
	pitch.SetDerivativeFilter(128)

	yaw := pidctrl.New(15000, 200*updateRate, 10000*updateRate, 12)
	yaw.SetMaxOutput(5000)
	yaw.SetPIMax(100)
	yaw.SetMaxIntegral(2000)
	yaw.SetDerivativeFilter(192)

	alti := pidctrl.New(600, 500*updateRate, 0, 14)
	alti.SetMaxOutput(5000)
	alti.SetPIMax(1000)
	alti.SetMaxIntegral(4000)

	ascent := pidctrl.New(1100, 0, 0, 12)
	ascent.SetMaxOutput(4000)
	ascent.SetPIMax(500)
	ascent.SetMaxIntegral(2000)

	return &Controllers{Roll: roll, Pitch: pitch, Yaw: yaw, Alti: alti, Ascent: ascent}
}

// State is the process-wide flight state; only the flight loop mutates it.
type State struct {
	FlightEnabled bool
	Mode          Mode
	IsHolding     bool

	DesiredAltitude  int32
	DesiredAscentRate int32

	GyroZero [3]int32

	FlightEnableStep  int32
	DisarmStep        int32
	CompassConfigStep int32

	GyroRoll, GyroPitch, GyroYaw int32 // filtered body rates

	AccelZSmooth int32

	BatteryMonitorDelay int32
	BatteryVolts         int32
	BatteryAlarmTicks    int32

	LoopCycles int32
	Counter    int32

	Prefs prefs.Preferences
}

// NewState returns a disarmed, Manual-mode State seeded from p. The battery
// monitor startup delay is seeded to a 2-second, 16-tick-aligned countdown
// (matching the original firmware's boot-time settle period) during which
// UpdateBattery does not yet sample voltage.
func NewState(p prefs.Preferences) *State {
	return &State{
		Mode:                ModeManual,
		Prefs:               p,
		BatteryMonitorDelay: (UpdateRateHz * 2) &^ 15,
	}
}
