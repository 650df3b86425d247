package flight

import (
	"testing"

	"github.com/sunsetTH/Flight-Controller/internal/prefs"
	"github.com/sunsetTH/Flight-Controller/internal/radio"
	"github.com/sunsetTH/Flight-Controller/internal/sensors"
)

// fakeEstimator is a deterministic stand-in for the IMU contract, letting
// these tests drive specific diff/altitude values without a real filter.
type fakeEstimator struct {
	roll, pitch, yaw int32
	alti, ascent     int32
	thrust           int32
	resetOrientation int
	resetYaw         int
}

func (f *fakeEstimator) RollDiff() int32     { return f.roll }
func (f *fakeEstimator) PitchDiff() int32    { return f.pitch }
func (f *fakeEstimator) YawDiff() int32      { return f.yaw }
func (f *fakeEstimator) AltiEst() int32      { return f.alti }
func (f *fakeEstimator) AscentEst() int32    { return f.ascent }
func (f *fakeEstimator) ThrustFactor() int32 { return f.thrust }
func (f *fakeEstimator) ResetDesiredOrientation() { f.resetOrientation++ }
func (f *fakeEstimator) ResetDesiredYaw()         { f.resetYaw++ }

func radioFrame(throttle, aileron, elevator, rudder, gear int16) radio.Frame {
	return radio.Frame{Raw: [8]int16{throttle, aileron, elevator, rudder, gear, 0, 0, 0}}
}

func TestArbitrateModeEnteringAutomaticLocksAltitude(t *testing.T) {
	s := NewState(prefs.Default())
	s.Mode = ModeManual
	est := &fakeEstimator{alti: 4200}

	ArbitrateMode(s, est, radioFrame(0, 0, 0, 0, 0)) // gear centered -> Automatic

	if s.Mode != ModeAutomatic {
		t.Fatalf("Mode = %v, want Automatic", s.Mode)
	}
	if s.DesiredAltitude != 4200 {
		t.Fatalf("DesiredAltitude = %d, want 4200", s.DesiredAltitude)
	}
	if s.IsHolding {
		t.Fatal("IsHolding should be cleared on any mode transition")
	}
}

func TestArbitrateModeManualResetsOrientationNotYaw(t *testing.T) {
	s := NewState(prefs.Default())
	s.Mode = ModeAutomatic
	est := &fakeEstimator{}

	ArbitrateMode(s, est, radioFrame(0, 0, 0, 0, -600)) // gear hard left -> Manual

	if s.Mode != ModeManual {
		t.Fatalf("Mode = %v, want Manual", s.Mode)
	}
	if est.resetOrientation != 1 {
		t.Fatalf("expected ResetDesiredOrientation once, got %d", est.resetOrientation)
	}
	if est.resetYaw != 0 {
		t.Fatalf("expected ResetDesiredYaw not called entering Manual, got %d", est.resetYaw)
	}
}

func TestArmingRequiresFullHoldDuration(t *testing.T) {
	p := prefs.Default()
	p.ArmDelay = 5
	s := NewState(p)

	armGesture := radioFrame(-900, -900, -900, 900, 0)

	for i := 0; i < 4; i++ {
		UpdateArming(s, armGesture)
	}
	if s.FlightEnabled {
		t.Fatal("armed before ArmDelay ticks elapsed")
	}

	UpdateArming(s, armGesture)
	if !s.FlightEnabled {
		t.Fatal("expected arm after ArmDelay consecutive ticks")
	}
}

func TestArmingGestureInterruptionResetsCounter(t *testing.T) {
	p := prefs.Default()
	p.ArmDelay = 5
	s := NewState(p)
	armGesture := radioFrame(-900, -900, -900, 900, 0)
	neutral := radioFrame(0, 0, 0, 0, 0)

	UpdateArming(s, armGesture)
	UpdateArming(s, armGesture)
	UpdateArming(s, neutral) // interrupt
	if s.FlightEnableStep != 0 {
		t.Fatalf("FlightEnableStep = %d, want 0 after interruption", s.FlightEnableStep)
	}

	for i := 0; i < 4; i++ {
		UpdateArming(s, armGesture)
	}
	if s.FlightEnabled {
		t.Fatal("should not be armed yet; the interruption should have reset the hold counter")
	}
}

func TestUpdateArmingReportsArmGestureHoldBeforeThresholdReached(t *testing.T) {
	p := prefs.Default()
	p.ArmDelay = 5
	s := NewState(p)
	armGesture := radioFrame(-900, -900, -900, 900, 0)

	res := UpdateArming(s, armGesture)
	if !res.ArmGestureHold {
		t.Fatal("expected ArmGestureHold while the stick gesture is held but not yet past ArmDelay")
	}
	if res.JustArmed {
		t.Fatal("should not report JustArmed on the first held tick")
	}
}

func TestUpdateArmingReportsCompassGestureHold(t *testing.T) {
	s := NewState(prefs.Default())
	compassGesture := radioFrame(-900, 900, -900, 900, 0)

	res := UpdateArming(s, compassGesture)
	if !res.CompassGestureHold {
		t.Fatal("expected CompassGestureHold while the compass-cal gesture is held")
	}
	if res.ArmGestureHold {
		t.Fatal("compass-cal gesture must not also report ArmGestureHold")
	}
}

func TestDisarmingWritesMinThrottleViaCascadeFallback(t *testing.T) {
	l := newTestLoop(t, &fakeLED{})
	l.state.FlightEnabled = false

	var motors MotorOutputs
	l.OnTick = func(_ *State, _ sensors.Frame, _ radio.Frame, m MotorOutputs) { motors = m }
	l.tick()

	min := int32(l.state.Prefs.MinThrottle)
	if motors.FrontLeft != min || motors.FrontRight != min || motors.BackLeft != min || motors.BackRight != min {
		t.Fatal("disarmed motor outputs must equal MinThrottle")
	}
}

func TestThrottleKillGatesIntegratorAndKeepsMotorsAboveFloor(t *testing.T) {
	s := NewState(prefs.Default())
	s.FlightEnabled = true
	s.Mode = ModeAssisted
	ctrl := NewControllers(UpdateRateHz)
	est := &fakeEstimator{roll: 2000, pitch: 0, yaw: 0}
	frame := sensors.Frame{}

	motors := RunCascade(s, ctrl, est, frame, radioFrame(-900, 0, 0, 0, 0))

	if got := ctrl.Roll.Integral(); got != 0 {
		t.Fatalf("roll integral = %d, want 0 while throttle is below the kill threshold", got)
	}
	lo := int32(s.Prefs.MinThrottleArmed)
	if motors.FrontLeft < lo || motors.FrontRight < lo || motors.BackLeft < lo || motors.BackRight < lo {
		t.Fatalf("motor outputs below MinThrottleArmed while armed: %+v", motors)
	}
}

func TestXMixerSymmetryWithZeroAttitudeCommand(t *testing.T) {
	s := NewState(prefs.Default())
	s.Mode = ModeManual
	ctrl := NewControllers(UpdateRateHz)
	est := &fakeEstimator{}
	frame := sensors.Frame{}

	// Throttle 0 maps to ThroOut = 0<<2 + 12000 = 12000 with no attitude
	// commands, so all four motors should land on the same clamped value.
	motors := RunCascade(s, ctrl, est, frame, radioFrame(0, 0, 0, 0, -600))

	if motors.FrontLeft != motors.FrontRight || motors.FrontLeft != motors.BackLeft || motors.FrontLeft != motors.BackRight {
		t.Fatalf("expected symmetric motor outputs with zero attitude command, got %+v", motors)
	}
}

func TestAllMotorOutputsBoundedWhileArmed(t *testing.T) {
	s := NewState(prefs.Default())
	s.Mode = ModeAssisted
	ctrl := NewControllers(UpdateRateHz)
	est := &fakeEstimator{roll: 32000, pitch: -32000, yaw: 32000}
	frame := sensors.Frame{}

	motors := RunCascade(s, ctrl, est, frame, radioFrame(1024, 1024, -1024, 1024, 0))

	lo, hi := int32(s.Prefs.MinThrottleArmed), int32(s.Prefs.MaxThrottle)
	for name, v := range map[string]int32{
		"FL": motors.FrontLeft, "FR": motors.FrontRight, "BL": motors.BackLeft, "BR": motors.BackRight,
	} {
		if v < lo || v > hi {
			t.Fatalf("%s = %d out of bounds [%d, %d]", name, v, lo, hi)
		}
	}
}

func TestGestureAndStartupColorsAreDistinctFromStatusColors(t *testing.T) {
	arming := ArmingGestureColor()
	startup := StartupColor()
	status := LEDColor(ModeManual, false, false, false, 0)

	if arming == status {
		t.Fatal("ArmingGestureColor should not match the normal status color")
	}
	if startup == status {
		t.Fatal("StartupColor should not match the normal status color")
	}

	blue := CompassCalGestureColor(0)
	red := CompassCalGestureColor(1)
	if blue == red {
		t.Fatal("CompassCalGestureColor should alternate between ticks")
	}
}

func TestLEDColorLowBattAlternatesAtSixteenTickPeriod(t *testing.T) {
	for phase := int32(0); phase < 8; phase++ {
		got := LEDColor(ModeManual, true, false, true, phase)
		if want := modeColor(ModeManual); got != want {
			t.Fatalf("phase %d: LEDColor = %+v, want mode color %+v", phase, got, want)
		}
	}
	for phase := int32(8); phase < 16; phase++ {
		if got := LEDColor(ModeManual, true, false, true, phase); got != colorOrange {
			t.Fatalf("phase %d: LEDColor = %+v, want colorOrange", phase, got)
		}
	}
}

func TestLEDColorIsPureFunction(t *testing.T) {
	a := LEDColor(ModeAutomatic, true, false, false, 42)
	b := LEDColor(ModeAutomatic, true, false, false, 42)
	if a != b {
		t.Fatalf("LEDColor not pure: %+v != %+v for identical inputs", a, b)
	}
}

func TestUpdateBatteryAlarmCyclesOnAndOff(t *testing.T) {
	p := prefs.Default()
	p.UseBattMon = true
	p.LowVoltageAlarm = true
	p.LowVoltageAlarmThreshold = 700
	s := NewState(p)
	s.BatteryVolts = 600
	s.BatteryMonitorDelay = 0 // skip the startup settle period for this test

	cycle := &fakeBatteryCycle{count: 1}
	curve := func(count int32) int32 { return s.BatteryVolts } // hold steady for the test

	var sawAlarm, sawMute bool
	for i := 0; i < 64; i++ {
		s.Counter = int32(i)
		if UpdateBattery(s, cycle, curve) {
			sawAlarm = true
		} else if sawAlarm {
			sawMute = true
		}
	}
	if !sawAlarm {
		t.Fatal("expected the low-voltage alarm to sound at some point in a 64-tick cycle")
	}
	if !sawMute {
		t.Fatal("expected the alarm to mute again before the 64-tick cycle repeats")
	}
}

type fakeBatteryCycle struct{ count int32 }

func (f *fakeBatteryCycle) Discharge()     {}
func (f *fakeBatteryCycle) BeginCharge()   {}
func (f *fakeBatteryCycle) ReadCount() int32 { return f.count }
