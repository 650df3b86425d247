package flight

import (
	"context"
	"time"

	"github.com/sunsetTH/Flight-Controller/internal/gyrocal"
	"github.com/sunsetTH/Flight-Controller/internal/imu"
	"github.com/sunsetTH/Flight-Controller/internal/ports"
	"github.com/sunsetTH/Flight-Controller/internal/prefs"
	"github.com/sunsetTH/Flight-Controller/internal/radio"
	"github.com/sunsetTH/Flight-Controller/internal/sensors"
)

// UpdateRateHz is the nominal fixed control-loop frequency.
const UpdateRateHz = 250

// SensorScale converts the IMU driver's raw integer units into the
// physical units (rad/s, m/s^2) the attitude estimator expects, the same
// role the teacher's microGToMS2/microDPSToRadS constants play for its
// accelerometer/gyro driver.
type SensorScale struct {
	GyroToRadPerSec  float64
	AccelToMPerSec2  float64
}

// TickObserver is called once per tick, after the cascade has run, with
// enough information for an external collaborator (the telemetry link, a
// logging sink) to do its job without this package depending on them.
type TickObserver func(s *State, frame sensors.Frame, rf radio.Frame, motors MotorOutputs)

// Loop owns every collaborator the fixed-rate flight loop talks to. None of
// them is a concrete driver type; all are the narrow ports/contracts this
// module declares, so the same Loop runs against the TinyGo board, the
// Linux SBC backend, or a test harness.
type Loop struct {
	Sensor ports.IMUSensor
	Servo  ports.ServoOutput
	Radio  *radio.Shared
	LED    ports.LEDOutput
	Beeper ports.Beeper
	Watchdog ports.Watchdog

	BatteryCycle BatteryCycle
	VoltageCurve VoltageCurve

	Prefs *prefs.Manager
	Est   *imu.Estimator
	Ctrl  *Controllers
	Scale SensorScale

	OnTick TickObserver

	state     *State
	now       func() time.Time
	lastFrame sensors.Frame
}

// NewLoop wires a Loop from its collaborators, seeding State from the
// manager's currently-applied preferences.
func NewLoop(sensor ports.IMUSensor, servo ports.ServoOutput, rd *radio.Shared, led ports.LEDOutput, beeper ports.Beeper, wd ports.Watchdog, battery BatteryCycle, curve VoltageCurve, pm *prefs.Manager, est *imu.Estimator, ctrl *Controllers, scale SensorScale) *Loop {
	return &Loop{
		Sensor: sensor, Servo: servo, Radio: rd, LED: led, Beeper: beeper, Watchdog: wd,
		BatteryCycle: battery, VoltageCurve: curve,
		Prefs: pm, Est: est, Ctrl: ctrl, Scale: scale,
		state: NewState(pm.Current()),
		now:   time.Now,
	}
}

// State exposes the loop's flight state for read-only inspection (e.g. by
// the telemetry link's "computed" packet).
func (l *Loop) State() *State { return l.state }

// Run drives the fixed-rate loop until ctx is canceled. Production targets
// never cancel ctx; it exists so test harnesses and the host simulator can
// stop the loop cleanly.
func (l *Loop) Run(ctx context.Context) error {
	interval := time.Second / UpdateRateHz
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Loop) tick() {
	s := l.state
	s.Counter++

	raw, err := l.Sensor.Read()
	var frame sensors.Frame
	if err == nil {
		frame = sensors.Snapshot(raw)
	} else {
		// Transient input fault: keep flying on the last-known-good frame.
		frame = l.lastFrame
	}
	l.lastFrame = frame

	gx := float64(frame.GyroX) * l.Scale.GyroToRadPerSec
	gy := float64(frame.GyroY) * l.Scale.GyroToRadPerSec
	gz := float64(frame.GyroZ) * l.Scale.GyroToRadPerSec
	ax := float64(frame.AccelX) * l.Scale.AccelToMPerSec2
	ay := float64(frame.AccelY) * l.Scale.AccelToMPerSec2
	az := float64(frame.AccelZ) * l.Scale.AccelToMPerSec2

	l.Est.Update(frame, gx, gy, gz, ax, ay, az)

	rf := l.Radio.Snapshot()

	l.Est.WaitForCompletion()

	ArbitrateMode(s, l.Est, rf)
	armResult := UpdateArming(s, rf)

	if armResult.JustArmed {
		l.recalibrateGyro()
		s.DesiredAltitude = l.Est.AltiEst()
		if l.Beeper != nil {
			l.Beeper.Beep(100 * time.Millisecond)
		}
	}
	if armResult.JustDisarmed && l.Beeper != nil {
		l.Beeper.Beep(200 * time.Millisecond)
	}

	var motors MotorOutputs
	if s.FlightEnabled {
		motors = RunCascade(s, l.Ctrl, l.Est, frame, rf)
	} else {
		min := int32(s.Prefs.MinThrottle)
		motors = MotorOutputs{FrontLeft: min, FrontRight: min, BackLeft: min, BackRight: min}
	}

	if !s.Prefs.DisableMotors && l.Servo != nil {
		l.Servo.Set(motors.FrontLeft, motors.FrontRight, motors.BackLeft, motors.BackRight)
	}

	startingUp := s.Prefs.UseBattMon && s.BatteryMonitorDelay > 0

	alarming := false
	if l.BatteryCycle != nil && l.VoltageCurve != nil {
		alarming = UpdateBattery(s, l.BatteryCycle, l.VoltageCurve)
	}
	if l.Beeper != nil {
		l.Beeper.Tone(alarming)
	}

	if l.LED != nil {
		var c RGB
		switch {
		case startingUp:
			c = StartupColor()
		case armResult.CompassGestureHold:
			c = CompassCalGestureColor(s.Counter)
		case armResult.ArmGestureHold:
			c = ArmingGestureColor()
		default:
			lowBatt := s.Prefs.LowVoltageAlarm && s.BatteryVolts < int32(s.Prefs.LowVoltageAlarmThreshold) && s.BatteryVolts > lowBattVoltsFloor
			c = LEDColor(s.Mode, s.FlightEnabled, s.IsHolding, lowBatt, s.Counter)
		}
		l.LED.Set(c.R, c.G, c.B)
	}

	if l.Watchdog != nil {
		l.Watchdog.Update()
	}

	if l.OnTick != nil {
		l.OnTick(s, frame, rf, motors)
	}
}

// recalibrateGyro runs the gyro-zero protocol synchronously, intentionally
// monopolizing the loop the way the arming-triggered recalibration design
// calls for. It samples directly from the IMU sensor rather than through
// the estimator, since the estimator's own bias correction is exactly what
// calibration is computing.
func (l *Loop) recalibrateGyro() {
	sample := func() (int32, int32, int32) {
		raw, err := l.Sensor.Read()
		if err != nil {
			return 0, 0, 0
		}
		return raw.GyroX, raw.GyroY, raw.GyroZ
	}
	var beeper gyrocal.Beeper
	if l.Beeper != nil {
		beeper = beeperAdapter{l.Beeper}
	}
	res := gyrocal.Run(sample, beeper, time.Sleep)
	l.state.GyroZero = res.Zero
}

type beeperAdapter struct{ b ports.Beeper }

func (a beeperAdapter) Beep(d time.Duration) { a.b.Beep(d) }
