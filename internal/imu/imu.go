package imu

import (
	"math"
	"sync"

	"github.com/sunsetTH/Flight-Controller/internal/sensors"
)

// Scale factors between the estimator's internal radian/meter units and
// the integer fixed-point units the cascade controller's PID gains are
// tuned against.
const (
	radToFixed = 10000.0 // ~0.0001 rad per unit
	mmPerUnit  = 1.0
)

// Estimator is the default IMU contract implementation: a per-axis
// Kalman-filtered attitude estimate (pitch/roll; yaw is a free gyro
// integrator with no absolute reference), the frame's altitude with a
// low-pass-filtered climb rate, and a thrust-compensation factor derived
// from tilt.
//
// Update dispatches the filter step onto its own goroutine and returns at
// once; the caller does other per-tick work before calling
// WaitForCompletion and reading any derived value.
type Estimator struct {
	mu sync.Mutex
	wg sync.WaitGroup

	filt *attitudeFilter
	yaw  float64 // radians, free-running gyro integrator

	desiredPitch, desiredRoll, desiredYaw float64

	altiEst   int32 // mm
	ascentEst int32 // mm/s
	lastAlti  int32
	haveAlti  bool

	thrustFactor int32 // 256 == level

	dt float64
}

// New constructs an Estimator with a fixed per-tick timestep (seconds),
// matching the teacher's dt-parameterized Kalman filter constructor.
func New(dt float64) *Estimator {
	return &Estimator{
		filt:         newAttitudeFilter(dt),
		dt:           dt,
		thrustFactor: 256,
	}
}

// Update runs the predict/correct Kalman step and the altitude/climb-rate
// update against one sensor frame. The altitude estimate is the frame's
// Altitude as given; the climb rate is a low-pass of its per-tick change.
// Gyro/accel arguments are expected in rad/s and m/s^2, already converted
// by the caller.
func (e *Estimator) Update(f sensors.Frame, gyroX, gyroY, gyroZ, accelX, accelY, accelZ float64) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.mu.Lock()
		defer e.mu.Unlock()

		e.filt.predict(gyroY, gyroX)
		accelPitch, accelRoll := accelPitchRoll(accelX, accelY, accelZ)
		e.filt.correct(accelPitch, accelRoll)
		e.yaw += gyroZ * e.dt

		newAlti := f.Altitude
		if e.haveAlti {
			rate := float64(newAlti-e.lastAlti) / e.dt
			e.ascentEst = int32(0.8*float64(e.ascentEst) + 0.2*rate)
		}
		e.lastAlti = newAlti
		e.altiEst = newAlti
		e.haveAlti = true

		// Thrust compensation: level flight needs factor 256; tilt derates
		// vertical thrust by 1/cos(tilt). cos is floored at 0.1 here; the
		// cascade controller applies its own [256, 384] clamp to ThrustMul.
		tilt := e.filt.pitch()
		if r := e.filt.roll(); absF(r) > absF(tilt) {
			tilt = r
		}
		cos := cosApprox(tilt)
		if cos < 0.1 {
			cos = 0.1
		}
		e.thrustFactor = int32(256.0 / cos)
	}()
}

// WaitForCompletion blocks until the most recently dispatched Update has
// finished, per the IMU barrier in the concurrency model.
func (e *Estimator) WaitForCompletion() {
	e.wg.Wait()
}

// RollDiff, PitchDiff, YawDiff return (desired - current) in fixed-point
// units scaled for the attitude PID gains.
func (e *Estimator) RollDiff() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int32((e.desiredRoll - e.filt.roll()) * radToFixed)
}

func (e *Estimator) PitchDiff() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int32((e.desiredPitch - e.filt.pitch()) * radToFixed)
}

func (e *Estimator) YawDiff() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int32((e.desiredYaw - e.yaw) * radToFixed)
}

// AltiEst returns the latest altitude estimate in millimeters.
func (e *Estimator) AltiEst() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.altiEst
}

// AscentEst returns the latest vertical-velocity estimate in mm/s.
func (e *Estimator) AscentEst() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ascentEst
}

// ThrustFactor returns the tilt-compensation multiplier in Q8 fixed point
// (256 == 1.0, level).
func (e *Estimator) ThrustFactor() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thrustFactor
}

// ResetDesiredOrientation sets the desired pitch and roll to the current
// estimate, used when Manual mode is entered or the throttle-kill deadband
// clears the integral gate.
func (e *Estimator) ResetDesiredOrientation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.desiredPitch = e.filt.pitch()
	e.desiredRoll = e.filt.roll()
}

// ResetDesiredYaw sets the desired yaw to the current estimate, used on any
// non-Manual mode transition and whenever the throttle-kill gate clears.
func (e *Estimator) ResetDesiredYaw() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.desiredYaw = e.yaw
}

// Quaternion returns the current orientation as a unit quaternion (w, x, y,
// z), derived from the filter's pitch/roll estimate and the free-running
// yaw integrator, for telemetry consumers that want the attitude in the
// same wire shape the original quaternion IMU reported.
func (e *Estimator) Quaternion() (w, x, y, z float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return eulerToQuat(e.filt.pitch(), e.filt.roll(), e.yaw)
}

// DesiredQuaternion returns the attitude the cascade controller is
// currently steering toward, in the same representation as Quaternion.
func (e *Estimator) DesiredQuaternion() (w, x, y, z float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return eulerToQuat(e.desiredPitch, e.desiredRoll, e.desiredYaw)
}

func eulerToQuat(pitch, roll, yaw float64) (w, x, y, z float32) {
	cp, sp := math.Cos(pitch*0.5), math.Sin(pitch*0.5)
	cr, sr := math.Cos(roll*0.5), math.Sin(roll*0.5)
	cy, sy := math.Cos(yaw*0.5), math.Sin(yaw*0.5)
	w = float32(cr*cp*cy + sr*sp*sy)
	x = float32(sr*cp*cy - cr*sp*sy)
	y = float32(cr*sp*cy + sr*cp*sy)
	z = float32(cr*cp*sy - sr*sp*cy)
	return
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// cosApprox is a cheap small-angle-safe cosine; the estimator only needs it
// for a tilt-compensation multiplier, not for high-precision trig.
func cosApprox(rad float64) float64 {
	// Good enough over the +-60deg range a quadcopter actually flies at.
	x2 := rad * rad
	return 1 - x2/2 + x2*x2/24
}
