package flight

import (
	"github.com/sunsetTH/Flight-Controller/internal/mathutil"
	"github.com/sunsetTH/Flight-Controller/internal/radio"
	"github.com/sunsetTH/Flight-Controller/internal/sensors"
)

// Filter coefficients and assist gains that are not user-tunable
// preferences but are still part of the cascade's fixed design.
const (
	GyroRPFilter  = 96
	GyroYawFilter = 96

	AccelAssistZFactor    = 32
	AccelCorrectionFilter = 30 // matches prefs.Default's seed value
	OneG                  = 1000 // accel units where 1g == 1000

	throttleShapeOffset = 12000
)

// MotorOutputs is the four-channel X-configuration mix, already clamped.
type MotorOutputs struct {
	FrontLeft, FrontRight, BackLeft, BackRight int32
}

// UpdateFilteredRates applies the per-axis IIR to the gyro-zero-corrected
// body rates (cascade step A).
func UpdateFilteredRates(s *State, f sensors.Frame) {
	gr := f.GyroY - s.GyroZero[1]
	gp := -(f.GyroX - s.GyroZero[0])
	gy := -(f.GyroZ - s.GyroZero[2])

	s.GyroRoll += (gr - s.GyroRoll) * GyroRPFilter / 256
	s.GyroPitch += (gp - s.GyroPitch) * GyroRPFilter / 256
	s.GyroYaw += (gy - s.GyroYaw) * GyroYawFilter / 256
}

// RunCascade executes one tick of the cascade controller: the integral
// gate, the attitude PIDs, throttle shaping, the altitude/ascent cascade in
// Automatic mode, the accel-Z and tilt-compensation assists, and the X
// mixer. It returns the clamped motor outputs; honouring DisableMotors is
// left to the caller that dispatches them.
func RunCascade(s *State, ctrl *Controllers, est Estimator, frame sensors.Frame, rf radio.Frame) MotorOutputs {
	UpdateFilteredRates(s, frame)

	doIntegrate := rf.Throttle() >= ThrottleKillThreshold
	if !doIntegrate {
		if s.Mode == ModeManual {
			est.ResetDesiredOrientation()
		} else {
			est.ResetDesiredYaw()
		}
	}

	rollOut := ctrl.Roll.Calculate(est.RollDiff(), s.GyroRoll, doIntegrate)
	pitchOut := ctrl.Pitch.Calculate(est.PitchDiff(), s.GyroPitch, doIntegrate)
	yawOut := ctrl.Yaw.Calculate(est.YawDiff(), s.GyroYaw, doIntegrate)

	throMix := mathutil.Clamp((int32(rf.Throttle())+1024)>>2, 0, 64)
	throOut := int32(rf.Throttle())<<2 + throttleShapeOffset

	if s.Mode == ModeAutomatic {
		throOut = runAltitudeCascade(s, ctrl, est, rf, doIntegrate)
	}

	if s.Mode != ModeManual {
		throOut = applyAccelZAssist(s, throOut, frame, throMix, rf)
		throOut = applyThrustCompensation(s, throOut, est)
	}

	fl := throOut + (pitchOut+rollOut-yawOut)*throMix/128
	fr := throOut + (pitchOut-rollOut+yawOut)*throMix/128
	bl := throOut + (-pitchOut+rollOut+yawOut)*throMix/128
	br := throOut + (-pitchOut-rollOut-yawOut)*throMix/128

	lo, hi := int32(s.Prefs.MinThrottleArmed), int32(s.Prefs.MaxThrottle)
	return MotorOutputs{
		FrontLeft:  mathutil.Clamp(fl, lo, hi),
		FrontRight: mathutil.Clamp(fr, lo, hi),
		BackLeft:   mathutil.Clamp(bl, lo, hi),
		BackRight:  mathutil.Clamp(br, lo, hi),
	}
}

// runAltitudeCascade implements cascade step E: deadband exit resets the
// hold and rescales stick position into a desired ascent rate; deadband
// re-entry enters (or stays in) altitude hold and drives DesiredAscentRate
// from the altitude PID instead.
func runAltitudeCascade(s *State, ctrl *Controllers, est Estimator, rf radio.Frame, doIntegrate bool) int32 {
	throttle := int32(rf.Throttle())
	altiEst := est.AltiEst()

	if mathutil.Abs(throttle) > AltiThrottleDeadband {
		s.IsHolding = false
		stick := throttle
		if stick > 0 {
			stick -= AltiThrottleDeadband
		} else {
			stick += AltiThrottleDeadband
		}
		s.DesiredAscentRate = mathutil.Clamp(stick*6000/(1024-AltiThrottleDeadband), -6000, 6000)
	} else {
		if !s.IsHolding {
			s.IsHolding = true
			s.DesiredAltitude = altiEst
			ctrl.Alti.ResetIntegralError()
		}
		s.DesiredAscentRate = ctrl.Alti.Calculate(s.DesiredAltitude, altiEst, doIntegrate)
	}

	altiThrust := ctrl.Ascent.Calculate(s.DesiredAscentRate, est.AscentEst(), doIntegrate)
	adjustedThrottle := throttle << 2
	return int32(s.Prefs.CenterThrottle) + altiThrust + adjustedThrottle
}

// applyAccelZAssist subtracts out vertical accelerometer disturbance while
// the pilot is holding a near-neutral stick, so bumps don't translate into
// altitude drift in Assisted/Automatic mode.
func applyAccelZAssist(s *State, throOut int32, frame sensors.Frame, throMix int32, rf radio.Frame) int32 {
	if AccelAssistZFactor <= 0 {
		return throOut
	}
	if mathutil.Abs(int32(rf.Aileron())) >= 300 || mathutil.Abs(int32(rf.Elevator())) >= 300 || throMix <= 32 {
		return throOut
	}
	s.AccelZSmooth += (frame.AccelZ - s.AccelZSmooth) * AccelCorrectionFilter / 256
	return throOut - (s.AccelZSmooth-OneG)*AccelAssistZFactor/64
}

// applyThrustCompensation rescales throttle authority by the IMU's tilt
// compensation factor so a banked quad doesn't sink.
func applyThrustCompensation(s *State, throOut int32, est Estimator) int32 {
	scale := int32(s.Prefs.ThrustCorrectionScale)
	if scale <= 0 {
		return throOut
	}
	thrustMul := mathutil.Clamp(256+(est.ThrustFactor()-256)*scale/256, 256, 384)
	minThr := int32(s.Prefs.MinThrottle)
	return minThr + (throOut-minThr)*thrustMul/256
}
