package imu

import "math"

// mat2 and vec2 are sized exactly for the two-state (pitch, roll) attitude
// filter below; there is no general linear-algebra type in this package.
// The filter's observation matrix is always identity (the accelerometer
// measures pitch/roll directly), so every step below is the
// identity-observation special case of a Kalman filter rather than a
// general matrix computation.
type mat2 [2][2]float64
type vec2 [2]float64

func identity2() mat2 { return mat2{{1, 0}, {0, 1}} }

func (a mat2) add(b mat2) mat2 {
	return mat2{
		{a[0][0] + b[0][0], a[0][1] + b[0][1]},
		{a[1][0] + b[1][0], a[1][1] + b[1][1]},
	}
}

func (a mat2) sub(b mat2) mat2 {
	return mat2{
		{a[0][0] - b[0][0], a[0][1] - b[0][1]},
		{a[1][0] - b[1][0], a[1][1] - b[1][1]},
	}
}

func (a mat2) mul(b mat2) mat2 {
	var r mat2
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			r[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j]
		}
	}
	return r
}

func (a mat2) mulVec(v vec2) vec2 {
	return vec2{a[0][0]*v[0] + a[0][1]*v[1], a[1][0]*v[0] + a[1][1]*v[1]}
}

func (a mat2) inverse() mat2 {
	det := a[0][0]*a[1][1] - a[0][1]*a[1][0]
	invDet := 1.0 / det
	return mat2{
		{a[1][1] * invDet, -a[0][1] * invDet},
		{-a[1][0] * invDet, a[0][0] * invDet},
	}
}

func (v vec2) add(o vec2) vec2 { return vec2{v[0] + o[0], v[1] + o[1]} }
func (v vec2) sub(o vec2) vec2 { return vec2{v[0] - o[0], v[1] - o[1]} }

// attitudeFilter is a two-state (pitch, roll) Kalman filter fusing gyro
// rate integration (the prediction step) with accelerometer-derived tilt
// (the correction step). Yaw has no absolute reference without a
// magnetometer fusion step, so it is tracked as a pure gyro integrator
// by the caller instead of through this filter.
type attitudeFilter struct {
	x vec2 // [pitch, roll] estimate, radians
	p mat2 // estimate covariance
	q mat2 // process noise
	r mat2 // measurement noise

	dt float64
}

func newAttitudeFilter(dt float64) *attitudeFilter {
	return &attitudeFilter{
		p:  identity2(),
		q:  mat2{{0.01, 0}, {0, 0.01}},
		r:  mat2{{0.5, 0}, {0, 0.5}},
		dt: dt,
	}
}

// predict integrates body rates (rad/s) into the pitch/roll estimate. The
// state-transition matrix is identity for this simple rate-integrator
// model, so P = F P F^T + Q collapses to P + Q.
func (kf *attitudeFilter) predict(gyroPitchRate, gyroRollRate float64) {
	kf.x = kf.x.add(vec2{gyroPitchRate * kf.dt, gyroRollRate * kf.dt})
	kf.p = kf.p.add(kf.q)
}

// correct fuses an accelerometer-derived (pitch, roll) measurement. The
// observation matrix is identity, so the innovation is just z - x and the
// innovation covariance collapses to P + R.
func (kf *attitudeFilter) correct(accelPitch, accelRoll float64) {
	z := vec2{accelPitch, accelRoll}
	y := z.sub(kf.x)
	s := kf.p.add(kf.r)
	k := kf.p.mul(s.inverse())

	kf.x = kf.x.add(k.mulVec(y))
	kf.p = identity2().sub(k).mul(kf.p)
}

func (kf *attitudeFilter) pitch() float64 { return kf.x[0] }
func (kf *attitudeFilter) roll() float64  { return kf.x[1] }

// accelPitchRoll converts raw accelerometer axes to a tilt estimate,
// matching the small-angle atan2 formulas the board's accelerometer-only
// leveling reference uses.
func accelPitchRoll(ax, ay, az float64) (pitch, roll float64) {
	pitch = math.Atan2(-ax, math.Sqrt(ay*ay+az*az))
	roll = math.Atan2(ay, az)
	return
}
