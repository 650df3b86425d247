// Package mathutil holds the small numeric helpers the flight loop leans on:
// range clamping and range remapping, generic over both the fixed-point
// integer types the control loop uses and the floating point types the
// tuning tools use.
package mathutil

import "golang.org/x/exp/constraints"

// Clamp constrains value to [min, max].
func Clamp[T constraints.Ordered](value, min, max T) T {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// MapRange rescales value from [fromMin, fromMax] into [toMin, toMax].
func MapRange[T constraints.Float](value, fromMin, fromMax, toMin, toMax T) T {
	return (value-fromMin)/(fromMax-fromMin)*(toMax-toMin) + toMin
}

// MapRangeInt is MapRange for the integer fixed-point values the cascade
// controller and radio decoder work with; the division happens in int64 to
// avoid overflow on the wider preference fields.
func MapRangeInt[T constraints.Integer](value, fromMin, fromMax, toMin, toMax T) T {
	v, a, b, c, d := int64(value), int64(fromMin), int64(fromMax), int64(toMin), int64(toMax)
	return T((v-a)*(d-c)/(b-a) + c)
}

// Abs returns the absolute value of a signed integer or float.
func Abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
