// Package sensors holds the sensor frame snapshot the flight loop copies
// out of the driver's shared region once per tick.
package sensors

import "github.com/sunsetTH/Flight-Controller/internal/ports"

// Frame is an immutable-for-the-tick copy of the latest raw sample plus the
// barometric altitude reading. Its layout is fixed so it can be produced by
// a single bulk copy from the driver's shared region.
type Frame struct {
	Temp                   int32
	GyroX, GyroY, GyroZ    int32
	AccelX, AccelY, AccelZ int32
	MagX, MagY, MagZ       int32
	Altitude               int32
	AltiTemp               int32
}

// Snapshot copies a ports.RawSample into a Frame. It never mutates the
// source sample, so a driver goroutine may keep writing to the region the
// caller read from.
func Snapshot(s ports.RawSample) Frame {
	return Frame{
		Temp:     s.Temp,
		GyroX:    s.GyroX,
		GyroY:    s.GyroY,
		GyroZ:    s.GyroZ,
		AccelX:   s.AccelX,
		AccelY:   s.AccelY,
		AccelZ:   s.AccelZ,
		MagX:     s.MagX,
		MagY:     s.MagY,
		MagZ:     s.MagZ,
		Altitude: s.Altitude,
		AltiTemp: s.AltiTemp,
	}
}
