// Package radio decodes pilot input into a Frame of named channels, and
// rescales raw receiver channels per the calibration stored in preferences.
package radio

import (
	"sync"
	"time"
)

// NumChannels is the number of channels tracked across every supported
// protocol (iBus, CRSF, ELRS).
const NumChannels = 8

// Frame is the decoded, already-scaled channel snapshot the flight loop reads
// once per tick. Named accessors match the stick functions the cascade
// controller and the arm/disarm gestures expect.
type Frame struct {
	Raw [NumChannels]int16
	At  time.Time
}

func (f Frame) Throttle() int16 { return f.Raw[0] }
func (f Frame) Aileron() int16  { return f.Raw[1] }
func (f Frame) Elevator() int16 { return f.Raw[2] }
func (f Frame) Rudder() int16   { return f.Raw[3] }
func (f Frame) Gear() int16     { return f.Raw[4] }
func (f Frame) Aux1() int16     { return f.Raw[5] }
func (f Frame) Aux2() int16     { return f.Raw[6] }
func (f Frame) Aux3() int16     { return f.Raw[7] }

// Shared is the single-writer/single-bulk-reader region a radio driver
// publishes into. The driver is the only writer; the flight loop is the
// only reader, and reads it with one bulk Snapshot call per tick.
type Shared struct {
	mu    sync.Mutex
	frame Frame
}

// Publish is called by the driver goroutine whenever a fresh frame has been
// decoded.
func (s *Shared) Publish(f Frame) {
	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()
}

// Snapshot is called once per tick by the flight loop.
func (s *Shared) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// ChannelMap holds the per-channel remapping calibration: which raw input
// channel feeds logical channel i, its center, and its scale. Applying it
// to a raw channel array produces a Frame in the canonical channel order.
type ChannelMap struct {
	Index  [NumChannels]int
	Center [NumChannels]int16
	Scale  [NumChannels]int16 // fixed-point, 1024 == 1.0
}

// Identity returns a ChannelMap that passes raw channels through unchanged:
// Index[i]=i, Center[i]=0, Scale[i]=1024.
func Identity() ChannelMap {
	var m ChannelMap
	for i := range m.Index {
		m.Index[i] = i
		m.Scale[i] = 1024
	}
	return m
}

// Apply rescales raw receiver channels into a Frame:
// scaled = (raw[Index[i]] - Center[i]) * Scale[i] / 1024.
func (m ChannelMap) Apply(raw [NumChannels]int16, at time.Time) Frame {
	var f Frame
	f.At = at
	for i := 0; i < NumChannels; i++ {
		src := raw[m.Index[i]]
		f.Raw[i] = int16((int32(src-m.Center[i]) * int32(m.Scale[i])) / 1024)
	}
	return f
}
