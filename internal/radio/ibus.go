//go:build ibus

package radio

import "time"

// FlySky iBus receiver decoding: a fixed 32-byte frame of two header bytes,
// 14 little-endian channels, and a 16-bit checksum (0xFFFF minus the sum of
// every preceding byte).

const (
	ibusHeader1    = 0x20
	ibusHeader2    = 0x40
	ibusPacketSize = 32
)

type ibusState int

const (
	ibusWaitHeader1 ibusState = iota
	ibusWaitHeader2
	ibusReadPayload
	ibusReadChecksumLow
	ibusReadChecksumHigh
)

// Decoder decodes a byte stream into iBus frames and publishes each
// complete, checksum-valid frame into a Shared region.
type Decoder struct {
	state    ibusState
	buf      [ibusPacketSize]byte
	idx      int
	checksum uint16
	out      *Shared
	cmap     ChannelMap
	now      func() time.Time
}

// NewDecoder constructs an iBus decoder that publishes decoded frames,
// after remapping through cmap, into out.
func NewDecoder(out *Shared, cmap ChannelMap, now func() time.Time) *Decoder {
	return &Decoder{out: out, cmap: cmap, now: now}
}

// Feed processes one byte from the UART. It returns true when a
// checksum-valid frame was just decoded and published.
func (d *Decoder) Feed(b byte) bool {
	switch d.state {
	case ibusWaitHeader1:
		if b == ibusHeader1 {
			d.state = ibusWaitHeader2
		}
	case ibusWaitHeader2:
		if b == ibusHeader2 {
			d.idx = 0
			d.checksum = 0xFFFF - uint16(ibusHeader1) - uint16(ibusHeader2)
			d.state = ibusReadPayload
		} else {
			d.state = ibusWaitHeader1
		}
	case ibusReadPayload:
		d.buf[d.idx] = b
		d.checksum -= uint16(b)
		d.idx++
		if d.idx >= ibusPacketSize-4 {
			d.state = ibusReadChecksumLow
		}
	case ibusReadChecksumLow:
		d.buf[d.idx] = b
		d.idx++
		d.state = ibusReadChecksumHigh
	case ibusReadChecksumHigh:
		d.buf[d.idx] = b
		received := uint16(d.buf[ibusPacketSize-4]) | uint16(d.buf[ibusPacketSize-3])<<8
		d.state = ibusWaitHeader1
		if received != d.checksum {
			return false
		}
		var raw [NumChannels]int16
		for i := 0; i < NumChannels; i++ {
			v := uint16(d.buf[2*i]) | uint16(d.buf[2*i+1])<<8
			raw[i] = int16(v) - 1500 // iBus centers channels at ~1500
		}
		d.out.Publish(d.cmap.Apply(raw, d.now()))
		return true
	}
	return false
}
