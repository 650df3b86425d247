// Package hostserial adapts go.bug.st/serial to ports.SerialPort, for
// running the debug/telemetry link against a USB-CDC or radio-modem port on
// a host machine rather than the on-target UART.
package hostserial

import (
	"errors"
	"time"

	"go.bug.st/serial"
)

// Port wraps an open go.bug.st/serial connection.
type Port struct {
	conn serial.Port
}

// Open opens name at baudRate and returns a Port ready for use as a
// ports.SerialPort.
func Open(name string, baudRate int) (*Port, error) {
	conn, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, err
	}
	return &Port{conn: conn}, nil
}

// List returns the names of every serial port the host can see, for a
// ground-station tool to offer as a connection choice.
func List() ([]string, error) {
	return serial.GetPortsList()
}

// Close releases the underlying connection.
func (p *Port) Close() error { return p.conn.Close() }

// TryReadByte does a zero-timeout read and reports whether a byte was
// actually available.
func (p *Port) TryReadByte() (byte, bool) {
	if err := p.conn.SetReadTimeout(0); err != nil {
		return 0, false
	}
	buf := make([]byte, 1)
	n, err := p.conn.Read(buf)
	if err != nil || n == 0 {
		return 0, false
	}
	return buf[0], true
}

// ReadByteTimeout blocks up to timeout for exactly one byte.
func (p *Port) ReadByteTimeout(timeout time.Duration) (byte, error) {
	if err := p.conn.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	n, err := p.conn.Read(buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errors.New("hostserial: read timed out")
	}
	return buf[0], nil
}

// Write implements ports.SerialPort.
func (p *Port) Write(b []byte) (int, error) { return p.conn.Write(b) }
