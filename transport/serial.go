// Package transport implements the host-link backends of §6: a real
// POSIX serial port for production use, and a single-connection TCP
// listener standing in for the teacher's CH9120/Comboat UART-to-network
// bridge chips. Both backends present the same Link interface so
// cmd/gantryd can be pointed at either without changing the framing or
// dispatch layers above it.
package transport

import (
	"fmt"
	"io"

	serial "github.com/daedaluz/goserial"
)

// Link is a duplex byte stream to the host, named for diagnostics.
type Link interface {
	io.ReadWriteCloser
	Name() string
}

// serialLink adapts a goserial Port to Link.
type serialLink struct {
	port *serial.Port
	name string
}

// NewSerial opens device (e.g. "/dev/ttyUSB0") in raw mode at baud,
// matching §6's 8-N-1 wire format. goserial's Termios2 path supports
// arbitrary baud values via SetCustomSpeed, so non-standard rates (the
// double-speed mode spec.md calls out for divisor-error-sensitive MCUs)
// are not a problem on the host side.
func NewSerial(device string, baud uint32) (Link, error) {
	port, err := serial.Open(device, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", device, err)
	}
	attrs, err := port.GetAttr2()
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: get attrs on %s: %w", device, err)
	}
	attrs.MakeRaw()
	attrs.SetCustomSpeed(baud)
	if err := port.SetAttr2(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: set attrs on %s: %w", device, err)
	}
	return &serialLink{port: port, name: device}, nil
}

func (l *serialLink) Read(p []byte) (int, error)  { return l.port.Read(p) }
func (l *serialLink) Write(p []byte) (int, error) { return l.port.Write(p) }
func (l *serialLink) Close() error                { return l.port.Close() }
func (l *serialLink) Name() string                { return l.name }
