// Package uart wraps the serial line the M-Bus adapter talks on. The meter
// pushes an unsolicited HDLC frame once woken; the gateway only ever reads,
// so the interface is intentionally read-only.
package uart

import (
	"fmt"
	"io"

	"github.com/jacobsa/go-serial/serial"
)

// Port is the subset of serial behavior the cycle driver needs: byte-at-a-
// time reads until the port is closed.
type Port interface {
	ReadByte() (byte, error)
	Close() error
}

// Config describes how to open the line to the M-Bus adapter. The meter
// talks 2400 baud, 8 data bits, even parity, 1 stop bit.
type Config struct {
	Device   string
	Baudrate uint
}

type serialPort struct {
	rwc io.ReadWriteCloser
	buf [1]byte
}

// Open opens the serial device per cfg. ParityMode/DataBits/StopBits match
// the meter's fixed 2400-8E1 line settings; they aren't configurable because
// the meter side isn't.
func Open(cfg Config) (Port, error) {
	options := serial.OpenOptions{
		PortName:        cfg.Device,
		BaudRate:        cfg.Baudrate,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_EVEN,
		MinimumReadSize: 1,
	}

	port, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("uart: failed to open %s: %w", cfg.Device, err)
	}

	return &serialPort{rwc: port}, nil
}

func (p *serialPort) ReadByte() (byte, error) {
	n, err := p.rwc.Read(p.buf[:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("uart: short read")
	}
	return p.buf[0], nil
}

func (p *serialPort) Close() error {
	return p.rwc.Close()
}
