package sickpls

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	// byteInterval is the minimum gap between transmitted bytes. The
	// PLS UART drops bytes at low baud rates without it.
	byteInterval = 55 * time.Microsecond

	// readPollTimeout bounds a single read so the buffer monitor never
	// parks in a kernel read.
	readPollTimeout = time.Millisecond
)

// port is the slice of a serial device the driver needs. The real
// implementation is term; tests substitute a simulated PLS.
type port interface {
	Read(p []byte) (n int, err error)
	WritePaced(p []byte) error
	SetBaud(rate int) error
	FlushInput() error
	FlushOutput() error
	Close() error
}

// term owns the descriptor to the serial device. Reads are performed
// only by the buffer monitor and writes only by the caller's
// goroutine, so term itself carries no locking.
type term struct {
	p        serial.Port
	origBaud int
}

// openTerm opens the device raw 8N1 at the given rate and arms the
// short read timeout used for polling reads.
func openTerm(device string, rate int) (*term, error) {
	mode := &serial.Mode{
		BaudRate: rate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, device, err)
	}
	if err := p.SetReadTimeout(readPollTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: set read timeout: %v", ErrIO, err)
	}
	return &term{p: p, origBaud: rate}, nil
}

func (t *term) Read(p []byte) (int, error) {
	n, err := t.p.Read(p)
	if err != nil {
		return n, fmt.Errorf("%w: read: %v", ErrIO, err)
	}
	return n, nil
}

// WritePaced transmits p one byte at a time, observing the minimum
// inter-byte gap.
func (t *term) WritePaced(p []byte) error {
	for i := range p {
		if _, err := t.p.Write(p[i : i+1]); err != nil {
			return fmt.Errorf("%w: write: %v", ErrIO, err)
		}
		time.Sleep(byteInterval)
	}
	return nil
}

// SetBaud changes the line speed for both directions.
func (t *term) SetBaud(rate int) error {
	mode := &serial.Mode{
		BaudRate: rate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if err := t.p.SetMode(mode); err != nil {
		return fmt.Errorf("%w: set baud %d: %v", ErrIO, rate, err)
	}
	return nil
}

func (t *term) FlushInput() error {
	if err := t.p.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%w: flush input: %v", ErrIO, err)
	}
	return nil
}

func (t *term) FlushOutput() error {
	if err := t.p.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("%w: flush output: %v", ErrIO, err)
	}
	return nil
}

// Close puts the line back at the speed it was opened with and
// releases the descriptor. Safe to call more than once.
func (t *term) Close() error {
	if t.p == nil {
		return nil
	}
	restoreErr := t.SetBaud(t.origBaud)
	err := t.p.Close()
	t.p = nil
	if restoreErr != nil {
		return restoreErr
	}
	if err != nil {
		return fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	return nil
}
