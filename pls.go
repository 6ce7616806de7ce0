// Package sickpls drives a SICK PLS laser range finder over its
// RS-232/RS-422 telegram protocol: session setup with baud
// negotiation, streaming scan retrieval, status queries and clean
// teardown.
package sickpls

import (
	"errors"
	"fmt"
	"time"
)

// Telegram command codes.
const (
	reqSwitchOpMode = 0x20
	reqSetBaud      = 0x30
	reqStatus       = 0x31
	reqErrors       = 0x3B

	respBaudAck     = 0x90
	respModeAck     = 0xA0
	respScanProfile = 0xB0
	respStatus      = 0xB1
	respErrors      = 0xBB

	// replyAny accepts any reply command code.
	replyAny = 0
)

// installationPassword unlocks installation mode.
const installationPassword = "SICK_PLS"

// Defaults for the request/response discipline. The device can take
// a long time to answer configuration commands.
const (
	DefaultMessageTimeout = 20 * time.Second
	DefaultNumTries       = 3
)

// pollInterval is the granularity at which the caller polls the
// monitor mailbox.
const pollInterval = time.Millisecond

// baudFallback is the search order used when the device does not
// answer at the desired rate.
var baudFallback = []Baud{Baud500K, Baud38400, Baud19200, Baud9600}

// PLS is a driver for a single SICK PLS unit. It is not re-entrant:
// one goroutine drives the public API, and exactly one request is in
// flight at a time.
type PLS struct {
	// MessageTimeout bounds a single wait for a reply and NumTries
	// caps retransmissions. Zero values are replaced with the
	// defaults at Initialize.
	MessageTimeout time.Duration
	NumTries       int

	devicePath string

	conn    port
	monitor *bufferMonitor

	sessionBaud Baud
	desiredBaud Baud

	opStatus     operatingStatus
	baudStatus   baudStatus
	deviceStatus Status

	initialized bool

	// openPort is swapped out by tests for a simulated device.
	openPort func(device string, rate int) (port, error)
}

// New returns a driver for the device at the given serial device
// path. The returned driver must be Initialized before use.
func New(devicePath string) *PLS {
	return &PLS{
		devicePath:   devicePath,
		deviceStatus: StatusUnknown,
		openPort: func(device string, rate int) (port, error) {
			return openTerm(device, rate)
		},
	}
}

// DevicePath returns the serial device path the driver was built
// with.
func (p *PLS) DevicePath() string { return p.devicePath }

// Initialize brings the device from its power-on state into a
// streaming session at the desired baud rate. It opens the port and
// starts the background reader, then discovers the device's current
// rate by probing the desired rate first and then the known rates in
// descending order, reconfigures the device if needed, validates the
// operating parameters and switches the device to streaming mode.
func (p *PLS) Initialize(desired Baud) error {
	if p.initialized {
		return fmt.Errorf("%w: already initialized", ErrConfig)
	}
	if desired.Int() == 0 {
		return fmt.Errorf("%w: invalid baud %#02x", ErrConfig, byte(desired))
	}
	if p.MessageTimeout <= 0 {
		p.MessageTimeout = DefaultMessageTimeout
	}
	if p.NumTries <= 0 {
		p.NumTries = DefaultNumTries
	}
	p.desiredBaud = desired

	conn, err := p.openPort(p.devicePath, Baud9600.Int())
	if err != nil {
		return err
	}
	p.conn = conn
	// The monitor has to be listening before the first probe or no
	// reply can ever be seen.
	p.monitor = newBufferMonitor(conn)
	p.monitor.Start()

	if err := p.setup(desired); err != nil {
		p.teardown()
		return err
	}
	p.initialized = true
	return nil
}

func (p *PLS) setup(desired Baud) error {
	found := BaudUnknown
	for _, b := range p.baudSearchOrder(desired) {
		ok, err := p.testBaud(b)
		if err != nil {
			return err
		}
		if ok {
			found = b
			break
		}
	}
	if found == BaudUnknown {
		return fmt.Errorf("%w: could not reach device at any baud rate", ErrTimeout)
	}
	p.sessionBaud = found

	if p.sessionBaud != desired {
		if err := p.setSessionBaud(desired); err != nil {
			return err
		}
	}

	if err := p.refreshStatus(); err != nil {
		return err
	}
	if err := p.validateConfig(); err != nil {
		return err
	}
	return p.switchOperatingMode(OpModeMonitorStreamValues, nil)
}

// baudSearchOrder yields the desired rate first, then the known
// rates in descending order.
func (p *PLS) baudSearchOrder(desired Baud) []Baud {
	order := []Baud{desired}
	for _, b := range baudFallback {
		if b != desired {
			order = append(order, b)
		}
	}
	return order
}

// testBaud moves the host side to the given rate and checks whether
// the device answers a status request there.
func (p *PLS) testBaud(b Baud) (bool, error) {
	if err := p.conn.SetBaud(b.Int()); err != nil {
		return false, err
	}
	if err := p.conn.FlushInput(); err != nil {
		return false, err
	}
	req, err := NewMessage(DeviceAddress, []byte{reqStatus})
	if err != nil {
		return false, err
	}
	_, err = p.sendMessageAndGetReply(req, respStatus, p.MessageTimeout, 1)
	if err != nil {
		if IsTimeout(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// setSessionBaud asks the device to move to the given rate, follows
// it there and verifies the device answers at the new rate.
func (p *PLS) setSessionBaud(desired Baud) error {
	if err := p.switchOperatingMode(OpModeInstallation, nil); err != nil {
		return err
	}
	req, err := NewMessage(DeviceAddress, []byte{reqSetBaud, byte(desired)})
	if err != nil {
		return err
	}
	reply, err := p.sendMessageAndGetReply(req, respBaudAck, p.MessageTimeout, p.NumTries)
	if err != nil {
		return err
	}
	if reply.StatusByte() != 0 {
		return fmt.Errorf("%w: device refused baud %v", ErrConfig, desired)
	}
	if err := p.conn.SetBaud(desired.Int()); err != nil {
		return err
	}
	p.sessionBaud = desired

	// Make sure the device really is reachable at the new rate.
	if err := p.refreshStatus(); err != nil {
		if IsTimeout(err) {
			return fmt.Errorf("%w: device silent after baud change to %v", ErrConfig, desired)
		}
		return err
	}
	if p.baudStatus.baud != desired {
		return fmt.Errorf("%w: device reports baud %v, wanted %v", ErrConfig, p.baudStatus.baud, desired)
	}
	return nil
}

// validateConfig rejects operating parameters outside the supported
// set: 180 degree scans at 0.5 degree resolution reported in
// centimeters.
func (p *PLS) validateConfig() error {
	if IntToScanAngle(int(p.opStatus.scanAngle)) != ScanAngle180 {
		return fmt.Errorf("%w: scan angle %d deg", ErrConfig, p.opStatus.scanAngle)
	}
	if IntToScanResolution(int(p.opStatus.scanResolution)) != ScanResolution50 {
		return fmt.Errorf("%w: scan resolution %d/100 deg", ErrConfig, p.opStatus.scanResolution)
	}
	if p.opStatus.measuringUnits != UnitsCM {
		return fmt.Errorf("%w: measuring units %#02x", ErrConfig, byte(p.opStatus.measuringUnits))
	}
	return nil
}

// refreshStatus issues a status request and stores the decoded
// operating and baud parameters.
func (p *PLS) refreshStatus() error {
	req, err := NewMessage(DeviceAddress, []byte{reqStatus})
	if err != nil {
		return err
	}
	reply, err := p.sendMessageAndGetReply(req, respStatus, p.MessageTimeout, p.NumTries)
	if err != nil {
		return err
	}
	op, bs, st, err := parseStatusB1(reply.Payload())
	if err != nil {
		return err
	}
	p.opStatus = op
	p.baudStatus = bs
	p.deviceStatus = st
	return nil
}

// switchOperatingMode sends the mode-switch telegram, supplying the
// installation password when entering installation mode, and checks
// the acknowledgement.
func (p *PLS) switchOperatingMode(mode OperatingMode, params []byte) error {
	payload := []byte{reqSwitchOpMode, byte(mode)}
	if mode == OpModeInstallation {
		payload = append(payload, installationPassword...)
	}
	payload = append(payload, params...)
	req, err := NewMessage(DeviceAddress, payload)
	if err != nil {
		return err
	}
	reply, err := p.sendMessageAndGetReply(req, respModeAck, p.MessageTimeout, p.NumTries)
	if err != nil {
		return err
	}
	if reply.StatusByte() != 0 {
		return fmt.Errorf("%w: mode switch to %v refused (status %#02x)",
			ErrConfig, mode, reply.StatusByte())
	}
	p.opStatus.operatingMode = mode
	return nil
}

// sendMessageAndGetReply transmits msg and waits for a matching reply
// using the 0x80 rule: a telegram counts as a reply only if it is
// addressed to the host, and, when replyCode is not replyAny, carries
// that command code. Unrelated telegrams (streaming data, mostly) are
// discarded. Timeouts are retried up to tries times; transport errors
// are returned at once.
func (p *PLS) sendMessageAndGetReply(msg Message, replyCode byte,
	timeout time.Duration, tries int) (Message, error) {

	for try := 0; try < tries; try++ {
		p.monitor.Flush()
		if err := p.conn.WritePaced(msg.Bytes()); err != nil {
			return Message{}, err
		}
		deadline := time.Now().Add(timeout)
		for time.Now().Before(deadline) {
			reply, ok := p.monitor.Next()
			if !ok {
				time.Sleep(pollInterval)
				continue
			}
			if reply.DestAddress() != HostAddress {
				continue
			}
			if replyCode != replyAny && reply.CommandCode() != replyCode {
				continue
			}
			return reply, nil
		}
	}
	return Message{}, fmt.Errorf("%w: no reply to command %#02x after %d tries",
		ErrTimeout, msg.CommandCode(), tries)
}

// GetScanProfile waits for the next streamed scan and returns the
// decoded profile. The driver must be initialized and the device in
// streaming mode.
func (p *PLS) GetScanProfile() (*ScanProfile, error) {
	if !p.initialized {
		return nil, fmt.Errorf("%w: not initialized", ErrConfig)
	}
	if p.opStatus.operatingMode != OpModeMonitorStreamValues {
		return nil, fmt.Errorf("%w: device not in streaming mode (%v)",
			ErrConfig, p.opStatus.operatingMode)
	}
	for try := 0; try < p.NumTries; try++ {
		deadline := time.Now().Add(p.MessageTimeout)
		for time.Now().Before(deadline) {
			msg, ok := p.monitor.Next()
			if !ok {
				time.Sleep(pollInterval)
				continue
			}
			if msg.DestAddress() != HostAddress || msg.CommandCode() != respScanProfile {
				continue
			}
			return parseScanProfileB0(msg.Payload())
		}
	}
	return nil, fmt.Errorf("%w: no scan data after %d tries", ErrTimeout, p.NumTries)
}

// GetScan waits for the next streamed scan and copies its range
// readings into values, returning the count. values should have room
// for MaxMeasurements readings.
func (p *PLS) GetScan(values []uint16) (int, error) {
	profile, err := p.GetScanProfile()
	if err != nil {
		return 0, err
	}
	n := copy(values, profile.Measurements)
	if n < len(profile.Measurements) {
		return n, fmt.Errorf("%w: scan buffer holds %d of %d readings",
			ErrConfig, n, len(profile.Measurements))
	}
	return n, nil
}

// GetStatus queries the device and returns its status. The decoded
// operating parameters are refreshed as a side effect.
func (p *PLS) GetStatus() (Status, error) {
	if !p.initialized {
		return StatusUnknown, fmt.Errorf("%w: not initialized", ErrConfig)
	}
	if err := p.refreshStatus(); err != nil {
		return StatusUnknown, p.fatal(err)
	}
	return p.deviceStatus, nil
}

// StatusString returns the most recently reported device status as a
// string, without touching the device.
func (p *PLS) StatusString() string { return p.deviceStatus.String() }

// GetErrors asks the device for its error list and returns parallel
// error type and error number arrays.
func (p *PLS) GetErrors() (types, nums []uint8, err error) {
	if !p.initialized {
		return nil, nil, fmt.Errorf("%w: not initialized", ErrConfig)
	}
	req, err := NewMessage(DeviceAddress, []byte{reqErrors})
	if err != nil {
		return nil, nil, err
	}
	reply, err := p.sendMessageAndGetReply(req, respErrors, p.MessageTimeout, p.NumTries)
	if err != nil {
		return nil, nil, p.fatal(err)
	}
	return parseErrorsBB(reply.Payload())
}

// ScanAngle returns the device's field of view in degrees.
func (p *PLS) ScanAngle() float64 { return float64(p.opStatus.scanAngle) }

// ScanResolution returns the device's angular resolution in degrees.
func (p *PLS) ScanResolution() float64 { return float64(p.opStatus.scanResolution) / 100 }

// MeasuringUnits returns the unit of reported range values.
func (p *PLS) MeasuringUnits() MeasuringUnits { return p.opStatus.measuringUnits }

// OperatingMode returns the device's current operating mode.
func (p *PLS) OperatingMode() OperatingMode { return p.opStatus.operatingMode }

// SessionBaud returns the negotiated session baud rate.
func (p *PLS) SessionBaud() Baud { return p.sessionBaud }

// Reset tears the session down and re-runs initialization at the
// current session baud.
func (p *PLS) Reset() error {
	if !p.initialized {
		return fmt.Errorf("%w: not initialized", ErrConfig)
	}
	baud := p.sessionBaud
	if err := p.Uninitialize(); err != nil && !errors.Is(err, ErrIO) {
		return err
	}
	return p.Initialize(baud)
}

// Uninitialize ends the session: the background reader is stopped
// and joined, the device is asked (best effort) to stop streaming,
// buffers are flushed and the port is restored and closed. Safe to
// call more than once.
func (p *PLS) Uninitialize() error {
	if !p.initialized {
		return nil
	}
	p.initialized = false

	// The monitor goes first so it cannot swallow bytes while the
	// port is being torn down. The mode switch below is fire and
	// forget: with the reader gone no acknowledgement can be seen.
	err := p.teardownStreaming()
	return err
}

func (p *PLS) teardownStreaming() error {
	var firstErr error
	if p.monitor != nil {
		if err := p.monitor.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if msg, err := NewMessage(DeviceAddress, []byte{reqSwitchOpMode, byte(OpModeMonitorRequestValues)}); err == nil {
			p.conn.WritePaced(msg.Bytes())
		}
		p.conn.FlushInput()
		p.conn.FlushOutput()
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.monitor = nil
	p.conn = nil
	return firstErr
}

// teardown releases everything without touching the device. Used on
// initialization failures and fatal I/O errors.
func (p *PLS) teardown() {
	if p.monitor != nil {
		p.monitor.Stop()
		p.monitor = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.initialized = false
}

// fatal downgrades the session on fatal transport errors: an I/O
// failure leaves the line state unknown, so the driver returns to
// the uninitialized state at this operation boundary.
func (p *PLS) fatal(err error) error {
	if err != nil && errors.Is(err, ErrIO) {
		p.teardown()
	}
	return err
}
