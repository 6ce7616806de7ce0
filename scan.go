package sickpls

import "fmt"

// MaxMeasurements is the largest number of range readings a scan
// profile can carry.
const MaxMeasurements = 721

const (
	countMask        = 0x3fff // low 14 bits of the count word
	countFlagPartial = 1 << 14
	countFlagUnit    = 1 << 15
	rangeMask        = 0x1fff // low 13 bits of a measurement word
)

// ScanProfile is one sweep's worth of range readings plus indexing
// metadata, decoded from a 0xB0 reply.
type ScanProfile struct {
	// Measurements holds the masked 13-bit range magnitudes in the
	// reporting unit (centimeters).
	Measurements []uint16

	// Words holds the raw 16-bit measurement words, flag bits
	// included, for callers that need the field/status bits.
	Words []uint16

	TelegramIndex     uint8
	RealTimeScanIndex uint8
	PartialScanIndex  uint8

	// PartialScan is set when the count word flags this profile as a
	// partial-scan segment.
	PartialScan bool
}

// scanProfileTrailerLen covers telegram index, real-time scan index,
// partial-scan index and the device status byte.
const scanProfileTrailerLen = 4

// parseScanProfileB0 decodes the payload of a 0xB0 reply.
func parseScanProfileB0(payload []byte) (*ScanProfile, error) {
	if len(payload) < 3+scanProfileTrailerLen {
		return nil, fmt.Errorf("%w: scan profile too short (%d bytes)", ErrProtocol, len(payload))
	}
	if payload[0] != respScanProfile {
		return nil, fmt.Errorf("%w: expected scan profile, got command %#02x", ErrProtocol, payload[0])
	}
	word := getUint16(payload[1:])
	n := int(word & countMask)
	if n > MaxMeasurements {
		return nil, fmt.Errorf("%w: measurement count %d exceeds %d", ErrConfig, n, MaxMeasurements)
	}
	if len(payload) < 3+2*n+scanProfileTrailerLen {
		return nil, fmt.Errorf("%w: scan profile truncated (%d measurements, %d bytes)",
			ErrProtocol, n, len(payload))
	}
	p := &ScanProfile{
		Measurements: make([]uint16, n),
		Words:        make([]uint16, n),
		PartialScan:  word&countFlagPartial != 0,
	}
	extractMeasurementValues(payload[3:], p.Words, p.Measurements)
	trailer := payload[3+2*n:]
	p.TelegramIndex = trailer[0]
	p.RealTimeScanIndex = trailer[1]
	p.PartialScanIndex = trailer[2]
	return p, nil
}

// extractMeasurementValues pulls len(words) 16-bit words out of the
// byte sequence, storing the raw word and the masked 13-bit range
// magnitude side by side.
func extractMeasurementValues(seq []byte, words, values []uint16) {
	for i := range words {
		w := getUint16(seq[2*i:])
		words[i] = w
		values[i] = w & rangeMask
	}
}

// operatingStatus aggregates the device's reported operating
// parameters.
type operatingStatus struct {
	scanAngle      uint16 // degrees
	scanResolution uint16 // 1/100 degree
	numMotorRevs   uint16
	operatingMode  OperatingMode
	laserMode      uint8
	measuringUnits MeasuringUnits
	address        uint8
}

// baudStatus aggregates the device's reported baud configuration.
type baudStatus struct {
	baud      Baud
	permanent bool
}

// statusReplyLen is the fixed payload size of a 0xB1 reply: command,
// angle, resolution, mode, laser, units, address, motor revs, baud
// code, permanent flag, device status.
const statusReplyLen = 14

// parseStatusB1 decodes the payload of a 0xB1 reply.
func parseStatusB1(payload []byte) (operatingStatus, baudStatus, Status, error) {
	var op operatingStatus
	var bs baudStatus
	if len(payload) < statusReplyLen {
		return op, bs, StatusUnknown,
			fmt.Errorf("%w: status reply too short (%d bytes)", ErrProtocol, len(payload))
	}
	if payload[0] != respStatus {
		return op, bs, StatusUnknown,
			fmt.Errorf("%w: expected status reply, got command %#02x", ErrProtocol, payload[0])
	}
	op.scanAngle = getUint16(payload[1:])
	op.scanResolution = getUint16(payload[3:])
	op.operatingMode = OperatingMode(payload[5])
	op.laserMode = payload[6]
	op.measuringUnits = MeasuringUnits(payload[7])
	op.address = payload[8]
	op.numMotorRevs = getUint16(payload[9:])
	bs.baud = Baud(payload[11])
	bs.permanent = payload[12] != 0
	return op, bs, IntToStatus(int(payload[13])), nil
}

// parseErrorsBB decodes the payload of a 0xBB error-list reply into
// parallel error type and error number arrays.
func parseErrorsBB(payload []byte) (types, nums []uint8, err error) {
	if len(payload) < 3 {
		return nil, nil, fmt.Errorf("%w: error reply too short (%d bytes)", ErrProtocol, len(payload))
	}
	if payload[0] != respErrors {
		return nil, nil, fmt.Errorf("%w: expected error reply, got command %#02x", ErrProtocol, payload[0])
	}
	n := int(payload[1])
	if len(payload) < 2+2*n+1 {
		return nil, nil, fmt.Errorf("%w: error reply truncated (%d entries, %d bytes)",
			ErrProtocol, n, len(payload))
	}
	types = make([]uint8, n)
	nums = make([]uint8, n)
	for i := 0; i < n; i++ {
		types[i] = payload[2+2*i]
		nums[i] = payload[2+2*i+1]
	}
	return types, nums, nil
}
