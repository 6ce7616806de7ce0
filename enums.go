package sickpls

// Baud identifies a PLS transmission rate by its protocol code.
type Baud byte

// Known baud codes.
const (
	Baud9600    = Baud(0x42)
	Baud19200   = Baud(0x41)
	Baud38400   = Baud(0x40)
	Baud500K    = Baud(0x48)
	BaudUnknown = Baud(0xFF)
)

var baudRates = map[Baud]int{
	Baud9600:  9600,
	Baud19200: 19200,
	Baud38400: 38400,
	Baud500K:  500000,
}

// Int returns the transmission rate in bits per second, or 0 for
// unknown codes.
func (b Baud) Int() int { return baudRates[b] }

func (b Baud) String() string {
	switch b {
	case Baud9600:
		return "9600"
	case Baud19200:
		return "19200"
	case Baud38400:
		return "38400"
	case Baud500K:
		return "500000"
	}
	return "unknown"
}

// IntToBaud converts a rate in bits per second to its protocol code.
func IntToBaud(rate int) Baud {
	for b, r := range baudRates {
		if r == rate {
			return b
		}
	}
	return BaudUnknown
}

// StringToBaud converts a rate string such as "38400" to its protocol
// code.
func StringToBaud(s string) Baud {
	switch s {
	case "9600":
		return Baud9600
	case "19200":
		return Baud19200
	case "38400":
		return Baud38400
	case "500000":
		return Baud500K
	}
	return BaudUnknown
}

// ScanAngle is the field of view of the scanner in degrees.
type ScanAngle uint16

// The PLS only does 180 degrees.
const (
	ScanAngle180     = ScanAngle(180)
	ScanAngleUnknown = ScanAngle(0xFF)
)

func (a ScanAngle) String() string {
	if a == ScanAngle180 {
		return "180"
	}
	return "unknown"
}

// IntToScanAngle converts a whole number of degrees to a ScanAngle.
func IntToScanAngle(deg int) ScanAngle {
	if deg == 180 {
		return ScanAngle180
	}
	return ScanAngleUnknown
}

// ScanResolution is the angular resolution in hundredths of a degree.
type ScanResolution uint16

// The PLS only does 0.5 degree resolution.
const (
	ScanResolution50      = ScanResolution(50)
	ScanResolutionUnknown = ScanResolution(0xFF)
)

func (r ScanResolution) String() string {
	if r == ScanResolution50 {
		return "0.5"
	}
	return "unknown"
}

// IntToScanResolution converts hundredths of a degree to a
// ScanResolution.
func IntToScanResolution(hundredths int) ScanResolution {
	if hundredths == 50 {
		return ScanResolution50
	}
	return ScanResolutionUnknown
}

// DoubleToScanResolution converts degrees to a ScanResolution.
func DoubleToScanResolution(deg float64) ScanResolution {
	return IntToScanResolution(int(deg * 100))
}

// MeasuringUnits is the unit of reported range values.
type MeasuringUnits byte

// The PLS only reports centimeters.
const (
	UnitsCM      = MeasuringUnits(0x00)
	UnitsUnknown = MeasuringUnits(0xFF)
)

func (u MeasuringUnits) String() string {
	if u == UnitsCM {
		return "centimeters"
	}
	return "unknown"
}

// Status is the device status reported in response telegrams.
type Status byte

// Known device statuses.
const (
	StatusOK      = Status(0x00)
	StatusError   = Status(0x01)
	StatusUnknown = Status(0xFF)
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// IntToStatus converts a raw status byte value to a Status.
func IntToStatus(v int) Status {
	switch v {
	case 0x00:
		return StatusOK
	case 0x01:
		return StatusError
	}
	return StatusUnknown
}

// OperatingMode identifies a PLS operating mode. See the telegram
// listing for descriptions of the monitor variants.
type OperatingMode byte

// Operating modes.
const (
	OpModeInstallation                 = OperatingMode(0x00)
	OpModeDiagnostic                   = OperatingMode(0x10)
	OpModeMonitorStreamMinValues       = OperatingMode(0x20)
	OpModeMonitorTriggerMinValue       = OperatingMode(0x21)
	OpModeMonitorStreamMinVertDist     = OperatingMode(0x22)
	OpModeMonitorTriggerMinVertDist    = OperatingMode(0x23)
	OpModeMonitorStreamValues          = OperatingMode(0x24)
	OpModeMonitorRequestValues         = OperatingMode(0x25)
	OpModeMonitorStreamMeanValues      = OperatingMode(0x26)
	OpModeMonitorStreamValuesSubrange  = OperatingMode(0x27)
	OpModeMonitorStreamMeanSubrange    = OperatingMode(0x28)
	OpModeMonitorStreamValuesFields    = OperatingMode(0x29)
	OpModeMonitorStreamPartialScan     = OperatingMode(0x2A)
	OpModeMonitorStreamRangeReflectPSS = OperatingMode(0x2B)
	OpModeMonitorStreamMinSegSubrange  = OperatingMode(0x2C)
	OpModeMonitorNavigation            = OperatingMode(0x2E)
	OpModeMonitorStreamRangeReflect    = OperatingMode(0x50)
	OpModeUnknown                      = OperatingMode(0xFF)
)

var opModeNames = map[OperatingMode]string{
	OpModeInstallation:                 "installation",
	OpModeDiagnostic:                   "diagnostic",
	OpModeMonitorStreamMinValues:       "monitor (stream min values per segment)",
	OpModeMonitorTriggerMinValue:       "monitor (min value on object)",
	OpModeMonitorStreamMinVertDist:     "monitor (stream min vertical distance)",
	OpModeMonitorTriggerMinVertDist:    "monitor (min vertical distance on object)",
	OpModeMonitorStreamValues:          "monitor (stream values)",
	OpModeMonitorRequestValues:         "monitor (request values)",
	OpModeMonitorStreamMeanValues:      "monitor (stream mean values)",
	OpModeMonitorStreamValuesSubrange:  "monitor (stream values subrange)",
	OpModeMonitorStreamMeanSubrange:    "monitor (stream mean values subrange)",
	OpModeMonitorStreamValuesFields:    "monitor (stream values with fields)",
	OpModeMonitorStreamPartialScan:     "monitor (stream values from partial scan)",
	OpModeMonitorStreamRangeReflectPSS: "monitor (stream range+reflectivity from partial scan)",
	OpModeMonitorStreamMinSegSubrange:  "monitor (stream min values per segment subrange)",
	OpModeMonitorNavigation:            "monitor (navigation)",
	OpModeMonitorStreamRangeReflect:    "monitor (stream range+reflectivity)",
}

func (m OperatingMode) String() string {
	if s, ok := opModeNames[m]; ok {
		return s
	}
	return "unknown"
}

// IntToOperatingMode converts a raw mode byte value to an
// OperatingMode.
func IntToOperatingMode(v int) OperatingMode {
	m := OperatingMode(v)
	if _, ok := opModeNames[m]; ok {
		return m
	}
	return OpModeUnknown
}
