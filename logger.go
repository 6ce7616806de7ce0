package sickpls

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	crc16pkg "github.com/sigurn/crc16"
)

const logEncodingMagic = 0x5c

// logRecordTable parameterizes the checksum guarding binary log
// records on disk. This is the standard CRC-16/ARC parameterization;
// it shares the 0x8005 generator with the telegram CRC the device
// speaks but not its shift-register formulation, so the two checksums
// differ.
var logRecordTable = crc16pkg.MakeTable(crc16pkg.CRC16_ARC)

// LogEntry represents a single entry in a scan log stream.
type LogEntry struct {
	Timestamp time.Time
	Raw       []byte // raw 0xB0 reply payload
	Data      *ScanProfile
}

// UnmarshalJSON pulls the raw payload and timestamp out of the log
// and re-decodes the scan profile.
func (l *LogEntry) UnmarshalJSON(data []byte) error {
	led := &struct {
		Timestamp time.Time
		Raw       []byte
	}{}
	if err := json.Unmarshal(data, led); err != nil {
		return err
	}

	l.Timestamp = led.Timestamp
	l.Raw = led.Raw
	p, err := parseScanProfileB0(l.Raw)
	if err != nil {
		return err
	}
	l.Data = p
	return nil
}

// MarshalBinary provides a compact binary marshaler for LogEntries.
// Layout: magic, timestamp (length-prefixed), record checksum, raw
// payload.
func (l *LogEntry) MarshalBinary() (data []byte, err error) {
	tb, err := l.Timestamp.MarshalBinary()
	if err != nil {
		return nil, err
	}
	res := make([]byte, 1+1+len(tb)+2+len(l.Raw))
	res[0] = logEncodingMagic
	res[1] = byte(len(tb))
	copy(res[2:], tb)
	putUint16(res[2+len(tb):], crc16pkg.Checksum(l.Raw, logRecordTable))
	copy(res[2+len(tb)+2:], l.Raw)
	return res, nil
}

// UnmarshalBinary reverses MarshalBinary's encoding, verifying the
// record checksum.
func (l *LogEntry) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("log record too short: %d bytes", len(data))
	}
	if data[0] != logEncodingMagic {
		return fmt.Errorf("invalid encoding magic: %x", data[0])
	}
	tblen := int(data[1])
	if len(data) < 2+tblen+2 {
		return fmt.Errorf("log record too short: %d bytes", len(data))
	}
	if err := l.Timestamp.UnmarshalBinary(data[2 : 2+tblen]); err != nil {
		return err
	}
	stored := getUint16(data[2+tblen:])
	raw := data[2+tblen+2:]
	if computed := crc16pkg.Checksum(raw, logRecordTable); computed != stored {
		return fmt.Errorf("%w: log record stored %#04x, computed %#04x",
			ErrChecksum, stored, computed)
	}
	l.Raw = append([]byte(nil), raw...)
	p, err := parseScanProfileB0(l.Raw)
	if err != nil {
		return err
	}
	l.Data = p
	return nil
}

// payloadBytes rebuilds a 0xB0 payload from the decoded fields. The
// unit flag of the count word and the trailing device status byte are
// not kept in the profile and come back as zero.
func (s *ScanProfile) payloadBytes() []byte {
	b := make([]byte, 3+2*len(s.Words)+scanProfileTrailerLen)
	b[0] = respScanProfile
	word := uint16(len(s.Words)) & countMask
	if s.PartialScan {
		word |= countFlagPartial
	}
	putUint16(b[1:], word)
	for i, w := range s.Words {
		putUint16(b[3+2*i:], w)
	}
	trailer := b[3+2*len(s.Words):]
	trailer[0] = s.TelegramIndex
	trailer[1] = s.RealTimeScanIndex
	trailer[2] = s.PartialScanIndex
	return b
}

// Log writes this profile to a stream as one JSON log entry.
func (s *ScanProfile) Log(t time.Time, w io.Writer) error {
	return json.NewEncoder(w).Encode(LogEntry{t, s.payloadBytes(), s})
}

// ScanLogger writes scan profiles to a log stream.
type ScanLogger interface {
	Log(s *ScanProfile, t time.Time) error
}

type jsonScanLogger struct {
	w io.Writer
}

// NewJSONScanLogger logs scan profiles as a stream of JSON entries.
func NewJSONScanLogger(w io.Writer) ScanLogger {
	return &jsonScanLogger{w}
}

func (l *jsonScanLogger) Log(s *ScanProfile, t time.Time) error {
	return s.Log(t, l.w)
}

type gobScanLogger struct {
	enc *gob.Encoder
}

// NewGobScanLogger logs scan profiles as a gob stream.
func NewGobScanLogger(w io.Writer) ScanLogger {
	return &gobScanLogger{gob.NewEncoder(w)}
}

func (l *gobScanLogger) Log(s *ScanProfile, t time.Time) error {
	return l.enc.Encode(&LogEntry{t, s.payloadBytes(), s})
}

// LogReaderStream decodes log entries from a stream.
type LogReaderStream struct {
	next  func() (*LogEntry, error)
	close func() error
}

// NewLogReaderStream reads entries from r in the given format, "json"
// or "gob".
func NewLogReaderStream(r io.Reader, format string) (*LogReaderStream, error) {
	ls := &LogReaderStream{close: func() error { return nil }}
	switch format {
	case "json":
		dec := json.NewDecoder(r)
		ls.next = func() (*LogEntry, error) {
			e := &LogEntry{}
			if err := dec.Decode(e); err != nil {
				return nil, err
			}
			return e, nil
		}
	case "gob":
		dec := gob.NewDecoder(r)
		ls.next = func() (*LogEntry, error) {
			e := &LogEntry{}
			if err := dec.Decode(e); err != nil {
				return nil, err
			}
			if e.Data == nil && len(e.Raw) > 0 {
				p, err := parseScanProfileB0(e.Raw)
				if err != nil {
					return nil, err
				}
				e.Data = p
			}
			return e, nil
		}
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return ls, nil
}

// Next returns the next log entry, or io.EOF at the end of the
// stream.
func (l *LogReaderStream) Next() (*LogEntry, error) {
	return l.next()
}

// Close releases the underlying file, if any.
func (l *LogReaderStream) Close() error {
	return l.close()
}

// NewLogReader opens a log file by path, transparently ungzipping
// *.gz files and picking the format from the name (gob unless it
// contains ".json").
func NewLogReader(path string) (*LogReaderStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var r io.Reader = f
	closer := func() error { return f.Close() }
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		r = gz
		closer = func() error {
			gz.Close()
			return f.Close()
		}
	}

	format := "gob"
	if strings.Contains(path, ".json") {
		format = "json"
	}

	ls, err := NewLogReaderStream(r, format)
	if err != nil {
		closer()
		return nil, err
	}
	ls.close = closer
	return ls, nil
}

// NewWideCSVReader converts a log stream to CSV with one row per
// scan: timestamp, reading count, then every reading in order.
func NewWideCSVReader(ls *LogReaderStream) io.ReadCloser {
	return csvReader(ls, nil, func(cw *csv.Writer, e *LogEntry) error {
		rec := make([]string, 0, 2+len(e.Data.Measurements))
		rec = append(rec, e.Timestamp.Format(time.RFC3339Nano),
			strconv.Itoa(len(e.Data.Measurements)))
		for _, v := range e.Data.Measurements {
			rec = append(rec, strconv.Itoa(int(v)))
		}
		return cw.Write(rec)
	})
}

// NewLongCSVReader converts a log stream to CSV with one row per
// reading: timestamp, reading index, bearing in degrees, range in
// centimeters.
func NewLongCSVReader(ls *LogReaderStream) io.ReadCloser {
	header := []string{"timestamp", "index", "angle_deg", "range_cm"}
	return csvReader(ls, header, func(cw *csv.Writer, e *LogEntry) error {
		ts := e.Timestamp.Format(time.RFC3339Nano)
		for i, v := range e.Data.Measurements {
			rec := []string{
				ts,
				strconv.Itoa(i),
				strconv.FormatFloat(float64(i)/2-90, 'f', 1, 64),
				strconv.Itoa(int(v)),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func csvReader(ls *LogReaderStream, header []string,
	emit func(*csv.Writer, *LogEntry) error) io.ReadCloser {

	pr, pw := io.Pipe()
	go func() {
		cw := csv.NewWriter(pw)
		if header != nil {
			if err := cw.Write(header); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		for {
			e, err := ls.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if err := emit(cw, e); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		cw.Flush()
		pw.CloseWithError(cw.Error())
	}()
	return pr
}
