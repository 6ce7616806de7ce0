package sickpls

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"
)

func exemplarProfile(t *testing.T) *ScanProfile {
	t.Helper()
	p, err := parseScanProfileB0(scanPayload(361, 100, false))
	if err != nil {
		t.Fatalf("Error building exemplar profile: %v", err)
	}
	return p
}

func TestBinaryMarshaling(t *testing.T) {
	prof := exemplarProfile(t)
	le := LogEntry{Timestamp: time.Now().Round(0), Raw: prof.payloadBytes(), Data: prof}
	bs, err := le.MarshalBinary()
	if err != nil {
		t.Fatalf("Error marshaling binary: %v", err)
	}

	le2 := LogEntry{}
	if err := le2.UnmarshalBinary(bs); err != nil {
		t.Fatalf("Error unmarshaling: %v", err)
	}

	if !le.Timestamp.Equal(le2.Timestamp) {
		t.Errorf("Timestamps didn't match: %v != %v", le.Timestamp, le2.Timestamp)
	}
	if !bytes.Equal(le.Raw, le2.Raw) {
		t.Errorf("Raw bytes were not equal:\n%v\n%v", le.Raw, le2.Raw)
	}
	if len(le2.Data.Measurements) != 361 {
		t.Errorf("Expected 361 measurements, got %v", len(le2.Data.Measurements))
	}
}

func TestBinaryMarshalingDetectsCorruption(t *testing.T) {
	prof := exemplarProfile(t)
	le := LogEntry{Timestamp: time.Now(), Raw: prof.payloadBytes(), Data: prof}
	bs, err := le.MarshalBinary()
	if err != nil {
		t.Fatalf("Error marshaling binary: %v", err)
	}
	bs[len(bs)-1] ^= 0x01

	le2 := LogEntry{}
	if err := le2.UnmarshalBinary(bs); err == nil {
		t.Errorf("Expected corrupted record to be rejected")
	}
}

func TestJSONLogRoundTrip(t *testing.T) {
	prof := exemplarProfile(t)
	buf := &bytes.Buffer{}

	lw := NewJSONScanLogger(buf)
	ts := time.Now().Round(0)
	if err := lw.Log(prof, ts); err != nil {
		t.Fatalf("Error logging: %v", err)
	}

	ls, err := NewLogReaderStream(buf, "json")
	if err != nil {
		t.Fatalf("Error opening log reader: %v", err)
	}
	e, err := ls.Next()
	if err != nil {
		t.Fatalf("Error reading entry: %v", err)
	}
	if !e.Timestamp.Equal(ts) {
		t.Errorf("Timestamps didn't match: %v != %v", ts, e.Timestamp)
	}
	if len(e.Data.Measurements) != 361 {
		t.Errorf("Expected 361 measurements, got %v", len(e.Data.Measurements))
	}
	if _, err := ls.Next(); err != io.EOF {
		t.Errorf("Expected EOF, got %v", err)
	}
}

func TestGobLogRoundTrip(t *testing.T) {
	prof := exemplarProfile(t)
	buf := &bytes.Buffer{}

	lw := NewGobScanLogger(buf)
	for i := 0; i < 3; i++ {
		if err := lw.Log(prof, time.Now()); err != nil {
			t.Fatalf("Error logging: %v", err)
		}
	}

	ls, err := NewLogReaderStream(buf, "gob")
	if err != nil {
		t.Fatalf("Error opening log reader: %v", err)
	}
	n := 0
	for {
		e, err := ls.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Error reading entry: %v", err)
		}
		if e.Data.Measurements[0] != 100 {
			t.Errorf("Expected reading 100, got %v", e.Data.Measurements[0])
		}
		n++
	}
	if n != 3 {
		t.Errorf("Expected 3 entries, got %v", n)
	}
}

func TestUnknownLogFormat(t *testing.T) {
	if _, err := NewLogReaderStream(&bytes.Buffer{}, "xml"); err == nil {
		t.Errorf("Expected error for unknown format")
	}
}

func TestLongCSVReader(t *testing.T) {
	prof := exemplarProfile(t)
	buf := &bytes.Buffer{}
	lw := NewJSONScanLogger(buf)
	if err := lw.Log(prof, time.Now()); err != nil {
		t.Fatalf("Error logging: %v", err)
	}

	ls, err := NewLogReaderStream(buf, "json")
	if err != nil {
		t.Fatalf("Error opening log reader: %v", err)
	}
	r := NewLongCSVReader(ls)
	defer r.Close()

	recs, err := csv.NewReader(r).ReadAll()
	if err != nil {
		t.Fatalf("Error reading CSV: %v", err)
	}
	// Header plus one row per reading.
	if len(recs) != 1+361 {
		t.Fatalf("Expected %v rows, got %v", 1+361, len(recs))
	}
	if recs[0][0] != "timestamp" {
		t.Errorf("Expected header row, got %v", recs[0])
	}
	if recs[1][2] != "-90.0" {
		t.Errorf("Expected first bearing -90.0, got %v", recs[1][2])
	}
	if recs[361][2] != "90.0" {
		t.Errorf("Expected last bearing 90.0, got %v", recs[361][2])
	}
	if recs[1][3] != "100" {
		t.Errorf("Expected range 100, got %v", recs[1][3])
	}
}

func TestWideCSVReader(t *testing.T) {
	prof := exemplarProfile(t)
	buf := &bytes.Buffer{}
	lw := NewJSONScanLogger(buf)
	if err := lw.Log(prof, time.Now()); err != nil {
		t.Fatalf("Error logging: %v", err)
	}

	ls, err := NewLogReaderStream(buf, "json")
	if err != nil {
		t.Fatalf("Error opening log reader: %v", err)
	}
	r := NewWideCSVReader(ls)
	defer r.Close()

	recs, err := csv.NewReader(r).ReadAll()
	if err != nil {
		t.Fatalf("Error reading CSV: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Expected 1 row, got %v", len(recs))
	}
	if len(recs[0]) != 2+361 {
		t.Errorf("Expected %v columns, got %v", 2+361, len(recs[0]))
	}
	if recs[0][1] != "361" {
		t.Errorf("Expected count column 361, got %v", recs[0][1])
	}
	if !strings.HasPrefix(recs[0][0], "2") {
		t.Errorf("Expected a timestamp in the first column, got %v", recs[0][0])
	}
}
