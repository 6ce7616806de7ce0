package sickpls

import (
	"bytes"
	"errors"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	payload := []byte{0xA1, 0xB2, 0xC3}
	m, err := NewMessage(HostAddress, payload)
	if err != nil {
		t.Fatalf("Error building message: %v", err)
	}

	raw := m.Bytes()
	exp := []byte{0x02, 0x80, 0x03, 0x00, 0xA1, 0xB2, 0xC3, 0xa5, 0xbb}
	if !bytes.Equal(raw, exp) {
		t.Errorf("Expected frame %x, got %x", exp, raw)
	}

	m2, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("Error parsing built frame: %v", err)
	}
	if m2.DestAddress() != HostAddress {
		t.Errorf("Expected dest %x, got %x", HostAddress, m2.DestAddress())
	}
	if !bytes.Equal(m2.Payload(), payload) {
		t.Errorf("Expected payload %x, got %x", payload, m2.Payload())
	}
	if m2.Length() != len(payload) {
		t.Errorf("Expected length %v, got %v", len(payload), m2.Length())
	}
	if m2.Checksum() != 0xbba5 {
		t.Errorf("Expected checksum bba5, got %x", m2.Checksum())
	}
	if m2.CommandCode() != 0xA1 {
		t.Errorf("Expected command a1, got %x", m2.CommandCode())
	}
	if m2.StatusByte() != 0xC3 {
		t.Errorf("Expected status byte c3, got %x", m2.StatusByte())
	}
}

func TestMessagePayloadBounds(t *testing.T) {
	if _, err := NewMessage(DeviceAddress, nil); !errors.Is(err, ErrConfig) {
		t.Errorf("Expected config error for empty payload, got %v", err)
	}
	if _, err := NewMessage(DeviceAddress, make([]byte, MaxPayloadLength)); err != nil {
		t.Errorf("Expected %v-byte payload to be accepted, got %v", MaxPayloadLength, err)
	}
	if _, err := NewMessage(DeviceAddress, make([]byte, MaxPayloadLength+1)); !errors.Is(err, ErrConfig) {
		t.Errorf("Expected config error for oversize payload, got %v", err)
	}
}

func TestMessageParseCorrupt(t *testing.T) {
	m, err := NewMessage(HostAddress, []byte{0xB0, 0x01, 0x02})
	if err != nil {
		t.Fatalf("Error building message: %v", err)
	}
	good := m.Bytes()

	// Flipping any single bit must be caught by the CRC (or, for the
	// length field, by the frame geometry checks).
	for i := range good {
		for bit := 0; bit < 8; bit++ {
			bad := append([]byte(nil), good...)
			bad[i] ^= 1 << bit
			if _, err := ParseMessage(bad); err == nil {
				t.Errorf("Expected corrupt frame (byte %d bit %d) to be rejected", i, bit)
			}
		}
	}
}

func TestMessageParseShort(t *testing.T) {
	if _, err := ParseMessage([]byte{0x02, 0x80, 0x01}); !errors.Is(err, ErrProtocol) {
		t.Errorf("Expected protocol error for short frame, got %v", err)
	}
	if _, err := ParseMessage([]byte{0x03, 0x80, 0x01, 0x00, 0x31, 0x00, 0x00}); !errors.Is(err, ErrProtocol) {
		t.Errorf("Expected protocol error for missing STX, got %v", err)
	}
}

func TestMessageClear(t *testing.T) {
	m, err := NewMessage(HostAddress, []byte{0x31})
	if err != nil {
		t.Fatalf("Error building message: %v", err)
	}
	m.Clear()
	if m.Populated() {
		t.Errorf("Expected cleared message to be unpopulated")
	}
	if m.Bytes() != nil {
		t.Errorf("Expected no bytes from cleared message, got %x", m.Bytes())
	}
}
