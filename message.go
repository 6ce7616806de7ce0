package sickpls

import "fmt"

const (
	stx = 0x02

	msgHeaderLength  = 4
	msgTrailerLength = 2
	msgMinLength     = msgHeaderLength + 1 + msgTrailerLength

	// MaxPayloadLength bounds a telegram payload.
	MaxPayloadLength = 812

	// HostAddress is the destination address carried by device replies.
	HostAddress = 0x80

	// DeviceAddress addresses the device itself.
	DeviceAddress = 0x00
)

// Message is one telegram on the serial wire:
// [STX][addr][length LE][payload...][crc LE]. Length counts payload
// bytes only; the CRC covers everything before the trailer. Messages
// are value objects and cheap to copy.
type Message struct {
	dest      byte
	payload   []byte
	checksum  uint16
	populated bool
}

// NewMessage builds a well-formed telegram addressed to dest.
func NewMessage(dest byte, payload []byte) (Message, error) {
	if len(payload) == 0 {
		return Message{}, fmt.Errorf("%w: empty payload", ErrConfig)
	}
	if len(payload) > MaxPayloadLength {
		return Message{}, fmt.Errorf("%w: payload too large (%d bytes)", ErrConfig, len(payload))
	}
	m := Message{
		dest:      dest,
		payload:   append([]byte(nil), payload...),
		populated: true,
	}
	raw := m.layDown()
	m.checksum = getUint16(raw[len(raw)-msgTrailerLength:])
	return m, nil
}

// ParseMessage populates a Message from a raw frame. The buffer must
// hold a complete frame; trailing bytes beyond it are ignored.
func ParseMessage(raw []byte) (Message, error) {
	if len(raw) < msgMinLength {
		return Message{}, fmt.Errorf("%w: short frame (%d bytes)", ErrProtocol, len(raw))
	}
	if raw[0] != stx {
		return Message{}, fmt.Errorf("%w: missing STX", ErrProtocol)
	}
	length := int(getUint16(raw[2:]))
	if length == 0 || length > MaxPayloadLength {
		return Message{}, fmt.Errorf("%w: implausible payload length %d", ErrProtocol, length)
	}
	total := msgHeaderLength + length + msgTrailerLength
	if len(raw) < total {
		return Message{}, fmt.Errorf("%w: truncated frame", ErrProtocol)
	}
	stored := getUint16(raw[msgHeaderLength+length:])
	computed := crc16(raw[:msgHeaderLength+length])
	if stored != computed {
		return Message{}, fmt.Errorf("%w: stored %#04x, computed %#04x", ErrChecksum, stored, computed)
	}
	return Message{
		dest:      raw[1],
		payload:   append([]byte(nil), raw[msgHeaderLength:msgHeaderLength+length]...),
		checksum:  stored,
		populated: true,
	}, nil
}

func (m Message) layDown() []byte {
	raw := make([]byte, msgHeaderLength+len(m.payload)+msgTrailerLength)
	raw[0] = stx
	raw[1] = m.dest
	putUint16(raw[2:], uint16(len(m.payload)))
	copy(raw[msgHeaderLength:], m.payload)
	putUint16(raw[len(raw)-msgTrailerLength:], crc16(raw[:len(raw)-msgTrailerLength]))
	return raw
}

// Bytes returns the serialized frame.
func (m Message) Bytes() []byte {
	if !m.populated {
		return nil
	}
	return m.layDown()
}

// DestAddress returns the destination address byte.
func (m Message) DestAddress() byte { return m.dest }

// CommandCode returns the first payload byte.
func (m Message) CommandCode() byte {
	if len(m.payload) == 0 {
		return 0
	}
	return m.payload[0]
}

// StatusByte returns the last payload byte. Only meaningful for device
// response telegrams.
func (m Message) StatusByte() byte {
	if len(m.payload) == 0 {
		return 0
	}
	return m.payload[len(m.payload)-1]
}

// Checksum returns the CRC stored in the trailer.
func (m Message) Checksum() uint16 { return m.checksum }

// Payload returns the message payload.
func (m Message) Payload() []byte { return m.payload }

// Length returns the payload length in bytes.
func (m Message) Length() int { return len(m.payload) }

// Populated reports whether the message holds a well-formed frame.
func (m Message) Populated() bool { return m.populated }

// Clear returns the message to its empty, not-well-formed state.
func (m *Message) Clear() { *m = Message{} }
