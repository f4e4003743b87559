package packet

import (
    "encoding/binary"
    "fmt"
)

// Fixed header layout (14 bytes). All integer fields are little-endian.
//
//  0 ..1   Magic      'T''D' (0x5444)
//  2       Version    u8
//  3       Type       u8
//  4       Flags      u8
//  5       Reserved   u8
//  6 ..9   ID         u32
//  10..13  PayloadLen u32
const (
    HeaderSize = 14
    magicWord  = uint16(0x5444) // 'T''D'

    Version uint8 = 1

    // MaxPayload bounds a single packet payload.
    MaxPayload = 16 << 20
)

// Header describes a single frame.
type Header struct {
    Version    uint8
    Type       Type
    Flags      uint8
    ID         ID
    PayloadLen uint32
}

// MarshalBinary encodes the header into a 14-byte buffer.
func (h *Header) MarshalBinary() ([]byte, error) {
    buf := make([]byte, HeaderSize)
    h.put(buf)
    return buf, nil
}

func (h *Header) put(buf []byte) {
    binary.LittleEndian.PutUint16(buf[0:2], magicWord)
    buf[2] = h.Version
    buf[3] = uint8(h.Type)
    buf[4] = h.Flags
    buf[5] = 0
    binary.LittleEndian.PutUint32(buf[6:10], uint32(h.ID))
    binary.LittleEndian.PutUint32(buf[10:14], h.PayloadLen)
}

// UnmarshalBinary decodes and validates a header.
func (h *Header) UnmarshalBinary(buf []byte) error {
    if len(buf) < HeaderSize {
        return &DecodeError{Reason: "short header"}
    }
    if binary.LittleEndian.Uint16(buf[0:2]) != magicWord {
        return &DecodeError{Reason: "bad magic"}
    }
    h.Version = buf[2]
    h.Type = Type(buf[3])
    h.Flags = buf[4]
    h.ID = ID(binary.LittleEndian.Uint32(buf[6:10]))
    h.PayloadLen = binary.LittleEndian.Uint32(buf[10:14])
    return h.validate()
}

func (h *Header) validate() error {
    if h.Version != Version {
        return &DecodeError{Reason: fmt.Sprintf("unsupported version %d", h.Version)}
    }
    if !h.Type.Valid() {
        return &DecodeError{Reason: fmt.Sprintf("unknown packet type %d", uint8(h.Type))}
    }
    if h.PayloadLen > MaxPayload {
        return &DecodeError{Reason: fmt.Sprintf("payload too large: %d", h.PayloadLen)}
    }
    if h.Flags&FlagData == 0 && h.PayloadLen != 0 {
        return &DecodeError{Reason: "payload on empty packet"}
    }
    return nil
}

// Frame is the byte-oriented packet shipped with this module. Its data item
// is an opaque byte slice; presence is carried by FlagData so that an empty
// slice and "no data" stay distinct on the wire.
type Frame struct {
    Header  Header
    Payload []byte
}

// NewFrame builds a frame with data when ok is true, or an empty frame.
// It has the constructor shape a dialogue expects.
func NewFrame(data []byte, ok bool) *Frame {
    f := &Frame{Header: Header{Version: Version}}
    if ok {
        f.SetFlag(FlagData, true)
        f.Payload = data
    }
    return f
}

func (f *Frame) ID() ID         { return f.Header.ID }
func (f *Frame) Type() Type     { return f.Header.Type }
func (f *Frame) SetID(id ID)    { f.Header.ID = id }
func (f *Frame) SetType(t Type) { f.Header.Type = t }

func (f *Frame) Data() ([]byte, bool) {
    if !f.HasFlag(FlagData) { return nil, false }
    return f.Payload, true
}

// HasFlag checks whether a flag is set.
func (f *Frame) HasFlag(flag uint8) bool { return f.Header.Flags&flag != 0 }

// SetFlag sets/unsets a flag.
func (f *Frame) SetFlag(flag uint8, on bool) {
    if on {
        f.Header.Flags |= flag
    } else {
        f.Header.Flags &^= flag
    }
}

func (f *Frame) String() string {
    if !f.HasFlag(FlagData) {
        return fmt.Sprintf("%s#%d(empty)", f.Header.Type, f.Header.ID)
    }
    return fmt.Sprintf("%s#%d(%dB)", f.Header.Type, f.Header.ID, len(f.Payload))
}

// EncodeFrame returns header+payload as a single byte slice.
func (f *Frame) EncodeFrame() ([]byte, error) {
    if len(f.Payload) > MaxPayload {
        return nil, fmt.Errorf("payload too large: %d", len(f.Payload))
    }
    f.Header.PayloadLen = uint32(len(f.Payload))
    if f.Header.Version == 0 { f.Header.Version = Version }
    out := make([]byte, HeaderSize+len(f.Payload))
    f.Header.put(out)
    copy(out[HeaderSize:], f.Payload)
    return out, nil
}

// DecodeFrame parses a single frame from buf. Trailing bytes are an error.
func (f *Frame) DecodeFrame(buf []byte) error {
    if err := f.Header.UnmarshalBinary(buf); err != nil { return err }
    need := int(f.Header.PayloadLen)
    switch {
    case HeaderSize+need > len(buf):
        return &DecodeError{Reason: "truncated payload"}
    case HeaderSize+need < len(buf):
        return &DecodeError{Reason: "trailing bytes after payload"}
    }
    f.Payload = nil
    if f.HasFlag(FlagData) {
        f.Payload = append(make([]byte, 0, need), buf[HeaderSize:]...)
    }
    return nil
}

// DecodeError reports a malformed frame.
type DecodeError struct {
    Codec  string
    Reason string
}

func (e *DecodeError) Error() string {
    if e.Codec == "" { return "packet: " + e.Reason }
    return "packet(" + e.Codec + "): " + e.Reason
}
