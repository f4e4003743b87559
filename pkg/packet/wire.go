package packet

import (
    "fmt"
    "strings"

    cbor "github.com/fxamacker/cbor/v2"
)

// WireCodec turns frames into transport messages and back.
type WireCodec interface {
    Name() string
    Marshal(f *Frame) ([]byte, error)
    Unmarshal(b []byte) (*Frame, error)
}

const (
    WireBinary = "binary"
    WireCBOR   = "cbor"
)

// WireCodecByName returns the codec registered under name ("binary" or "cbor").
func WireCodecByName(name string) (WireCodec, error) {
    switch strings.ToLower(strings.TrimSpace(name)) {
    case "", WireBinary:
        return Binary(), nil
    case WireCBOR:
        return CBOR()
    default:
        return nil, fmt.Errorf("unknown wire codec: %q", name)
    }
}

type binaryCodec struct{}

// Binary returns the fixed-header little-endian codec.
func Binary() WireCodec { return binaryCodec{} }

func (binaryCodec) Name() string { return WireBinary }

func (binaryCodec) Marshal(f *Frame) ([]byte, error) { return f.EncodeFrame() }

func (binaryCodec) Unmarshal(b []byte) (*Frame, error) {
    f := &Frame{}
    if err := f.DecodeFrame(b); err != nil {
        if de, ok := err.(*DecodeError); ok { de.Codec = WireBinary }
        return nil, err
    }
    return f, nil
}

// cborFrame is the CBOR wire shape: [type, flags, id, payload].
type cborFrame struct {
    _       struct{} `cbor:",toarray"`
    Type    uint8
    Flags   uint8
    ID      uint32
    Payload []byte
}

type cborCodec struct {
    enc cbor.EncMode
    dec cbor.DecMode
}

// CBOR returns a deterministic CBOR frame codec.
func CBOR() (WireCodec, error) {
    em, err := cbor.CanonicalEncOptions().EncMode()
    if err != nil { return nil, err }
    dm, err := cbor.DecOptions{}.DecMode()
    if err != nil { return nil, err }
    return cborCodec{enc: em, dec: dm}, nil
}

func (cborCodec) Name() string { return WireCBOR }

func (c cborCodec) Marshal(f *Frame) ([]byte, error) {
    if len(f.Payload) > MaxPayload {
        return nil, fmt.Errorf("payload too large: %d", len(f.Payload))
    }
    return c.enc.Marshal(cborFrame{Type: uint8(f.Header.Type), Flags: f.Header.Flags, ID: uint32(f.Header.ID), Payload: f.Payload})
}

func (c cborCodec) Unmarshal(b []byte) (*Frame, error) {
    var cf cborFrame
    if err := c.dec.Unmarshal(b, &cf); err != nil {
        return nil, &DecodeError{Codec: WireCBOR, Reason: err.Error()}
    }
    f := &Frame{Header: Header{
        Version:    Version,
        Type:       Type(cf.Type),
        Flags:      cf.Flags,
        ID:         ID(cf.ID),
        PayloadLen: uint32(len(cf.Payload)),
    }}
    if err := f.Header.validate(); err != nil {
        err.(*DecodeError).Codec = WireCBOR
        return nil, err
    }
    if f.HasFlag(FlagData) {
        f.Payload = cf.Payload
        if f.Payload == nil { f.Payload = []byte{} }
    }
    return f, nil
}
