// Package codec serializes application values into packet data items.
//
// Every encoded body starts with a single Format byte so the receiving side
// can decode without out-of-band negotiation.
package codec

import (
    "encoding/json"
    "fmt"
    "strings"
    "sync"

    cbor "github.com/fxamacker/cbor/v2"
    "google.golang.org/protobuf/proto"
)

// Codec marshals typed values.
type Codec interface {
    Format() Format
    ContentType() string
    Marshal(v any) ([]byte, error)
    Unmarshal(data []byte, v any) error
}

// Format is the on-wire indicator of body encoding.
type Format uint8

const (
    FormatUnknown Format = iota
    FormatJSON
    FormatCBOR
    FormatProto
)

const (
    ContentUnknown = "application/octet-stream"
    ContentJSON    = "application/json"
    ContentCBOR    = "application/cbor"
    ContentProto   = "application/x-protobuf"
)

func (f Format) String() string {
    switch f {
    case FormatJSON:
        return "json"
    case FormatCBOR:
        return "cbor"
    case FormatProto:
        return "proto"
    default:
        return "unknown"
    }
}

// ParseFormat maps a config/CLI name to a Format.
func ParseFormat(s string) (Format, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "json", ContentJSON:
        return FormatJSON, nil
    case "cbor", ContentCBOR:
        return FormatCBOR, nil
    case "proto", "protobuf", ContentProto:
        return FormatProto, nil
    default:
        return FormatUnknown, fmt.Errorf("unknown body format: %q", s)
    }
}

// Registry maps formats to codecs. The zero value is not usable; see NewRegistry.
type Registry struct {
    mu     sync.RWMutex
    byFmt  map[Format]Codec
}

// NewRegistry returns a registry preloaded with JSON, CBOR and Protobuf.
func NewRegistry() (*Registry, error) {
    r := &Registry{byFmt: make(map[Format]Codec)}
    r.Register(JSON())
    r.Register(Proto())
    c, err := CBOR()
    if err != nil { return nil, err }
    r.Register(c)
    return r, nil
}

// Register adds or replaces a codec.
func (r *Registry) Register(c Codec) {
    r.mu.Lock(); defer r.mu.Unlock()
    r.byFmt[c.Format()] = c
}

// Get returns the codec for f, or an error.
func (r *Registry) Get(f Format) (Codec, error) {
    r.mu.RLock(); defer r.mu.RUnlock()
    if c := r.byFmt[f]; c != nil { return c, nil }
    return nil, fmt.Errorf("no codec for format %d", f)
}

// EncodeBody serializes v with the codec for f behind a format byte.
func (r *Registry) EncodeBody(f Format, v any) ([]byte, error) {
    c, err := r.Get(f)
    if err != nil { return nil, err }
    b, err := c.Marshal(v)
    if err != nil { return nil, err }
    out := make([]byte, 1+len(b))
    out[0] = byte(f)
    copy(out[1:], b)
    return out, nil
}

// DecodeBody decodes a body produced by EncodeBody into v.
func (r *Registry) DecodeBody(body []byte, v any) (Format, error) {
    if len(body) == 0 { return FormatUnknown, fmt.Errorf("empty body") }
    f := Format(body[0])
    c, err := r.Get(f)
    if err != nil { return f, err }
    return f, c.Unmarshal(body[1:], v)
}

type jsonCodec struct{}

// JSON returns a JSON codec (RFC 8259).
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) Format() Format                      { return FormatJSON }
func (jsonCodec) ContentType() string                 { return ContentJSON }
func (jsonCodec) Marshal(v any) ([]byte, error)       { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error  { return json.Unmarshal(data, v) }

type cborCodec struct{ enc cbor.EncMode; dec cbor.DecMode }

// CBOR returns a deterministic CBOR codec with core profile.
func CBOR() (Codec, error) {
    em, err := cbor.CanonicalEncOptions().EncMode()
    if err != nil { return nil, err }
    dm, err := cbor.DecOptions{}.DecMode()
    if err != nil { return nil, err }
    return cborCodec{enc: em, dec: dm}, nil
}

func (cborCodec) Format() Format                        { return FormatCBOR }
func (cborCodec) ContentType() string                   { return ContentCBOR }
func (c cborCodec) Marshal(v any) ([]byte, error)       { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error  { return c.dec.Unmarshal(data, v) }

type protoCodec struct {
    mo proto.MarshalOptions
    uo proto.UnmarshalOptions
}

// Proto returns a Protocol Buffers codec with deterministic marshaling.
func Proto() Codec {
    return protoCodec{mo: proto.MarshalOptions{Deterministic: true}}
}

func (protoCodec) Format() Format      { return FormatProto }
func (protoCodec) ContentType() string { return ContentProto }

func (p protoCodec) Marshal(v any) ([]byte, error) {
    msg, ok := v.(proto.Message)
    if !ok { return nil, fmt.Errorf("protobuf: value does not implement proto.Message: %T", v) }
    return p.mo.Marshal(msg)
}

func (p protoCodec) Unmarshal(data []byte, v any) error {
    msg, ok := v.(proto.Message)
    if !ok { return fmt.Errorf("protobuf: target does not implement proto.Message: %T", v) }
    return p.uo.Unmarshal(data, msg)
}
