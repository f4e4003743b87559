package packet

import (
    "bytes"
    "errors"
    "testing"
)

func TestHeaderRoundtrip(t *testing.T) {
    h := Header{Version: Version, Type: DuplexResponseEnd, Flags: FlagData, ID: 0xA1B2C3D4, PayloadLen: 1234}
    b, err := h.MarshalBinary()
    if err != nil { t.Fatalf("marshal: %v", err) }
    if len(b) != HeaderSize { t.Fatalf("header size = %d", len(b)) }
    if b[0] != 'D' || b[1] != 'T' { t.Fatalf("magic bytes = %x", b[:2]) }

    var h2 Header
    if err := h2.UnmarshalBinary(b); err != nil { t.Fatalf("unmarshal: %v", err) }
    if h2 != h { t.Fatalf("headers differ: %#v vs %#v", h2, h) }
}

func TestHeaderRejectsGarbage(t *testing.T) {
    good, _ := (&Header{Version: Version, Type: Message}).MarshalBinary()
    cases := map[string]func([]byte){
        "magic":   func(b []byte) { b[0] = 0 },
        "version": func(b []byte) { b[2] = 9 },
        "type0":   func(b []byte) { b[3] = 0 },
        "type9":   func(b []byte) { b[3] = 9 },
        "len":     func(b []byte) { b[10], b[11], b[12], b[13] = 0xff, 0xff, 0xff, 0x7f },
    }
    for name, mutate := range cases {
        b := append([]byte(nil), good...)
        mutate(b)
        var h Header
        err := h.UnmarshalBinary(b)
        var de *DecodeError
        if !errors.As(err, &de) { t.Fatalf("%s: want DecodeError, got %v", name, err) }
    }
    var h Header
    if err := h.UnmarshalBinary(good[:5]); err == nil { t.Fatalf("short header accepted") }
}

func TestFrameDataPresence(t *testing.T) {
    empty := NewFrame(nil, false)
    if !IsEmpty[[]byte](empty) { t.Fatalf("frame without data must be empty") }
    zero := NewFrame([]byte{}, true)
    if IsEmpty[[]byte](zero) { t.Fatalf("zero-length data must still count as data") }

    for _, c := range []WireCodec{Binary(), mustCBOR(t)} {
        for _, in := range []*Frame{empty, zero, NewFrame([]byte("hello"), true)} {
            in.SetID(7)
            in.SetType(Request)
            b, err := c.Marshal(in)
            if err != nil { t.Fatalf("%s marshal: %v", c.Name(), err) }
            out, err := c.Unmarshal(b)
            if err != nil { t.Fatalf("%s unmarshal: %v", c.Name(), err) }
            if out.ID() != 7 || out.Type() != Request { t.Fatalf("%s header mismatch: %v", c.Name(), out) }
            wd, wok := in.Data()
            gd, gok := out.Data()
            if wok != gok || !bytes.Equal(wd, gd) {
                t.Fatalf("%s data mismatch: %v vs %v", c.Name(), in, out)
            }
        }
    }
}

func TestDecodeFrameTrailingBytes(t *testing.T) {
    f := NewFrame([]byte("abc"), true)
    f.SetType(Message)
    b, err := f.EncodeFrame()
    if err != nil { t.Fatalf("encode: %v", err) }
    if _, err := Binary().Unmarshal(append(b, 0)); err == nil { t.Fatalf("trailing byte accepted") }
    if _, err := Binary().Unmarshal(b[:len(b)-1]); err == nil { t.Fatalf("truncated frame accepted") }
}

func TestCBORRejectsUnknownType(t *testing.T) {
    c := mustCBOR(t)
    f := NewFrame(nil, false)
    f.SetType(Type(42))
    b, err := c.Marshal(f)
    if err != nil { t.Fatalf("marshal: %v", err) }
    if _, err := c.Unmarshal(b); err == nil { t.Fatalf("unknown type accepted") }
    if _, err := c.Unmarshal([]byte{0xff, 0x00}); err == nil { t.Fatalf("garbage accepted") }
}

func TestWireCodecByName(t *testing.T) {
    for _, n := range []string{"", "binary", " CBOR "} {
        if _, err := WireCodecByName(n); err != nil { t.Fatalf("%q: %v", n, err) }
    }
    if _, err := WireCodecByName("xml"); err == nil { t.Fatalf("unknown codec accepted") }
}

func TestTypeHelpers(t *testing.T) {
    if TypeInvalid.Valid() || !Message.Valid() || !DuplexResponseEnd.Valid() || Type(9).Valid() {
        t.Fatalf("Valid is off")
    }
    if Request.IsDuplex() || !DuplexInitial.IsDuplex() { t.Fatalf("IsDuplex is off") }
    if DuplexRequestEnd.String() != "duplex-request-end" { t.Fatalf("String = %s", DuplexRequestEnd) }
}

func mustCBOR(t *testing.T) WireCodec {
    t.Helper()
    c, err := CBOR()
    if err != nil { t.Fatalf("cbor: %v", err) }
    return c
}
