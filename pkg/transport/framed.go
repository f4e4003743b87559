package transport

import (
    "bufio"
    "encoding/binary"
    "fmt"
    "io"
    "sync"
)

// DefaultMaxFrame bounds a single message on the wire.
const DefaultMaxFrame = 1<<24 + 64

type closeWriter interface{ CloseWrite() error }

// framedStream implements Stream over a byte stream with u32 LE length prefixes.
type framedStream struct {
    wmu sync.Mutex
    c   io.ReadWriteCloser
    br  *bufio.Reader
    bw  *bufio.Writer
    max int
}

// NewFramedStream frames messages over c. CloseWrite is supported when c
// has a CloseWrite method (TCP, Unix sockets, QUIC streams via their wrapper).
func NewFramedStream(c io.ReadWriteCloser, maxFrame int) Stream {
    if maxFrame <= 0 { maxFrame = DefaultMaxFrame }
    return &framedStream{c: c, br: bufio.NewReader(c), bw: bufio.NewWriter(c), max: maxFrame}
}

func (s *framedStream) SendBytes(b []byte) error {
    if len(b) > s.max { return fmt.Errorf("frame too large: %d > %d", len(b), s.max) }
    s.wmu.Lock(); defer s.wmu.Unlock()
    var lenbuf [4]byte
    binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(b)))
    if _, err := s.bw.Write(lenbuf[:]); err != nil { return err }
    _, err := s.bw.Write(b)
    return err
}

func (s *framedStream) Flush() error {
    s.wmu.Lock(); defer s.wmu.Unlock()
    return s.bw.Flush()
}

func (s *framedStream) RecvBytes() ([]byte, error) {
    var lenbuf [4]byte
    if _, err := io.ReadFull(s.br, lenbuf[:]); err != nil { return nil, err }
    n := int(binary.LittleEndian.Uint32(lenbuf[:]))
    if n < 0 || n > s.max { return nil, fmt.Errorf("invalid frame size: %d", n) }
    buf := make([]byte, n)
    if _, err := io.ReadFull(s.br, buf); err != nil {
        if err == io.EOF { err = io.ErrUnexpectedEOF }
        return nil, err
    }
    return buf, nil
}

func (s *framedStream) CloseWrite() error {
    cw, ok := s.c.(closeWriter)
    if !ok { return ErrHalfCloseUnsupported }
    if err := s.Flush(); err != nil { return err }
    return cw.CloseWrite()
}

func (s *framedStream) Close() error { return s.c.Close() }
