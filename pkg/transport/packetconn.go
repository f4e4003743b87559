package transport

import (
    "context"
    "net"
    "sync"

    "go.uber.org/zap"

    "ttdialogue/pkg/packet"
)

// PacketConn carries packet frames over a Stream. It satisfies the
// dialogue transport contract, including half-close.
type PacketConn struct {
    s     Stream
    codec packet.WireCodec
    log   *zap.Logger

    mu      sync.Mutex
    pending [][]byte

    readOnce  sync.Once
    frames    chan *packet.Frame
    eof       chan struct{} // closed when the reader stops; rerr holds why
    rerr      error
    closed    chan struct{}
    closeOnce sync.Once
}

// NewPacketConn wraps s. A nil codec selects packet.Binary.
func NewPacketConn(s Stream, codec packet.WireCodec) *PacketConn {
    if codec == nil { codec = packet.Binary() }
    return &PacketConn{
        s:      s,
        codec:  codec,
        log:    zap.L().Named("packetconn").With(zap.String("wire", codec.Name())),
        frames: make(chan *packet.Frame),
        eof:    make(chan struct{}),
        closed: make(chan struct{}),
    }
}

// Send encodes f and queues it until the next Flush.
func (c *PacketConn) Send(f *packet.Frame) error {
    b, err := c.codec.Marshal(f)
    if err != nil { return err }
    select {
    case <-c.closed:
        return net.ErrClosed
    default:
    }
    c.mu.Lock()
    c.pending = append(c.pending, b)
    c.mu.Unlock()
    return nil
}

// Flush writes every queued frame. Frames not written when ctx ends stay queued.
func (c *PacketConn) Flush(ctx context.Context) error {
    c.mu.Lock()
    batch := c.pending
    c.pending = nil
    c.mu.Unlock()
    if len(batch) == 0 { return nil }
    for i, b := range batch {
        if err := ctx.Err(); err != nil {
            c.mu.Lock()
            c.pending = append(batch[i:len(batch):len(batch)], c.pending...)
            c.mu.Unlock()
            return err
        }
        if err := c.s.SendBytes(b); err != nil { return err }
    }
    return c.s.Flush()
}

// Recv returns the next decoded frame. Malformed input ends the stream with
// a *packet.DecodeError.
func (c *PacketConn) Recv(ctx context.Context) (*packet.Frame, error) {
    c.readOnce.Do(func() { go c.readLoop() })
    select {
    case f := <-c.frames:
        return f, nil
    case <-c.eof:
        return nil, c.rerr
    case <-c.closed:
        return nil, net.ErrClosed
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

func (c *PacketConn) readLoop() {
    defer close(c.eof)
    for {
        b, err := c.s.RecvBytes()
        if err != nil {
            c.rerr = err
            return
        }
        f, err := c.codec.Unmarshal(b)
        if err != nil {
            c.log.Debug("dropping connection on bad frame", zap.Error(err))
            c.rerr = err
            return
        }
        select {
        case c.frames <- f:
        case <-c.closed:
            c.rerr = net.ErrClosed
            return
        }
    }
}

// CloseWrite ends the sending side; the peer's Recv reports io.EOF.
func (c *PacketConn) CloseWrite() error { return c.s.CloseWrite() }

func (c *PacketConn) Close() error {
    err := net.ErrClosed
    c.closeOnce.Do(func() {
        close(c.closed)
        err = c.s.Close()
    })
    return err
}
