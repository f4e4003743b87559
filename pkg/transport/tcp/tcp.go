package tcp

import (
    "context"
    "errors"
    "net"
    "sync"

    "ttdialogue/pkg/transport"
)

// Transport implements a stream-based TCP transport with length-prefixed
// frames (u32 LE). TCP connections half-close, so clients hang up gracefully.
type Transport struct {
    maxFrame int
}

func New(maxFrame int) *Transport { return &Transport{maxFrame: maxFrame} }

func (t *Transport) Kind() transport.Kind { return transport.KindTCP }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    var lc net.ListenConfig
    l, err := lc.Listen(ctx, "tcp", address)
    if err != nil { return nil, err }
    tl := &listener{l: l, maxFrame: t.maxFrame, newCh: make(chan *session, 8), closeCh: make(chan struct{})}
    go tl.acceptLoop()
    go func() {
        select {
        case <-ctx.Done():
            _ = tl.Close()
        case <-tl.closeCh:
        }
    }()
    return tl, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
    d := &net.Dialer{}
    c, err := d.DialContext(ctx, "tcp", address)
    if err != nil { return nil, err }
    return newSession(c, t.maxFrame), nil
}

type listener struct {
    l         net.Listener
    maxFrame  int
    newCh     chan *session
    closeCh   chan struct{}
    closeOnce sync.Once
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-l.closeCh:
        return nil, errors.New("tcp listener closed")
    case s := <-l.newCh:
        return s, nil
    }
}

func (l *listener) Close() error {
    err := net.ErrClosed
    l.closeOnce.Do(func() {
        close(l.closeCh)
        err = l.l.Close()
    })
    return err
}

func (l *listener) acceptLoop() {
    for {
        c, err := l.l.Accept()
        if err != nil { return }
        s := newSession(c, l.maxFrame)
        select {
        case l.newCh <- s:
        case <-l.closeCh:
            _ = s.Close()
            return
        }
    }
}

type session struct {
    c  net.Conn
    st transport.Stream
}

func newSession(c net.Conn, maxFrame int) *session {
    if tc, ok := c.(*net.TCPConn); ok { _ = tc.SetNoDelay(true) }
    return &session{c: c, st: transport.NewFramedStream(c, maxFrame)}
}

func (s *session) TransportKind() transport.Kind { return transport.KindTCP }
func (s *session) LocalAddr() net.Addr           { return s.c.LocalAddr() }
func (s *session) RemoteAddr() net.Addr          { return s.c.RemoteAddr() }

func (s *session) OpenStream(context.Context) (transport.Stream, error)   { return s.st, nil }
func (s *session) AcceptStream(context.Context) (transport.Stream, error) { return s.st, nil }
func (s *session) Close() error                                           { return s.c.Close() }
