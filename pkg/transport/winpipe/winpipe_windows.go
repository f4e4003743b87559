//go:build windows

package winpipe

import (
    "context"
    "errors"
    "net"
    "sync"

    "github.com/Microsoft/go-winio"

    "ttdialogue/pkg/transport"
)

// Transport runs sessions over Windows named pipes. Pipes are opened in
// message mode so CloseWrite can signal the end of a client's writes.
type Transport struct {
    maxFrame int
}

func New(maxFrame int) *Transport { return &Transport{maxFrame: maxFrame} }

func (t *Transport) Kind() transport.Kind { return transport.KindWinPipe }

func (t *Transport) Listen(ctx context.Context, pipeName string) (transport.Listener, error) {
    l, err := winio.ListenPipe(pipeName, &winio.PipeConfig{MessageMode: true})
    if err != nil { return nil, err }
    wl := &listener{l: l, maxFrame: t.maxFrame, newCh: make(chan *session, 8), closeCh: make(chan struct{})}
    go wl.acceptLoop()
    go func() {
        select {
        case <-ctx.Done():
            _ = wl.Close()
        case <-wl.closeCh:
        }
    }()
    return wl, nil
}

func (t *Transport) Dial(ctx context.Context, pipeName string) (transport.Session, error) {
    c, err := winio.DialPipeContext(ctx, pipeName)
    if err != nil { return nil, err }
    return &session{c: c, st: transport.NewFramedStream(c, t.maxFrame)}, nil
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
        return nil, errors.New("winpipe listener closed")
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
        s := &session{c: c, st: transport.NewFramedStream(c, l.maxFrame)}
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

func (s *session) TransportKind() transport.Kind { return transport.KindWinPipe }
func (s *session) LocalAddr() net.Addr           { return s.c.LocalAddr() }
func (s *session) RemoteAddr() net.Addr          { return s.c.RemoteAddr() }

func (s *session) OpenStream(context.Context) (transport.Stream, error)   { return s.st, nil }
func (s *session) AcceptStream(context.Context) (transport.Stream, error) { return s.st, nil }
func (s *session) Close() error                                           { return s.c.Close() }
