package mem

import (
    "context"
    "errors"
    "net"
    "sync"

    "ttdialogue/pkg/transport"
)

// Transport is an in-process transport using net.Pipe, for tests and for
// wiring two dialogues inside one process. net.Pipe cannot half-close, so
// a client shutting down over it closes the pipe directly.
type Transport struct {
    mu        sync.Mutex
    listeners map[string]*listener
    maxFrame  int
}

func New() *Transport { return &Transport{listeners: make(map[string]*listener)} }

// WithMaxFrame sets the largest message a session accepts.
func (t *Transport) WithMaxFrame(n int) *Transport { t.maxFrame = n; return t }

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, name string) (transport.Listener, error) {
    t.mu.Lock(); defer t.mu.Unlock()
    if _, ok := t.listeners[name]; ok {
        return nil, errors.New("mem: listener already exists")
    }
    l := &listener{name: name, newCh: make(chan *session, 8), closeCh: make(chan struct{})}
    l.onClose = func() { t.mu.Lock(); delete(t.listeners, name); t.mu.Unlock() }
    t.listeners[name] = l
    go func() {
        select {
        case <-ctx.Done():
            _ = l.Close()
        case <-l.closeCh:
        }
    }()
    return l, nil
}

func (t *Transport) Dial(ctx context.Context, name string) (transport.Session, error) {
    t.mu.Lock(); l := t.listeners[name]; t.mu.Unlock()
    if l == nil { return nil, errors.New("mem: no such listener") }
    c1, c2 := net.Pipe()
    srv := &session{c: c1, st: transport.NewFramedStream(c1, t.maxFrame)}
    cli := &session{c: c2, st: transport.NewFramedStream(c2, t.maxFrame)}
    select {
    case l.newCh <- srv:
    case <-l.closeCh:
        _ = srv.Close(); _ = cli.Close()
        return nil, errors.New("mem: listener closed")
    case <-ctx.Done():
        _ = srv.Close(); _ = cli.Close()
        return nil, ctx.Err()
    }
    return cli, nil
}

type listener struct {
    name      string
    newCh     chan *session
    closeCh   chan struct{}
    closeOnce sync.Once
    onClose   func()
}

func (l *listener) Addr() net.Addr { return memAddr(l.name) }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-l.closeCh:
        return nil, errors.New("mem listener closed")
    case s := <-l.newCh:
        return s, nil
    }
}

func (l *listener) Close() error {
    l.closeOnce.Do(func() {
        close(l.closeCh)
        if l.onClose != nil { l.onClose() }
    })
    return nil
}

type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

type session struct {
    c  net.Conn
    st transport.Stream
}

func (s *session) TransportKind() transport.Kind { return transport.KindMem }
func (s *session) LocalAddr() net.Addr           { return s.c.LocalAddr() }
func (s *session) RemoteAddr() net.Addr          { return s.c.RemoteAddr() }

func (s *session) OpenStream(context.Context) (transport.Stream, error)   { return s.st, nil }
func (s *session) AcceptStream(context.Context) (transport.Stream, error) { return s.st, nil }
func (s *session) Close() error                                           { return s.c.Close() }
