package netstack

import (
    "context"
    "net"
    "sync"

    "go.uber.org/zap"

    "ttdialogue/pkg/dialogue"
    "ttdialogue/pkg/packet"
    "ttdialogue/pkg/transport"
)

// Server accepts sessions on one listener and serves a server-role
// dialogue on the first stream of each.
type Server struct {
    l    transport.Listener
    h    dialogue.Handler[*packet.Frame, []byte]
    opts Options
    log  *zap.Logger

    mu    sync.Mutex
    conns map[*FrameDialogue]struct{}
    wg    sync.WaitGroup
    stop  context.CancelFunc
}

// Listen starts accepting on addr. Sessions are served until ctx ends or
// Shutdown is called.
func Listen(ctx context.Context, tr transport.Transport, addr string, h dialogue.Handler[*packet.Frame, []byte], opts Options) (*Server, error) {
    l, err := tr.Listen(ctx, addr)
    if err != nil { return nil, err }
    ctx, cancel := context.WithCancel(ctx)
    s := &Server{
        l:     l,
        h:     h,
        opts:  opts,
        log:   opts.logger().With(zap.String("kind", tr.Kind().String())),
        conns: make(map[*FrameDialogue]struct{}),
        stop:  cancel,
    }
    s.log.Info("listening", zap.String("addr", l.Addr().String()))
    s.wg.Add(1)
    go s.acceptLoop(ctx)
    return s, nil
}

// Addr is the bound listener address.
func (s *Server) Addr() net.Addr { return s.l.Addr() }

// Active reports how many dialogues are being served.
func (s *Server) Active() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return len(s.conns)
}

func (s *Server) acceptLoop(ctx context.Context) {
    defer s.wg.Done()
    for {
        sess, err := s.l.Accept(ctx)
        if err != nil {
            if ctx.Err() == nil { s.log.Warn("accept failed", zap.Error(err)) }
            return
        }
        s.log.Info("inbound session", zap.String("raddr", sess.RemoteAddr().String()))
        s.wg.Add(1)
        go s.serveSession(ctx, sess)
    }
}

func (s *Server) serveSession(ctx context.Context, sess transport.Session) {
    defer s.wg.Done()
    defer sess.Close()

    st, err := sess.AcceptStream(ctx)
    if err != nil {
        s.log.Warn("accept stream failed", zap.String("raddr", sess.RemoteAddr().String()), zap.Error(err))
        return
    }
    pc := transport.NewPacketConn(st, s.opts.Wire)
    d := dialogue.New[*packet.Frame, []byte](pc, packet.NewFrame, dialogue.Server, s.opts.dialogueOptions(sess.RemoteAddr().String())...)

    s.mu.Lock()
    s.conns[d] = struct{}{}
    s.mu.Unlock()
    defer func() {
        s.mu.Lock()
        delete(s.conns, d)
        s.mu.Unlock()
    }()

    if err := d.Serve(ctx, s.h); err != nil {
        s.log.Info("dialogue ended", zap.String("raddr", sess.RemoteAddr().String()), zap.Error(err))
    }
    _ = d.Close()
}

// Shutdown stops accepting and closes every dialogue gracefully, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
    err := s.l.Close()
    s.mu.Lock()
    live := make([]*FrameDialogue, 0, len(s.conns))
    for d := range s.conns { live = append(live, d) }
    s.mu.Unlock()
    for _, d := range live { _ = d.Shutdown(ctx) }
    s.stop()

    done := make(chan struct{})
    go func() { s.wg.Wait(); close(done) }()
    select {
    case <-done:
    case <-ctx.Done():
        return ctx.Err()
    }
    return err
}
