package dialogue

import (
    "context"
    "errors"
    "io"
    "net"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
    "go.uber.org/goleak"
    "go.uber.org/zap/zaptest"

    "ttdialogue/pkg/packet"
)

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

type frameDialogue = Dialogue[*packet.Frame, []byte]

var errWriteClosed = errors.New("pipe: write side closed")

// pipeEnd is one end of an in-memory frame pipe with half-close.
type pipeEnd struct {
    in            chan *packet.Frame
    out           chan *packet.Frame
    writeDone     chan struct{}
    peerWriteDone chan struct{}
    closed        chan struct{}

    mu         sync.Mutex
    pending    []*packet.Frame
    sendErr    error
    wdOnce     sync.Once
    closeOnce  sync.Once
}

func newPipe() (*pipeEnd, *pipeEnd) {
    ab := make(chan *packet.Frame, 4096)
    ba := make(chan *packet.Frame, 4096)
    a := &pipeEnd{in: ba, out: ab, writeDone: make(chan struct{}), closed: make(chan struct{})}
    b := &pipeEnd{in: ab, out: ba, writeDone: make(chan struct{}), closed: make(chan struct{})}
    a.peerWriteDone, b.peerWriteDone = b.writeDone, a.writeDone
    return a, b
}

func (p *pipeEnd) Send(f *packet.Frame) error {
    p.mu.Lock(); defer p.mu.Unlock()
    if p.sendErr != nil { return p.sendErr }
    select {
    case <-p.closed:
        return net.ErrClosed
    case <-p.writeDone:
        return errWriteClosed
    default:
    }
    p.pending = append(p.pending, f)
    return nil
}

func (p *pipeEnd) Flush(ctx context.Context) error {
    if err := ctx.Err(); err != nil { return err }
    p.mu.Lock()
    batch := p.pending
    p.pending = nil
    p.mu.Unlock()
    for _, f := range batch {
        select {
        case p.out <- f:
        case <-p.closed:
            return net.ErrClosed
        case <-ctx.Done():
            return ctx.Err()
        }
    }
    return nil
}

func (p *pipeEnd) Recv(ctx context.Context) (*packet.Frame, error) {
    select {
    case f := <-p.in:
        return f, nil
    default:
    }
    select {
    case f := <-p.in:
        return f, nil
    case <-p.peerWriteDone:
        select {
        case f := <-p.in:
            return f, nil
        default:
            return nil, io.EOF
        }
    case <-p.closed:
        return nil, net.ErrClosed
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

func (p *pipeEnd) CloseWrite() error {
    p.wdOnce.Do(func() { close(p.writeDone) })
    return nil
}

func (p *pipeEnd) Close() error {
    p.closeOnce.Do(func() { close(p.closed) })
    return p.CloseWrite()
}

func (p *pipeEnd) failSends(err error) {
    p.mu.Lock(); defer p.mu.Unlock()
    p.sendErr = err
}

// raw helpers for the test side of a pipe

func (p *pipeEnd) push(t *testing.T, id packet.ID, typ packet.Type, data string, ok bool) {
    t.Helper()
    var b []byte
    if ok { b = []byte(data) }
    f := packet.NewFrame(b, ok)
    f.SetID(id)
    f.SetType(typ)
    require.NoError(t, p.Send(f))
    require.NoError(t, p.Flush(context.Background()))
}

func (p *pipeEnd) pull(t *testing.T) *packet.Frame {
    t.Helper()
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    f, err := p.Recv(ctx)
    require.NoError(t, err)
    return f
}

func (p *pipeEnd) requireQuiet(t *testing.T) {
    t.Helper()
    select {
    case f := <-p.in:
        t.Fatalf("unexpected frame %v", f)
    case <-time.After(50 * time.Millisecond):
    }
}

func newFrameDialogue(t *testing.T, tr Transport[*packet.Frame], role Role, opts ...Option) *frameDialogue {
    opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithName(role.String())}, opts...)
    d := New(tr, packet.NewFrame, role, opts...)
    t.Cleanup(func() { _ = d.Close() })
    return d
}

// newPair returns a connected client/server pair, each driven by its own reader.
func newPair(t *testing.T) (cli, srv *frameDialogue, cdr, sdr *driver) {
    a, b := newPipe()
    cli = newFrameDialogue(t, a, Client)
    srv = newFrameDialogue(t, b, Server)
    return cli, srv, drive(t, cli), drive(t, srv)
}

// newRaw returns a dialogue whose peer is driven by hand.
func newRaw(t *testing.T, role Role) (*frameDialogue, *pipeEnd, *driver) {
    a, b := newPipe()
    t.Cleanup(func() { _ = b.Close() })
    d := newFrameDialogue(t, a, role)
    return d, b, drive(t, d)
}

type driver struct {
    fresh chan *packet.Frame
    done  chan error
}

func drive(t *testing.T, d *frameDialogue) *driver {
    dr := &driver{fresh: make(chan *packet.Frame, 64), done: make(chan error, 1)}
    go func() {
        for {
            p, err := d.Next(context.Background())
            if err != nil {
                dr.done <- err
                return
            }
            dr.fresh <- p
        }
    }()
    t.Cleanup(func() {
        _ = d.Close()
        <-dr.done
    })
    return dr
}

func (dr *driver) next(t *testing.T) *packet.Frame {
    t.Helper()
    select {
    case p := <-dr.fresh:
        return p
    case err := <-dr.done:
        dr.done <- err
        t.Fatalf("dialogue ended: %v", err)
    case <-time.After(2 * time.Second):
        t.Fatalf("timed out waiting for a packet")
    }
    return nil
}

func (dr *driver) end(t *testing.T) error {
    t.Helper()
    select {
    case err := <-dr.done:
        dr.done <- err
        return err
    case <-time.After(2 * time.Second):
        t.Fatalf("timed out waiting for the dialogue to end")
    }
    return nil
}

func flush(t *testing.T, d *frameDialogue) {
    t.Helper()
    require.NoError(t, d.PollComplete(context.Background()))
}

func waitCtx(t *testing.T) context.Context {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    t.Cleanup(cancel)
    return ctx
}

func eventually(t *testing.T, cond func() bool) {
    t.Helper()
    require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
