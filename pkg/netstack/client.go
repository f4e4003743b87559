package netstack

import (
    "context"
    "math/rand"
    "time"

    "go.uber.org/zap"

    "ttdialogue/pkg/dialogue"
    "ttdialogue/pkg/packet"
    "ttdialogue/pkg/transport"
)

// Client is a client-role dialogue over a dialed session. Inbound packets
// are read in the background; whatever the server opens goes to the handler
// passed to Dial.
type Client struct {
    d      *FrameDialogue
    sess   transport.Session
    served chan error
}

// Dial connects to addr, retrying with exponential backoff.
func Dial(ctx context.Context, tr transport.Transport, addr string, h dialogue.Handler[*packet.Frame, []byte], opts Options) (*Client, error) {
    log := opts.logger().With(zap.String("kind", tr.Kind().String()), zap.String("addr", addr))
    backoff := opts.BackoffInitial
    if backoff <= 0 { backoff = 200 * time.Millisecond }
    maxBackoff := opts.BackoffMax
    if maxBackoff <= 0 { maxBackoff = 10 * time.Second }

    for attempt := 1; ; attempt++ {
        sess, err := tr.Dial(ctx, addr)
        if err == nil {
            var c *Client
            if c, err = start(ctx, sess, h, opts); err == nil {
                log.Info("dialed", zap.Int("attempt", attempt))
                return c, nil
            }
            _ = sess.Close()
            log.Warn("open stream failed", zap.Error(err))
        } else {
            log.Warn("dial failed", zap.Int("attempt", attempt), zap.Error(err))
        }
        if opts.DialAttempts > 0 && attempt >= opts.DialAttempts { return nil, err }
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(withJitter(backoff, opts.BackoffJitter)):
        }
        if backoff *= 2; backoff > maxBackoff { backoff = maxBackoff }
    }
}

func start(ctx context.Context, sess transport.Session, h dialogue.Handler[*packet.Frame, []byte], opts Options) (*Client, error) {
    st, err := sess.OpenStream(ctx)
    if err != nil { return nil, err }
    pc := transport.NewPacketConn(st, opts.Wire)
    d := dialogue.New[*packet.Frame, []byte](pc, packet.NewFrame, dialogue.Client, opts.dialogueOptions(sess.RemoteAddr().String())...)
    if h == nil { h = dialogue.HandlerFuncs[*packet.Frame, []byte]{} }
    c := &Client{d: d, sess: sess, served: make(chan error, 1)}
    go func() { c.served <- d.Serve(context.Background(), h) }()
    return c, nil
}

// Dialogue returns the client dialogue.
func (c *Client) Dialogue() *FrameDialogue { return c.d }

// Shutdown hangs up gracefully and waits for the server to close, bounded by ctx.
func (c *Client) Shutdown(ctx context.Context) error {
    err := c.d.Shutdown(ctx)
    select {
    case serr := <-c.served:
        if err == nil { err = serr }
    case <-ctx.Done():
        _ = c.d.Close()
        <-c.served
    }
    _ = c.sess.Close()
    return err
}

// Close drops the dialogue and the session immediately.
func (c *Client) Close() error {
    err := c.d.Close()
    <-c.served
    _ = c.sess.Close()
    return err
}

func withJitter(d, jitter time.Duration) time.Duration {
    if jitter <= 0 { return d }
    return d + time.Duration(rand.Int63n(int64(jitter)))
}
