package netstack

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zaptest"

    "ttdialogue/pkg/dialogue"
    "ttdialogue/pkg/packet"
    "ttdialogue/pkg/transport"
    "ttdialogue/pkg/transport/mem"
    "ttdialogue/pkg/transport/tcp"
)

func startEcho(t *testing.T, tr transport.Transport, addr string, opts Options) (*Server, *Client) {
    t.Helper()
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    t.Cleanup(cancel)
    srv, err := Listen(ctx, tr, addr, Echo(opts.Logger), opts)
    require.NoError(t, err)
    cli, err := Dial(ctx, tr, srv.Addr().String(), nil, opts)
    require.NoError(t, err)
    return srv, cli
}

func TestEchoOverTransports(t *testing.T) {
    cases := map[string]struct {
        tr   transport.Transport
        addr string
    }{
        "tcp": {tcp.New(0), "127.0.0.1:0"},
        "mem": {mem.New(), "echo"},
    }
    for name, tc := range cases {
        t.Run(name, func(t *testing.T) {
            wire, err := packet.WireCodecByName(packet.WireCBOR)
            require.NoError(t, err)
            opts := Options{Wire: wire, Logger: zaptest.NewLogger(t)}
            srv, cli := startEcho(t, tc.tr, tc.addr, opts)
            ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
            defer cancel()
            d := cli.Dialogue()

            require.NoError(t, d.Message([]byte("hello")))
            resp, err := d.Request([]byte("ping"))
            require.NoError(t, err)
            require.NoError(t, resp.PollComplete(ctx))
            data, ok, err := resp.Wait(ctx)
            require.NoError(t, err)
            require.True(t, ok)
            require.Equal(t, []byte("ping"), data)

            sd, err := d.SubDuplex([]byte("open"))
            require.NoError(t, err)
            require.NoError(t, sd.Send([]byte("a")))
            require.NoError(t, sd.Send([]byte("b")))
            require.NoError(t, sd.CloseError([]byte("bye")))
            require.NoError(t, sd.PollComplete(ctx))
            for _, want := range []string{"a", "b"} {
                got, err := sd.Recv(ctx)
                require.NoError(t, err)
                require.Equal(t, want, string(got))
            }
            _, err = sd.Recv(ctx)
            var ewe *dialogue.EndWithError[[]byte]
            require.True(t, errors.As(err, &ewe), "got %v", err)
            require.Equal(t, []byte("bye"), ewe.Data)

            require.NoError(t, cli.Shutdown(ctx))
            require.NoError(t, srv.Shutdown(ctx))
        })
    }
}

func TestServerShutdownClosesClients(t *testing.T) {
    opts := Options{Logger: zaptest.NewLogger(t)}
    srv, cli := startEcho(t, tcp.New(0), "127.0.0.1:0", opts)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()

    require.Eventually(t, func() bool { return srv.Active() == 1 }, 2*time.Second, 10*time.Millisecond)
    require.NoError(t, srv.Shutdown(ctx))
    select {
    case <-cli.Dialogue().Done():
    case <-ctx.Done():
        t.Fatal("client dialogue not closed")
    }
    require.NoError(t, cli.Dialogue().Err())
    _, err := cli.Dialogue().Request([]byte("late"))
    require.ErrorIs(t, err, dialogue.ErrClosedDialogue)
    require.NoError(t, cli.Close())
}

func TestDialGivesUp(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _, err := Dial(ctx, mem.New(), "nobody", nil, Options{DialAttempts: 2, BackoffInitial: time.Millisecond})
    require.Error(t, err)

    cctx, ccancel := context.WithCancel(context.Background())
    ccancel()
    _, err = Dial(cctx, mem.New(), "nobody", nil, Options{BackoffInitial: time.Millisecond})
    require.Error(t, err)
}
