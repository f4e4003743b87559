package dialogue

import (
    "context"
    "io"
    "testing"

    "github.com/stretchr/testify/require"

    "ttdialogue/pkg/packet"
)

func TestSubDuplexBothDirections(t *testing.T) {
    cli, srv, _, sdr := newPair(t)
    ctx := waitCtx(t)

    out, err := cli.SubDuplex([]byte("open"))
    require.NoError(t, err)
    require.True(t, out.Out())
    require.NoError(t, out.Send([]byte("a")))
    require.NoError(t, out.Send([]byte("b")))
    require.NoError(t, out.Close())
    require.ErrorIs(t, out.Send([]byte("c")), ErrSendClosed)
    flush(t, cli)

    in := srv.PacketAsSubDuplex(sdr.next(t))
    require.False(t, in.Out())
    require.Equal(t, "open", string(in.Data()))
    for _, want := range []string{"a", "b"} {
        got, err := in.Recv(ctx)
        require.NoError(t, err)
        require.Equal(t, want, string(got))
    }
    _, err = in.Recv(ctx)
    require.ErrorIs(t, err, io.EOF)

    // the acceptor's direction is still open after the initiator closed
    require.NoError(t, in.Send([]byte("x")))
    require.NoError(t, in.CloseError([]byte("bad")))
    flush(t, srv)
    require.Zero(t, srv.Stats().Duplexes)

    got, err := out.Recv(ctx)
    require.NoError(t, err)
    require.Equal(t, "x", string(got))
    _, err = out.Recv(ctx)
    var ewe *EndWithError[[]byte]
    require.ErrorAs(t, err, &ewe)
    require.Equal(t, "bad", string(ewe.Data))
    eventually(t, func() bool { return cli.Stats().Duplexes == 0 })
}

func TestSubDuplexWireTypes(t *testing.T) {
    cli, raw, _ := newRaw(t, Client)
    out, err := cli.SubDuplex([]byte("open"))
    require.NoError(t, err)
    require.NoError(t, out.Send([]byte("a")))
    require.NoError(t, out.Close())
    flush(t, cli)
    for _, want := range []packet.Type{packet.DuplexInitial, packet.DuplexRequest, packet.DuplexRequestEnd} {
        f := raw.pull(t)
        require.Equal(t, want, f.Type())
        require.Equal(t, out.ID(), f.ID())
    }
}

func TestAbortBeforeFlushSendsNothing(t *testing.T) {
    cli, raw, _ := newRaw(t, Client)
    out, err := cli.SubDuplex([]byte("open"))
    require.NoError(t, err)
    require.NoError(t, out.Send([]byte("a")))
    require.NoError(t, out.Abort())
    require.NoError(t, out.Abort())
    flush(t, cli)
    raw.requireQuiet(t)
    require.Zero(t, cli.Stats().Duplexes)
    _, err = out.Recv(waitCtx(t))
    require.ErrorIs(t, err, io.EOF)
}

func TestAbortReachesPeerAndIsAcked(t *testing.T) {
    cli, srv, _, sdr := newPair(t)
    ctx := waitCtx(t)

    out, err := cli.SubDuplex([]byte("open"))
    require.NoError(t, err)
    flush(t, cli)
    in := srv.PacketAsSubDuplex(sdr.next(t))

    require.NoError(t, out.AbortError([]byte("stop")))
    require.ErrorIs(t, out.Send([]byte("late")), ErrSendClosed)
    require.ErrorIs(t, out.Send([]byte("late")), ErrClosedDialogue)
    flush(t, cli)

    _, err = in.Recv(ctx)
    var ewe *EndWithError[[]byte]
    require.ErrorAs(t, err, &ewe)
    require.Equal(t, "stop", string(ewe.Data))
    require.ErrorIs(t, in.Send([]byte("x")), ErrSendClosed)

    // the acceptor acknowledges with its own end and forgets the id
    require.Zero(t, srv.Stats().Duplexes)
    flush(t, srv)
    eventually(t, func() bool { return cli.Stats().Duplexes == 0 })
    _, err = out.Recv(ctx)
    require.ErrorIs(t, err, io.EOF)
}

func TestAbortDropsInFlightPeerData(t *testing.T) {
    srv, raw, dr := newRaw(t, Server)
    raw.push(t, 1, packet.DuplexInitial, "open", true)
    in := srv.PacketAsSubDuplex(dr.next(t))
    raw.push(t, 1, packet.DuplexRequest, "buffered", true)
    eventually(t, func() bool {
        srv.mu.Lock(); defer srv.mu.Unlock()
        return len(in.x.queue) == 1
    })

    require.NoError(t, in.Abort())
    flush(t, srv)
    f := raw.pull(t)
    require.Equal(t, packet.DuplexRequestEnd, f.Type())

    // the peer had not noticed yet; its data is dropped, its end releases the id
    raw.push(t, 1, packet.DuplexRequest, "in flight", true)
    raw.push(t, 1, packet.DuplexRequestEnd, "", false)
    eventually(t, func() bool { return srv.Stats().Duplexes == 0 })
    require.False(t, srv.Stats().Closed)
    _, err := in.Recv(waitCtx(t))
    require.ErrorIs(t, err, io.EOF)
}

func TestAbortAfterCloseOnlyDiscardsLocally(t *testing.T) {
    cli, raw, _ := newRaw(t, Client)
    out, err := cli.SubDuplex([]byte("open"))
    require.NoError(t, err)
    require.NoError(t, out.Close())
    flush(t, cli)
    raw.pull(t)
    raw.pull(t)

    require.NoError(t, out.Abort())
    flush(t, cli)
    raw.requireQuiet(t)
    require.Equal(t, 1, cli.Stats().Duplexes)

    raw.push(t, out.ID(), packet.DuplexResponse, "ignored", true)
    raw.push(t, out.ID(), packet.DuplexResponseEnd, "", false)
    eventually(t, func() bool { return cli.Stats().Duplexes == 0 })
}

func TestReleaseAbortsUnfinishedSubDuplex(t *testing.T) {
    cli, raw, _ := newRaw(t, Client)
    out, err := cli.SubDuplex([]byte("open"))
    require.NoError(t, err)
    flush(t, cli)
    raw.pull(t)

    out.Release()
    flush(t, cli)
    require.Equal(t, packet.DuplexResponseEnd, raw.pull(t).Type())
    raw.push(t, out.ID(), packet.DuplexResponseEnd, "", false)
    eventually(t, func() bool { return cli.Stats().Duplexes == 0 })
}

func TestRecvHonoursContext(t *testing.T) {
    cli, _, _ := newRaw(t, Client)
    out, err := cli.SubDuplex([]byte("open"))
    require.NoError(t, err)
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    _, err = out.Recv(ctx)
    require.ErrorIs(t, err, context.Canceled)
}
