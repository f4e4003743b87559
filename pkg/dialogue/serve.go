package dialogue

import (
    "context"
    "errors"
    "io"
    "sync"

    "ttdialogue/pkg/packet"
)

// Handler reacts to what the peer opens. ServeMessage runs on the Serve
// goroutine and should return quickly. ServeRequest and ServeSubDuplex each
// run on their own goroutine; when they return the handle is released, so an
// unanswered request is declined and an unfinished sub-duplex is aborted.
type Handler[P packet.Packet[D], D any] interface {
    ServeMessage(ctx context.Context, data D)
    ServeRequest(ctx context.Context, req *Request[P, D])
    ServeSubDuplex(ctx context.Context, sd *SubDuplex[P, D])
}

// HandlerFuncs adapts plain functions to a Handler. Nil fields drop
// messages, decline requests and abort sub-duplexes.
type HandlerFuncs[P packet.Packet[D], D any] struct {
    Message   func(ctx context.Context, data D)
    Request   func(ctx context.Context, req *Request[P, D])
    SubDuplex func(ctx context.Context, sd *SubDuplex[P, D])
}

func (h HandlerFuncs[P, D]) ServeMessage(ctx context.Context, data D) {
    if h.Message != nil { h.Message(ctx, data) }
}

func (h HandlerFuncs[P, D]) ServeRequest(ctx context.Context, req *Request[P, D]) {
    if h.Request != nil { h.Request(ctx, req) }
}

func (h HandlerFuncs[P, D]) ServeSubDuplex(ctx context.Context, sd *SubDuplex[P, D]) {
    if h.SubDuplex != nil { h.SubDuplex(ctx, sd) }
}

// Serve drives Next until the dialogue ends and dispatches to h. It returns
// nil after an orderly close and waits for running handlers before returning.
func (d *Dialogue[P, D]) Serve(ctx context.Context, h Handler[P, D]) error {
    ctx, cancel := context.WithCancel(ctx)
    var wg sync.WaitGroup
    defer func() {
        cancel()
        wg.Wait()
    }()
    for {
        p, err := d.Next(ctx)
        if err != nil {
            if errors.Is(err, io.EOF) { return nil }
            return err
        }
        switch p.Type() {
        case packet.Message:
            data, _ := p.Data()
            h.ServeMessage(ctx, data)
        case packet.Request:
            req := d.PacketAsRequest(p)
            wg.Add(1)
            go func() {
                defer wg.Done()
                defer func() {
                    req.Release()
                    _ = d.PollComplete(ctx)
                }()
                h.ServeRequest(ctx, req)
            }()
        case packet.DuplexInitial:
            sd := d.PacketAsSubDuplex(p)
            wg.Add(1)
            go func() {
                defer wg.Done()
                defer func() {
                    sd.Release()
                    _ = d.PollComplete(ctx)
                }()
                h.ServeSubDuplex(ctx, sd)
            }()
        }
    }
}
