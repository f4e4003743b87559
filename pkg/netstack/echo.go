package netstack

import (
    "context"
    "errors"
    "io"

    "go.uber.org/zap"

    "ttdialogue/pkg/dialogue"
    "ttdialogue/pkg/packet"
)

// Echo answers every request with its own payload and mirrors each
// sub-duplex until the peer ends it. Messages are logged.
func Echo(log *zap.Logger) dialogue.Handler[*packet.Frame, []byte] {
    if log == nil { log = zap.L() }
    return dialogue.HandlerFuncs[*packet.Frame, []byte]{
        Message: func(_ context.Context, data []byte) {
            log.Debug("message", zap.Int("bytes", len(data)))
        },
        Request: func(ctx context.Context, req *dialogue.Request[*packet.Frame, []byte]) {
            if err := req.Respond(req.Data()); err != nil {
                log.Debug("respond failed", zap.Uint32("id", uint32(req.ID())), zap.Error(err))
                return
            }
            _ = req.PollComplete(ctx)
        },
        SubDuplex: func(ctx context.Context, sd *dialogue.SubDuplex[*packet.Frame, []byte]) {
            for {
                b, err := sd.Recv(ctx)
                if err != nil {
                    var ewe *dialogue.EndWithError[[]byte]
                    switch {
                    case errors.Is(err, io.EOF):
                        _ = sd.Close()
                    case errors.As(err, &ewe):
                        _ = sd.CloseError(ewe.Data)
                    }
                    _ = sd.PollComplete(ctx)
                    return
                }
                if err := sd.Send(b); err != nil { return }
                if err := sd.PollComplete(ctx); err != nil { return }
            }
        },
    }
}
