// Package transports builds a transport.Transport from its configured kind.
package transports

import (
    "fmt"

    "ttdialogue/pkg/transport"
    "ttdialogue/pkg/transport/mem"
    "ttdialogue/pkg/transport/quic"
    "ttdialogue/pkg/transport/tcp"
)

// shared so that listeners and dialers inside one process meet
var memTransport = mem.New()

// New returns the transport for kind. maxFrame bounds a single wire message.
func New(kind transport.Kind, maxFrame int) (transport.Transport, error) {
    switch kind {
    case transport.KindTCP:
        return tcp.New(maxFrame), nil
    case transport.KindQUIC:
        return quic.New(maxFrame)
    case transport.KindWinPipe:
        return newWinPipeTransport(maxFrame)
    case transport.KindMem:
        return memTransport, nil
    default:
        return nil, fmt.Errorf("unsupported transport kind: %s", kind)
    }
}
