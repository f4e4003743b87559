package transport

import (
    "context"
    "errors"
    "fmt"
    "net"
    "strings"
)

// Kind identifies the link type.
type Kind int

const (
    KindUnknown Kind = iota
    KindTCP
    KindQUIC
    KindWinPipe
    KindMem
)

func (k Kind) String() string {
    switch k {
    case KindTCP:
        return "tcp"
    case KindQUIC:
        return "quic"
    case KindWinPipe:
        return "winpipe"
    case KindMem:
        return "mem"
    default:
        return "unknown"
    }
}

// ParseKind maps a config value to a Kind.
func ParseKind(s string) (Kind, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "tcp":
        return KindTCP, nil
    case "quic":
        return KindQUIC, nil
    case "winpipe", "pipe":
        return KindWinPipe, nil
    case "mem":
        return KindMem, nil
    default:
        return KindUnknown, fmt.Errorf("unknown transport kind: %q", s)
    }
}

// ErrHalfCloseUnsupported is returned by CloseWrite on links that can only close fully.
var ErrHalfCloseUnsupported = errors.New("transport: half-close not supported")

// Stream is a bidirectional message stream.
// Exactly one reader and one writer goroutine are expected.
type Stream interface {
    // SendBytes queues one message; Flush writes queued messages out.
    SendBytes([]byte) error
    Flush() error
    // RecvBytes returns the next message, or io.EOF after the peer's CloseWrite.
    RecvBytes() ([]byte, error)
    // CloseWrite flushes and ends the sending side.
    CloseWrite() error
    Close() error
}

// Session is one connection to a peer.
type Session interface {
    TransportKind() Kind
    LocalAddr() net.Addr
    RemoteAddr() net.Addr

    // OpenStream returns the dialer's stream. AcceptStream returns the
    // listener's side of it. Links without native streams return the
    // connection itself.
    OpenStream(ctx context.Context) (Stream, error)
    AcceptStream(ctx context.Context) (Stream, error)

    Close() error
}

// Listener accepts inbound sessions.
type Listener interface {
    // Accept blocks until an inbound session is available or ctx is done.
    Accept(ctx context.Context) (Session, error)
    Addr() net.Addr
    // Close stops the listener and unblocks Accept.
    Close() error
}

// Transport dials and listens for one link kind.
type Transport interface {
    Kind() Kind
    Listen(ctx context.Context, address string) (Listener, error)
    Dial(ctx context.Context, address string) (Session, error)
}
