package dialogue

import "context"

// Transport is the packet pipe a Dialogue multiplexes over.
//
// Send hands a packet to the transport and may buffer it; Flush pushes
// everything buffered so far. Recv returns io.EOF once the peer has finished
// writing. Send/Flush are called from one goroutine at a time and Recv from
// one goroutine at a time, but the two sides run concurrently. Close must
// unblock a pending Recv.
type Transport[P any] interface {
    Send(p P) error
    Flush(ctx context.Context) error
    Recv(ctx context.Context) (P, error)
    Close() error
}

// HalfCloser is implemented by transports that can stop writing while still
// reading. The client side uses it to hang up gracefully.
type HalfCloser interface {
    CloseWrite() error
}
