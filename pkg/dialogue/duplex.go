package dialogue

import (
    "context"
    "fmt"
    "io"

    "ttdialogue/pkg/packet"
)

// ErrSendClosed is returned when sending on a sub-duplex direction that was
// closed or aborted. It matches ErrClosedDialogue under errors.Is.
var ErrSendClosed = fmt.Errorf("dialogue: sub-duplex send side closed: %w", ErrClosedDialogue)

type dirState uint8

const (
    dirOpen dirState = iota
    dirClosed
    dirAborted
)

// Packet roles per side:
//
//  side      data            close              abort
//  out       DuplexRequest   DuplexRequestEnd   DuplexResponseEnd
//  in        DuplexResponse  DuplexResponseEnd  DuplexRequestEnd
type duplex[D any] struct {
    out       bool // we opened it
    send      dirState
    recv      dirState // what Recv reports once the queue is empty
    peerDone  bool     // peer's final packet (end or abort) arrived
    queue     []D
    endErr    D
    hasEndErr bool
    gone      bool // dialogue closed
    signal    chan struct{}
}

func newDuplex[D any](out bool) *duplex[D] {
    return &duplex[D]{out: out, signal: make(chan struct{}, 1)}
}

func (x *duplex[D]) wake() {
    select {
    case x.signal <- struct{}{}:
    default:
    }
}

func (x *duplex[D]) ownDataType() packet.Type {
    if x.out { return packet.DuplexRequest }
    return packet.DuplexResponse
}

func (x *duplex[D]) ownEndType() packet.Type {
    if x.out { return packet.DuplexRequestEnd }
    return packet.DuplexResponseEnd
}

func (x *duplex[D]) peerDataType() packet.Type {
    if x.out { return packet.DuplexResponse }
    return packet.DuplexRequest
}

func (x *duplex[D]) peerEndType() packet.Type {
    if x.out { return packet.DuplexResponseEnd }
    return packet.DuplexRequestEnd
}

// SubDuplex is one side of a sub-duplex: a sending direction and a
// receiving direction sharing one id. Send and Recv may run on different
// goroutines; Recv itself expects a single reader.
type SubDuplex[P packet.Packet[D], D any] struct {
    d    *Dialogue[P, D]
    id   packet.ID
    x    *duplex[D]
    data D
}

func (s *SubDuplex[P, D]) ID() packet.ID { return s.id }

// Out reports whether this side opened the sub-duplex.
func (s *SubDuplex[P, D]) Out() bool { return s.x.out }

// Data is the item carried by the opening packet.
func (s *SubDuplex[P, D]) Data() D { return s.data }

// Send stages one data item on our direction.
func (s *SubDuplex[P, D]) Send(data D) error {
    d := s.d
    d.mu.Lock(); defer d.mu.Unlock()
    if err := s.sendableLocked(); err != nil { return err }
    d.stageLocked(s.id, s.x.ownDataType(), data, true)
    return nil
}

// Close ends our direction. The peer's direction stays open.
func (s *SubDuplex[P, D]) Close() error {
    var zero D
    return s.end(zero, false)
}

// CloseError ends our direction with an error item; the peer's Recv
// reports it as *EndWithError.
func (s *SubDuplex[P, D]) CloseError(data D) error { return s.end(data, true) }

func (s *SubDuplex[P, D]) end(data D, ok bool) error {
    d := s.d
    d.mu.Lock(); defer d.mu.Unlock()
    if err := s.sendableLocked(); err != nil { return err }
    d.stageLocked(s.id, s.x.ownEndType(), data, ok)
    s.x.send = dirClosed
    d.maybeReleaseDuplexLocked(s.id, s.x)
    return nil
}

func (s *SubDuplex[P, D]) sendableLocked() error {
    switch {
    case s.d.closed, s.d.closing, s.x.gone:
        return ErrClosedDialogue
    case s.x.send != dirOpen:
        return ErrSendClosed
    }
    return nil
}

// Abort stops both directions. Staged and buffered items are discarded.
// The peer is told only if our direction was still open; items it sends
// until it notices are dropped. Aborting twice is a no-op.
func (s *SubDuplex[P, D]) Abort() error {
    var zero D
    return s.abort(zero, false)
}

// AbortError is Abort with an error item for the peer.
func (s *SubDuplex[P, D]) AbortError(data D) error { return s.abort(data, true) }

func (s *SubDuplex[P, D]) abort(data D, ok bool) error {
    d := s.d
    x := s.x
    d.mu.Lock(); defer d.mu.Unlock()
    if d.closed || x.gone { return ErrClosedDialogue }
    if x.send == dirOpen {
        x.send = dirAborted
        purged := d.out.Purge(uint32(s.id), nil)
        if x.out && len(purged) > 0 && purged[0].Type() == packet.DuplexInitial {
            // the peer never heard of it
            x.peerDone = true
        } else if !d.closing {
            d.stageLocked(s.id, x.peerEndType(), data, ok)
        }
    }
    var zero D
    x.recv = dirAborted
    x.queue = nil
    x.endErr, x.hasEndErr = zero, false
    x.wake()
    d.maybeReleaseDuplexLocked(s.id, x)
    return nil
}

// Recv returns the next item from the peer. It returns io.EOF once the peer
// closed its direction or after our own abort, *EndWithError when the peer
// ended with an error item, and ErrClosedDialogue when the dialogue closed
// while the direction was still open.
func (s *SubDuplex[P, D]) Recv(ctx context.Context) (D, error) {
    var zero D
    d := s.d
    x := s.x
    for {
        d.mu.Lock()
        if len(x.queue) > 0 {
            v := x.queue[0]
            x.queue[0] = zero
            x.queue = x.queue[1:]
            d.mu.Unlock()
            return v, nil
        }
        if x.recv != dirOpen {
            hasErr, e := x.hasEndErr, x.endErr
            d.mu.Unlock()
            if hasErr { return zero, &EndWithError[D]{Data: e} }
            return zero, io.EOF
        }
        if x.gone {
            d.mu.Unlock()
            return zero, ErrClosedDialogue
        }
        sig := x.signal
        d.mu.Unlock()
        select {
        case <-sig:
        case <-ctx.Done():
            return zero, ctx.Err()
        }
    }
}

// PollComplete flushes the dialogue.
func (s *SubDuplex[P, D]) PollComplete(ctx context.Context) error { return s.d.PollComplete(ctx) }

// Release aborts the sub-duplex unless both directions already finished.
func (s *SubDuplex[P, D]) Release() {
    d := s.d
    d.mu.Lock()
    finished := d.closed || s.x.gone || (s.x.peerDone && s.x.send != dirOpen)
    d.mu.Unlock()
    if !finished { _ = s.Abort() }
}
