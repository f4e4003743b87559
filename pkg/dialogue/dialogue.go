package dialogue

import (
    "context"
    "errors"
    "io"
    "sync"
    "time"

    "github.com/hashicorp/go-multierror"
    "go.uber.org/zap"

    "ttdialogue/pkg/core/priocq"
    "ttdialogue/pkg/packet"
)

// Dialogue multiplexes messages, requests and sub-duplexes of packets P
// carrying data D over one Transport.
type Dialogue[P packet.Packet[D], D any] struct {
    t         Transport[P]
    newPacket func(D, bool) P
    role      Role
    log       *zap.Logger
    metrics   *Metrics
    linger    time.Duration

    recvMu sync.Mutex // one Next at a time
    sendMu sync.Mutex // drained batches reach the transport in drain order

    mu       sync.Mutex
    out      *priocq.Queue[P]
    nextID   packet.ID
    requests map[packet.ID]*localRequest[D]
    remotes  map[packet.ID]*remoteRequest
    duplexes map[packet.ID]*duplex[D]
    idle     chan struct{} // closed when a peer request is answered, see awaitRemotes
    closing  bool          // no new outbound traffic
    closed   bool
    cause    error
    done     chan struct{}
}

// New wraps t. newPacket builds an outgoing packet from a data item
// (ok == false builds an empty packet); the dialogue sets its id and type.
func New[P packet.Packet[D], D any](t Transport[P], newPacket func(D, bool) P, role Role, opts ...Option) *Dialogue[P, D] {
    if t == nil || newPacket == nil {
        panic("dialogue: New needs a transport and a packet constructor")
    }
    if role != Client && role != Server {
        panic("dialogue: invalid role " + role.String())
    }
    o := buildOptions(opts)
    d := &Dialogue[P, D]{
        t:         t,
        newPacket: newPacket,
        role:      role,
        log:       o.log.With(zap.Stringer("role", role)),
        metrics:   o.metrics,
        linger:    o.linger,
        out:       priocq.New[P](),
        nextID:    role.firstID(),
        requests:  make(map[packet.ID]*localRequest[D]),
        remotes:   make(map[packet.ID]*remoteRequest),
        duplexes:  make(map[packet.ID]*duplex[D]),
        done:      make(chan struct{}),
    }
    d.metrics.dialogue(1)
    d.log.Debug("dialogue opened")
    return d
}

func (d *Dialogue[P, D]) Role() Role { return d.role }

// Done is closed once the dialogue is closed.
func (d *Dialogue[P, D]) Done() <-chan struct{} { return d.done }

// Err returns the failure that closed the dialogue, or nil after an orderly close.
func (d *Dialogue[P, D]) Err() error {
    d.mu.Lock(); defer d.mu.Unlock()
    return d.cause
}

// Stats is a snapshot of the dialogue's bookkeeping.
type Stats struct {
    Requests int // our requests awaiting a response or a cancel ack
    Remote   int // peer requests not answered yet
    Duplexes int // sub-duplexes, both directions not yet finished
    Staged   int // packets waiting for PollComplete
    Closed   bool
}

func (d *Dialogue[P, D]) Stats() Stats {
    d.mu.Lock(); defer d.mu.Unlock()
    return Stats{
        Requests: len(d.requests),
        Remote:   len(d.remotes),
        Duplexes: len(d.duplexes),
        Staged:   d.out.Len(),
        Closed:   d.closed,
    }
}

// Message stages a one-off packet.
func (d *Dialogue[P, D]) Message(data D) error {
    d.mu.Lock(); defer d.mu.Unlock()
    if err := d.writableLocked(); err != nil { return err }
    d.stageLocked(packet.MessageID, packet.Message, data, true)
    return nil
}

// Request stages a request and returns the handle its response arrives on.
func (d *Dialogue[P, D]) Request(data D) (*Response[P, D], error) {
    d.mu.Lock(); defer d.mu.Unlock()
    if err := d.writableLocked(); err != nil { return nil, err }
    id, err := d.allocIDLocked()
    if err != nil { return nil, err }
    r := &localRequest[D]{done: make(chan struct{})}
    d.requests[id] = r
    d.metrics.track(kindRequest, 1)
    d.stageLocked(id, packet.Request, data, true)
    return &Response[P, D]{d: d, id: id, r: r}, nil
}

// SubDuplex stages the opening packet of a sub-duplex and returns its handle.
func (d *Dialogue[P, D]) SubDuplex(data D) (*SubDuplex[P, D], error) {
    d.mu.Lock(); defer d.mu.Unlock()
    if err := d.writableLocked(); err != nil { return nil, err }
    id, err := d.allocIDLocked()
    if err != nil { return nil, err }
    x := newDuplex[D](true)
    d.duplexes[id] = x
    d.metrics.track(kindDuplex, 1)
    d.stageLocked(id, packet.DuplexInitial, data, true)
    return &SubDuplex[P, D]{d: d, id: id, x: x, data: data}, nil
}

// PacketAsRequest turns a Request packet returned by Next into a handle.
// It panics on any other packet type.
func (d *Dialogue[P, D]) PacketAsRequest(p P) *Request[P, D] {
    if p.Type() != packet.Request {
        panic("dialogue: PacketAsRequest on " + p.Type().String() + " packet")
    }
    data, _ := p.Data()
    d.mu.Lock(); defer d.mu.Unlock()
    r := d.remotes[p.ID()]
    if r != nil {
        r.claimed = true
    } else {
        // already cancelled by the peer, or never seen by Next
        r = newRemote()
        r.fire()
    }
    return &Request[P, D]{d: d, id: p.ID(), data: data, r: r}
}

// PacketAsSubDuplex turns a DuplexInitial packet returned by Next into a handle.
// It panics on any other packet type.
func (d *Dialogue[P, D]) PacketAsSubDuplex(p P) *SubDuplex[P, D] {
    if p.Type() != packet.DuplexInitial {
        panic("dialogue: PacketAsSubDuplex on " + p.Type().String() + " packet")
    }
    data, _ := p.Data()
    d.mu.Lock(); defer d.mu.Unlock()
    x := d.duplexes[p.ID()]
    if x == nil || x.out {
        // aborted by the peer before we looked at it, or never seen by Next
        x = newDuplex[D](false)
        x.send, x.recv, x.peerDone = dirAborted, dirAborted, true
        x.gone = d.closed
    }
    return &SubDuplex[P, D]{d: d, id: p.ID(), x: x, data: data}
}

// PollComplete hands every staged packet to the transport and flushes it.
// A transport failure closes the dialogue and is returned as a sink-side
// TransportError. Cancelling ctx interrupts the flush without closing.
func (d *Dialogue[P, D]) PollComplete(ctx context.Context) error {
    d.sendMu.Lock()
    defer d.sendMu.Unlock()
    d.mu.Lock()
    if d.closed {
        d.mu.Unlock()
        return ErrClosedDialogue
    }
    batch := d.out.Drain()
    d.mu.Unlock()
    for _, p := range batch {
        if err := d.t.Send(p); err != nil { return d.sinkFailed(err) }
        d.metrics.packetOut(p.Type())
    }
    if err := d.t.Flush(ctx); err != nil {
        if ctx.Err() != nil && errors.Is(err, ctx.Err()) { return err }
        return d.sinkFailed(err)
    }
    return nil
}

// Next reads inbound packets until one opens something new: a Message,
// a Request or a DuplexInitial. Everything else is routed to the handles it
// belongs to. Next returns io.EOF once the dialogue is closed. A transport
// failure or a protocol violation by the peer closes the dialogue and is
// returned as a stream-side TransportError.
func (d *Dialogue[P, D]) Next(ctx context.Context) (P, error) {
    var zero P
    d.recvMu.Lock()
    defer d.recvMu.Unlock()
    for {
        if d.isClosed() { return zero, io.EOF }
        p, err := d.t.Recv(ctx)
        if err != nil {
            switch {
            case d.isClosed():
                return zero, io.EOF
            case ctx.Err() != nil:
                return zero, ctx.Err()
            case errors.Is(err, io.EOF):
                d.peerHungUp()
                return zero, io.EOF
            }
            return zero, d.streamFailed(err)
        }
        d.metrics.packetIn(p.Type())
        fresh, err := d.dispatch(p)
        if err != nil {
            if pe, ok := AsProtocolError(err); ok { d.metrics.violation(pe.Code) }
            return zero, d.streamFailed(err)
        }
        if fresh { return p, nil }
    }
}

// Shutdown closes the dialogue gracefully. Staged packets are flushed first.
// A server then closes the transport. A client stops writing and waits,
// bounded by ctx, for the server to close; Next must keep being called for
// that to be observed. A client transport without CloseWrite is closed directly.
func (d *Dialogue[P, D]) Shutdown(ctx context.Context) error {
    d.mu.Lock()
    if d.closed {
        d.mu.Unlock()
        return nil
    }
    d.closing = true
    d.mu.Unlock()

    var merr *multierror.Error
    if err := d.PollComplete(ctx); err != nil && !errors.Is(err, ErrClosedDialogue) {
        merr = multierror.Append(merr, err)
    }
    hc, ok := d.t.(HalfCloser)
    if d.role.IsServer() || !ok || d.isClosed() {
        if err := d.terminate(nil); err != nil { merr = multierror.Append(merr, err) }
        return merr.ErrorOrNil()
    }
    if err := hc.CloseWrite(); err != nil {
        d.log.Debug("half-close failed, closing", zap.Error(err))
        if err := d.terminate(nil); err != nil { merr = multierror.Append(merr, err) }
        return merr.ErrorOrNil()
    }
    d.log.Debug("hung up, waiting for server to close")
    select {
    case <-d.done:
    case <-ctx.Done():
        merr = multierror.Append(merr, ctx.Err())
        if err := d.terminate(nil); err != nil { merr = multierror.Append(merr, err) }
    }
    return merr.ErrorOrNil()
}

// Close closes the dialogue and the transport immediately. Staged packets
// are dropped and every outstanding handle reports ErrClosedDialogue.
func (d *Dialogue[P, D]) Close() error { return d.terminate(nil) }

func (d *Dialogue[P, D]) isClosed() bool {
    d.mu.Lock(); defer d.mu.Unlock()
    return d.closed
}

func (d *Dialogue[P, D]) writableLocked() error {
    if d.closed || d.closing { return ErrClosedDialogue }
    return nil
}

func (d *Dialogue[P, D]) allocIDLocked() (packet.ID, error) {
    // every probe is a distinct id, so live+2 probes find a free one if any is left
    limit := len(d.requests) + len(d.duplexes) + 2
    for i := 0; i < limit; i++ {
        id := d.nextID
        d.nextID += 2
        if id == packet.MessageID { continue }
        if _, ok := d.requests[id]; ok { continue }
        if _, ok := d.duplexes[id]; ok { continue }
        return id, nil
    }
    return 0, ErrIDsExhausted
}

func classOf(t packet.Type) priocq.Class {
    switch t {
    case packet.Message:
        return priocq.L2Bulk
    case packet.Request, packet.Response:
        return priocq.L0Control
    default:
        return priocq.L1Duplex
    }
}

func (d *Dialogue[P, D]) stageLocked(id packet.ID, t packet.Type, data D, ok bool) {
    p := d.newPacket(data, ok)
    p.SetID(id)
    p.SetType(t)
    d.out.Enqueue(uint32(id), classOf(t), p)
}

func (d *Dialogue[P, D]) dropRequestLocked(id packet.ID) {
    if _, ok := d.requests[id]; !ok { return }
    delete(d.requests, id)
    d.metrics.track(kindRequest, -1)
}

func (d *Dialogue[P, D]) dropRemoteLocked(id packet.ID) {
    if _, ok := d.remotes[id]; !ok { return }
    delete(d.remotes, id)
    d.metrics.track(kindRemote, -1)
    if d.idle != nil {
        close(d.idle)
        d.idle = nil
    }
}

func (d *Dialogue[P, D]) dropDuplexLocked(id packet.ID) {
    if _, ok := d.duplexes[id]; !ok { return }
    delete(d.duplexes, id)
    d.metrics.track(kindDuplex, -1)
}

func (d *Dialogue[P, D]) sinkFailed(err error) error {
    if d.isClosed() { return ErrClosedDialogue }
    terr := &TransportError{Side: SinkSide, Err: err}
    d.log.Warn("transport send failed, closing dialogue", zap.Error(err))
    _ = d.terminate(terr)
    return terr
}

func (d *Dialogue[P, D]) streamFailed(err error) error {
    terr := &TransportError{Side: StreamSide, Err: err}
    if _, ok := AsProtocolError(err); ok {
        d.log.Warn("peer violated protocol, closing dialogue", zap.Error(err))
    } else {
        d.log.Warn("transport receive failed, closing dialogue", zap.Error(err))
    }
    _ = d.terminate(terr)
    return terr
}

// peerHungUp runs when the transport reports the end of inbound data. The
// server answers what the client is still waiting for, flushes and closes;
// the client just closes.
func (d *Dialogue[P, D]) peerHungUp() {
    d.log.Debug("peer finished writing")
    if d.role.IsServer() {
        ctx, cancel := context.WithTimeout(context.Background(), d.linger)
        d.awaitRemotes(ctx)
        d.mu.Lock()
        d.closing = true
        d.mu.Unlock()
        if err := d.PollComplete(ctx); err != nil && !errors.Is(err, ErrClosedDialogue) {
            d.log.Debug("final flush failed", zap.Error(err))
        }
        cancel()
    }
    if err := d.terminate(nil); err != nil {
        d.log.Debug("closing transport", zap.Error(err))
    }
}

// awaitRemotes waits until every peer request handed out by PacketAsRequest
// has been answered. Requests nobody claimed are not waited for.
func (d *Dialogue[P, D]) awaitRemotes(ctx context.Context) {
    for {
        d.mu.Lock()
        pending := false
        for _, r := range d.remotes {
            if r.claimed && !r.answered { pending = true; break }
        }
        if !pending || d.closed {
            d.mu.Unlock()
            return
        }
        if d.idle == nil { d.idle = make(chan struct{}) }
        idle := d.idle
        d.mu.Unlock()
        select {
        case <-idle:
        case <-d.done:
            return
        case <-ctx.Done():
            d.log.Debug("gave up waiting for unanswered requests")
            return
        }
    }
}

// terminate closes the dialogue once; later calls return nil.
func (d *Dialogue[P, D]) terminate(cause error) error {
    var zero D
    d.mu.Lock()
    if d.closed {
        d.mu.Unlock()
        return nil
    }
    d.closed = true
    d.cause = cause
    d.out.Drain()
    for _, r := range d.requests {
        if r.state == reqAwaiting {
            r.state = reqDone
            r.finish(zero, false, ErrClosedDialogue)
        }
    }
    for _, r := range d.remotes { r.fire() }
    for _, x := range d.duplexes {
        x.gone = true
        x.wake()
    }
    d.metrics.track(kindRequest, -len(d.requests))
    d.metrics.track(kindRemote, -len(d.remotes))
    d.metrics.track(kindDuplex, -len(d.duplexes))
    clear(d.requests)
    clear(d.remotes)
    clear(d.duplexes)
    if d.idle != nil {
        close(d.idle)
        d.idle = nil
    }
    close(d.done)
    d.mu.Unlock()

    d.metrics.dialogue(-1)
    if cause != nil {
        d.log.Debug("dialogue closed", zap.Error(cause))
    } else {
        d.log.Debug("dialogue closed")
    }
    return d.t.Close()
}
