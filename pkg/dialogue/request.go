package dialogue

import (
    "context"

    "ttdialogue/pkg/packet"
)

type reqState uint8

const (
    reqAwaiting reqState = iota
    reqCancelled // resolved locally, id held until the peer acks
    reqDone
)

type localRequest[D any] struct {
    state reqState
    done  chan struct{}
    data  D
    ok    bool
    err   error
}

func (r *localRequest[D]) finish(data D, ok bool, err error) {
    r.data, r.ok, r.err = data, ok, err
    close(r.done)
}

// Response is the caller's handle on a request it sent.
type Response[P packet.Packet[D], D any] struct {
    d  *Dialogue[P, D]
    id packet.ID
    r  *localRequest[D]
}

func (h *Response[P, D]) ID() packet.ID { return h.id }

// Done is closed once the outcome is known.
func (h *Response[P, D]) Done() <-chan struct{} { return h.r.done }

// Wait blocks until the outcome is known or ctx is done. ok is false when
// the peer declined. err is ErrCancelled after Cancel and
// ErrClosedDialogue when the dialogue closed first.
func (h *Response[P, D]) Wait(ctx context.Context) (data D, ok bool, err error) {
    select {
    case <-h.r.done:
        return h.r.data, h.r.ok, h.r.err
    case <-ctx.Done():
        return data, false, ctx.Err()
    }
}

// Cancel withdraws the request. A request still staged never leaves;
// otherwise an empty Request packet tells the peer to stop. Cancelling a
// request that already has an outcome does nothing.
func (h *Response[P, D]) Cancel() error {
    d := h.d
    d.mu.Lock(); defer d.mu.Unlock()
    r := h.r
    if r.state != reqAwaiting { return nil }
    var zero D
    r.state = reqCancelled
    r.finish(zero, false, ErrCancelled)
    if len(d.out.Purge(uint32(h.id), nil)) > 0 {
        d.dropRequestLocked(h.id)
        return nil
    }
    if !d.closing { d.stageLocked(h.id, packet.Request, zero, false) }
    return nil
}

// PollComplete flushes the dialogue.
func (h *Response[P, D]) PollComplete(ctx context.Context) error { return h.d.PollComplete(ctx) }

// Release cancels the request unless it already has an outcome.
func (h *Response[P, D]) Release() { _ = h.Cancel() }

type remoteRequest struct {
    cancelled chan struct{}
    fired     bool
    claimed   bool // handed out by PacketAsRequest
    answered  bool
}

func newRemote() *remoteRequest { return &remoteRequest{cancelled: make(chan struct{})} }

func (r *remoteRequest) fire() {
    if r.fired { return }
    r.fired = true
    close(r.cancelled)
}

// Request is the handle on a request received from the peer. It must be
// answered at most once, by Respond or Decline.
type Request[P packet.Packet[D], D any] struct {
    d    *Dialogue[P, D]
    id   packet.ID
    data D
    r    *remoteRequest
}

func (h *Request[P, D]) ID() packet.ID { return h.id }
func (h *Request[P, D]) Data() D       { return h.data }

// Cancelled is closed when the peer withdraws the request or the dialogue closes.
func (h *Request[P, D]) Cancelled() <-chan struct{} { return h.r.cancelled }

// Respond stages the answer.
func (h *Request[P, D]) Respond(data D) error { return h.answer(data, true) }

// Decline stages an empty answer; the requester sees no data.
func (h *Request[P, D]) Decline() error {
    var zero D
    return h.answer(zero, false)
}

func (h *Request[P, D]) answer(data D, ok bool) error {
    d := h.d
    d.mu.Lock(); defer d.mu.Unlock()
    switch {
    case d.closed:
        return ErrClosedDialogue
    case h.r.answered && h.r.fired:
        return ErrCancelled
    case h.r.answered:
        return ErrHandleUsed
    case h.r.fired:
        h.r.answered = true
        return ErrCancelled
    case d.closing:
        return ErrClosedDialogue
    }
    h.r.answered = true
    d.dropRemoteLocked(h.id)
    d.stageLocked(h.id, packet.Response, data, ok)
    return nil
}

// PollComplete flushes the dialogue.
func (h *Request[P, D]) PollComplete(ctx context.Context) error { return h.d.PollComplete(ctx) }

// Release declines the request if it was never answered.
func (h *Request[P, D]) Release() { _ = h.Decline() }
