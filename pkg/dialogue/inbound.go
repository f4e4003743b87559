package dialogue

import (
    "go.uber.org/zap"

    "ttdialogue/pkg/packet"
)

// dispatch routes one inbound packet. It reports whether the packet opens
// something the caller of Next has to see.
func (d *Dialogue[P, D]) dispatch(p P) (bool, error) {
    id, typ := p.ID(), p.Type()
    d.mu.Lock()
    defer d.mu.Unlock()
    if d.closed { return false, nil }
    switch {
    case typ == packet.Message:
        return true, nil
    case id == packet.MessageID:
        return false, violation(CodeUnknownID, id, typ, "id 0 is reserved for messages")
    case d.role.owns(id):
        return false, d.onOwnIDLocked(id, p)
    default:
        return d.onPeerIDLocked(id, p)
    }
}

// onOwnIDLocked handles packets on ids we allocated: responses to our
// requests and the peer's side of sub-duplexes we opened.
func (d *Dialogue[P, D]) onOwnIDLocked(id packet.ID, p P) error {
    typ := p.Type()
    if r, ok := d.requests[id]; ok {
        if typ != packet.Response {
            return violation(CodeUnexpectedType, id, typ, "expected a response")
        }
        if r.state == reqAwaiting {
            data, has := p.Data()
            r.state = reqDone
            r.finish(data, has, nil)
        }
        d.dropRequestLocked(id)
        return nil
    }
    if x, ok := d.duplexes[id]; ok { return d.onDuplexLocked(id, x, p) }
    if typ == packet.Request || typ == packet.DuplexInitial {
        return violation(CodeBadParity, id, typ, "peer opened a conversation on a "+d.role.String()+" id")
    }
    return violation(CodeUnknownID, id, typ, "")
}

func (d *Dialogue[P, D]) onPeerIDLocked(id packet.ID, p P) (bool, error) {
    typ := p.Type()
    if r, ok := d.remotes[id]; ok {
        switch {
        case typ != packet.Request:
            return false, violation(CodeUnexpectedType, id, typ, "expected a cancellation")
        case !packet.IsEmpty[D](p):
            return false, violation(CodeDuplicateID, id, typ, "request on a live id")
        }
        d.log.Debug("request cancelled by peer", zap.Uint32("id", uint32(id)))
        r.fire()
        d.dropRemoteLocked(id)
        if !r.answered && !d.closing {
            r.answered = true
            var zero D
            d.stageLocked(id, packet.Response, zero, false)
        }
        return false, nil
    }
    if x, ok := d.duplexes[id]; ok {
        if typ == packet.DuplexInitial {
            return false, violation(CodeDuplicateID, id, typ, "sub-duplex on a live id")
        }
        return false, d.onDuplexLocked(id, x, p)
    }
    switch typ {
    case packet.Request:
        if packet.IsEmpty[D](p) {
            // the answer crossed the cancellation on the wire
            d.log.Debug("dropping cancellation of a finished request", zap.Uint32("id", uint32(id)))
            return false, nil
        }
        d.remotes[id] = newRemote()
        d.metrics.track(kindRemote, 1)
        return true, nil
    case packet.DuplexInitial:
        d.duplexes[id] = newDuplex[D](false)
        d.metrics.track(kindDuplex, 1)
        return true, nil
    }
    return false, violation(CodeUnknownID, id, typ, "")
}

func (d *Dialogue[P, D]) onDuplexLocked(id packet.ID, x *duplex[D], p P) error {
    typ := p.Type()
    data, has := p.Data()
    switch typ {
    case x.peerDataType():
        if x.peerDone { return violation(CodeDataAfterEnd, id, typ, "") }
        if x.recv != dirOpen { return nil } // we aborted; peer has not noticed yet
        x.queue = append(x.queue, data)
        x.wake()
    case x.peerEndType():
        if x.peerDone { return violation(CodeDataAfterEnd, id, typ, "second end") }
        x.peerDone = true
        if x.recv == dirOpen {
            x.recv = dirClosed
            x.endErr, x.hasEndErr = data, has
        }
        x.wake()
    case x.ownEndType():
        // the peer aborts with the end type of our direction
        if x.peerDone { return violation(CodeDataAfterEnd, id, typ, "abort after end") }
        x.peerDone = true
        if x.recv == dirOpen {
            x.recv = dirAborted
            x.endErr, x.hasEndErr = data, has
        }
        if x.send == dirOpen {
            x.send = dirAborted
            d.out.Purge(uint32(id), nil)
            if !d.closing {
                var zero D
                d.stageLocked(id, x.ownEndType(), zero, false)
            }
        }
        d.log.Debug("sub-duplex aborted by peer", zap.Uint32("id", uint32(id)))
        x.wake()
    default:
        return violation(CodeUnexpectedType, id, typ, "not a sub-duplex packet for this side")
    }
    d.maybeReleaseDuplexLocked(id, x)
    return nil
}

func (d *Dialogue[P, D]) maybeReleaseDuplexLocked(id packet.ID, x *duplex[D]) {
    if x.peerDone && x.send != dirOpen { d.dropDuplexLocked(id) }
}
