package dialogue

import (
    "errors"
    "fmt"

    "ttdialogue/pkg/packet"
)

var (
    // ErrClosedDialogue is returned by every operation once the dialogue is closed.
    ErrClosedDialogue = errors.New("dialogue: closed")
    // ErrCancelled resolves a response handle whose request was cancelled locally.
    ErrCancelled = errors.New("dialogue: request cancelled")
    // ErrHandleUsed is returned when a request handle is answered twice.
    ErrHandleUsed = errors.New("dialogue: request already answered")
    // ErrIDsExhausted is returned when every id of our parity is in use.
    ErrIDsExhausted = errors.New("dialogue: no free conversation id")
)

// EndWithError reports that the peer ended a sub-duplex direction with
// an error item.
type EndWithError[D any] struct {
    Data D
}

func (e *EndWithError[D]) Error() string {
    return fmt.Sprintf("dialogue: sub-duplex ended with error: %v", e.Data)
}

// Side tells which half of the transport failed.
type Side uint8

const (
    SinkSide   Side = iota + 1 // sending, flushing
    StreamSide                 // receiving, inbound protocol checks
)

func (s Side) String() string {
    if s == SinkSide { return "sink" }
    return "stream"
}

// TransportError wraps a failure of the underlying transport. It is fatal:
// the dialogue is closed when one is reported.
type TransportError struct {
    Side Side
    Err  error
}

func (e *TransportError) Error() string { return fmt.Sprintf("dialogue: %s error: %v", e.Side, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ErrorCode classifies protocol violations by the peer.
type ErrorCode uint16

const (
    CodeUnknownID      ErrorCode = 1001 // continuation packet for an id with no conversation
    CodeUnexpectedType ErrorCode = 1002 // packet type not valid for the conversation
    CodeBadParity      ErrorCode = 1003 // peer opened a conversation in our id space
    CodeDataAfterEnd   ErrorCode = 1004 // data or end after the direction was closed
    CodeDuplicateID    ErrorCode = 1005 // peer reused a live id
)

func (c ErrorCode) String() string {
    switch c {
    case CodeUnknownID:
        return "unknown id"
    case CodeUnexpectedType:
        return "unexpected type"
    case CodeBadParity:
        return "bad id parity"
    case CodeDataAfterEnd:
        return "data after end"
    case CodeDuplicateID:
        return "duplicate id"
    default:
        return fmt.Sprintf("code(%d)", uint16(c))
    }
}

// ProtocolError describes an inbound packet that violates the protocol.
// It reaches callers wrapped in a stream-side TransportError.
type ProtocolError struct {
    Code ErrorCode
    ID   packet.ID
    Type packet.Type
    Msg  string
}

func (e *ProtocolError) Error() string {
    s := fmt.Sprintf("protocol error %d (%s): %s on id %d", uint16(e.Code), e.Code, e.Type, e.ID)
    if e.Msg != "" { s += ": " + e.Msg }
    return s
}

func violation(code ErrorCode, id packet.ID, typ packet.Type, msg string) *ProtocolError {
    return &ProtocolError{Code: code, ID: id, Type: typ, Msg: msg}
}

// AsProtocolError extracts a ProtocolError from err.
func AsProtocolError(err error) (*ProtocolError, bool) {
    var pe *ProtocolError
    ok := errors.As(err, &pe)
    return pe, ok
}
