package packet

import "fmt"

// ID identifies the conversation a packet belongs to.
// ID 0 is reserved for one-off messages and never names a conversation.
type ID uint32

const MessageID ID = 0

// Type tags a packet with its role inside a conversation (fits in u8).
type Type uint8

const (
    TypeInvalid Type = iota
    Message           // one-off, no reply
    Request           // opens a request; without data on a live id it cancels
    Response          // answers a request; without data it declines or acks a cancel
    DuplexInitial     // opens a sub-duplex
    DuplexRequest     // initiator -> acceptor data
    DuplexResponse    // acceptor -> initiator data
    DuplexRequestEnd  // initiator closes its direction
    DuplexResponseEnd // acceptor closes its direction
)

// Flags bitmask (u8)
const (
    FlagData uint8 = 1 << 0 // packet carries a data item (possibly zero-length)
)

func (t Type) String() string {
    switch t {
    case Message:
        return "message"
    case Request:
        return "request"
    case Response:
        return "response"
    case DuplexInitial:
        return "duplex-initial"
    case DuplexRequest:
        return "duplex-request"
    case DuplexResponse:
        return "duplex-response"
    case DuplexRequestEnd:
        return "duplex-request-end"
    case DuplexResponseEnd:
        return "duplex-response-end"
    default:
        return fmt.Sprintf("type(%d)", uint8(t))
    }
}

// Valid reports whether t is one of the eight packet types.
func (t Type) Valid() bool { return t >= Message && t <= DuplexResponseEnd }

// IsDuplex reports whether t belongs to a sub-duplex conversation.
func (t Type) IsDuplex() bool { return t >= DuplexInitial && t <= DuplexResponseEnd }
