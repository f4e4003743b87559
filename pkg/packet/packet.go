package packet

// Readable is the read side of a packet as the dialogue sees it.
type Readable[D any] interface {
    ID() ID
    Type() Type
    // Data returns the carried data item; ok is false when the packet is empty.
    Data() (data D, ok bool)
}

// Writable is the part of a packet the dialogue fills in before sending.
type Writable interface {
    SetID(ID)
    SetType(Type)
}

// Packet is any concrete packet type usable by a dialogue.
type Packet[D any] interface {
    Readable[D]
    Writable
}

// IsEmpty reports whether p carries no data.
func IsEmpty[D any](p Readable[D]) bool {
    _, ok := p.Data()
    return !ok
}
