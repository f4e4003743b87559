package dialogue

import (
    "fmt"
    "strings"

    "ttdialogue/pkg/packet"
)

// Role is the side of the connection a Dialogue plays.
//
// The client allocates odd conversation ids and the server even ones, so the
// two sides never pick the same id. On shutdown the client hangs up first:
// it stops writing and waits for the server to close the connection, which
// guarantees every response the server staged before closing is delivered.
type Role uint8

const (
    Client Role = iota + 1
    Server
)

// IsServer reports whether r is the server side.
func (r Role) IsServer() bool { return r == Server }

func (r Role) String() string {
    switch r {
    case Client:
        return "client"
    case Server:
        return "server"
    default:
        return fmt.Sprintf("role(%d)", uint8(r))
    }
}

// ParseRole maps a config value to a Role.
func ParseRole(s string) (Role, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "client":
        return Client, nil
    case "server":
        return Server, nil
    default:
        return 0, fmt.Errorf("unknown role: %q", s)
    }
}

func (r Role) peer() Role {
    if r == Server { return Client }
    return Server
}

func (r Role) firstID() packet.ID {
    if r == Server { return 2 }
    return 1
}

// owns reports whether id falls in the id space r allocates from.
func (r Role) owns(id packet.ID) bool {
    if id == packet.MessageID { return false }
    return (id%2 == 0) == r.IsServer()
}
