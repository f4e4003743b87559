package transports

import (
    "runtime"
    "testing"

    "ttdialogue/pkg/transport"
)

func TestNewByKind(t *testing.T) {
    for _, k := range []transport.Kind{transport.KindTCP, transport.KindMem, transport.KindQUIC} {
        tr, err := New(k, 0)
        if err != nil { t.Fatalf("%s: %v", k, err) }
        if tr.Kind() != k { t.Fatalf("kind = %s, want %s", tr.Kind(), k) }
    }
    if _, err := New(transport.KindUnknown, 0); err == nil { t.Fatalf("unknown kind accepted") }
    if runtime.GOOS != "windows" {
        if _, err := New(transport.KindWinPipe, 0); err == nil { t.Fatalf("winpipe accepted off windows") }
    }
}
