// Command ttdialogue-genframe writes sample packet frames in both wire
// encodings, for fixtures and for poking at peers by hand.
package main

import (
    "encoding/hex"
    "flag"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "strings"

    "ttdialogue/pkg/packet"
    "ttdialogue/pkg/packet/codec"
)

type sample struct {
    name string
    id   packet.ID
    typ  packet.Type
    body any
}

func main() {
    outDir := flag.String("out", "testdata/frame", "output directory for encoded frames")
    flag.Parse()
    if err := os.MkdirAll(*outDir, 0o755); err != nil { log.Fatal(err) }

    reg, err := codec.NewRegistry()
    if err != nil { log.Fatal(err) }
    samples := []sample{
        {"message", packet.MessageID, packet.Message, map[string]any{"hello": "world"}},
        {"request", 1, packet.Request, map[string]any{"op": "ping", "n": 42}},
        {"response", 1, packet.Response, map[string]any{"ok": true}},
        {"cancel", 3, packet.Request, nil},
        {"duplex_initial", 5, packet.DuplexInitial, map[string]any{"stream": "logs"}},
        {"duplex_request", 5, packet.DuplexRequest, "line 1"},
        {"duplex_request_end", 5, packet.DuplexRequestEnd, nil},
        {"duplex_response_end_err", 5, packet.DuplexResponseEnd, map[string]any{"error": "gone"}},
    }

    cb, err := packet.CBOR()
    if err != nil { log.Fatal(err) }
    for _, wc := range []packet.WireCodec{packet.Binary(), cb} {
        for _, s := range samples {
            f, err := build(reg, s)
            if err != nil { log.Fatal(err) }
            b, err := wc.Marshal(f)
            if err != nil { log.Fatal(err) }
            writeOut(*outDir, fmt.Sprintf("%s_%s.bin", wc.Name(), s.name), b)
        }
    }
    fmt.Println("Generated frames in", *outDir)
}

// build encodes body as JSON; a nil body gives an empty packet.
func build(reg *codec.Registry, s sample) (*packet.Frame, error) {
    var f *packet.Frame
    if s.body == nil {
        f = packet.NewFrame(nil, false)
    } else {
        b, err := reg.EncodeBody(codec.FormatJSON, s.body)
        if err != nil { return nil, err }
        f = packet.NewFrame(b, true)
    }
    f.SetID(s.id)
    f.SetType(s.typ)
    return f, nil
}

func writeOut(dir, name string, b []byte) {
    p := filepath.Join(dir, name)
    if err := os.WriteFile(p, b, 0o644); err != nil { log.Fatal(err) }
    fmt.Printf("%-36s %5d bytes  head: %s\n", name, len(b), shortHex(b, 32))
}

func shortHex(b []byte, n int) string {
    if n > len(b) { n = len(b) }
    enc := hex.EncodeToString(b[:n])
    if len(b) > n { enc += ".." }
    var out []string
    for i := 0; i < len(enc); i += 4 {
        out = append(out, enc[i:min(i+4, len(enc))])
    }
    return strings.Join(out, " ")
}
