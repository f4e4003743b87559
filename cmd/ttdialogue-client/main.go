// Command ttdialogue-client opens one of each conversation kind against a
// node and prints what comes back.
package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "io"
    "log"
    "os"
    "time"

    "google.golang.org/protobuf/types/known/structpb"

    "ttdialogue/pkg/dialogue"
    "ttdialogue/pkg/netstack"
    "ttdialogue/pkg/packet"
    "ttdialogue/pkg/packet/codec"
    "ttdialogue/pkg/transport"
    "ttdialogue/pkg/transports"
)

func main() {
    kindStr := flag.String("kind", "tcp", "transport kind: tcp, quic, winpipe")
    addr := flag.String("addr", "127.0.0.1:7777", "node address")
    wireName := flag.String("wire", packet.WireBinary, "wire codec: binary or cbor")
    formatStr := flag.String("format", "json", "body format: json, cbor, proto")
    text := flag.String("text", "hello", "text to send")
    items := flag.Int("items", 3, "items to stream over the sub-duplex")
    timeout := flag.Duration("timeout", 10*time.Second, "overall timeout")
    flag.Parse()

    kind, err := transport.ParseKind(*kindStr)
    if err != nil { log.Fatal(err) }
    wire, err := packet.WireCodecByName(*wireName)
    if err != nil { log.Fatal(err) }
    format, err := codec.ParseFormat(*formatStr)
    if err != nil { log.Fatal(err) }
    reg, err := codec.NewRegistry()
    if err != nil { log.Fatal(err) }
    tr, err := transports.New(kind, transport.DefaultMaxFrame)
    if err != nil { log.Fatal(err) }

    ctx, cancel := context.WithTimeout(context.Background(), *timeout)
    defer cancel()
    cli, err := netstack.Dial(ctx, tr, *addr, nil, netstack.Options{Wire: wire, DialAttempts: 3})
    if err != nil { log.Fatal(err) }
    if err := talk(ctx, cli.Dialogue(), reg, format, *text, *items); err != nil {
        _ = cli.Close()
        log.Fatal(err)
    }
    if err := cli.Shutdown(ctx); err != nil { log.Fatal(err) }
}

func talk(ctx context.Context, d *netstack.FrameDialogue, reg *codec.Registry, format codec.Format, text string, items int) error {
    body := func(i int) ([]byte, error) {
        if format == codec.FormatProto {
            s, err := structpb.NewStruct(map[string]any{"text": text, "seq": i})
            if err != nil { return nil, err }
            return reg.EncodeBody(format, s)
        }
        return reg.EncodeBody(format, map[string]any{"text": text, "seq": i})
    }
    show := func(b []byte) string {
        if format == codec.FormatProto {
            var s structpb.Struct
            if _, err := reg.DecodeBody(b, &s); err != nil { return fmt.Sprintf("<%v>", err) }
            return fmt.Sprint(s.AsMap())
        }
        var v map[string]any
        if _, err := reg.DecodeBody(b, &v); err != nil { return fmt.Sprintf("<%v>", err) }
        return fmt.Sprint(v)
    }

    b, err := body(0)
    if err != nil { return err }
    if err := d.Message(b); err != nil { return err }

    resp, err := d.Request(b)
    if err != nil { return err }
    if err := resp.PollComplete(ctx); err != nil { return err }
    data, ok, err := resp.Wait(ctx)
    if err != nil { return err }
    if ok {
        fmt.Fprintf(os.Stdout, "response: %s\n", show(data))
    } else {
        fmt.Fprintln(os.Stdout, "response: declined")
    }

    sd, err := d.SubDuplex(b)
    if err != nil { return err }
    for i := 1; i <= items; i++ {
        b, err := body(i)
        if err != nil { return err }
        if err := sd.Send(b); err != nil { return err }
    }
    if err := sd.Close(); err != nil { return err }
    if err := sd.PollComplete(ctx); err != nil { return err }
    for {
        data, err := sd.Recv(ctx)
        var ewe *dialogue.EndWithError[[]byte]
        switch {
        case errors.Is(err, io.EOF):
            return nil
        case errors.As(err, &ewe):
            fmt.Fprintf(os.Stdout, "duplex ended with error: %s\n", show(ewe.Data))
            return nil
        case err != nil:
            return err
        }
        fmt.Fprintf(os.Stdout, "duplex item: %s\n", show(data))
    }
}
