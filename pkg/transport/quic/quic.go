package quic

import (
    "context"
    "crypto/rand"
    "crypto/rsa"
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "io"
    "math/big"
    "net"
    "sync"
    "time"

    quicgo "github.com/quic-go/quic-go"

    "ttdialogue/pkg/transport"
)

const alpn = "ttdialogue"

// Transport implements QUIC sessions carrying one bidirectional stream,
// opened by the dialer and accepted by the listener. Stream FIN gives the
// half-close a client hangs up with.
type Transport struct {
    tlsConf  *tls.Config
    quicConf *quicgo.Config
    maxFrame int
}

// New creates a transport with an ephemeral self-signed server certificate.
func New(maxFrame int) (*Transport, error) {
    cert, err := selfSignedCert()
    if err != nil { return nil, fmt.Errorf("quic: certificate: %w", err) }
    tlsConf := &tls.Config{
        Certificates: []tls.Certificate{cert},
        NextProtos:   []string{alpn},
        MinVersion:   tls.VersionTLS13,
    }
    qconf := &quicgo.Config{KeepAlivePeriod: 15 * time.Second}
    return &Transport{tlsConf: tlsConf, quicConf: qconf, maxFrame: maxFrame}, nil
}

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    l, err := quicgo.ListenAddr(address, t.tlsConf, t.quicConf)
    if err != nil { return nil, err }
    ql := &listener{l: l, maxFrame: t.maxFrame, closeCh: make(chan struct{})}
    go func() {
        select {
        case <-ctx.Done():
            _ = ql.Close()
        case <-ql.closeCh:
        }
    }()
    return ql, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
    // Self-signed peers; the dialogue layer carries no identity of its own.
    tlsClient := &tls.Config{
        InsecureSkipVerify: true,
        NextProtos:         []string{alpn},
        MinVersion:         tls.VersionTLS13,
    }
    c, err := quicgo.DialAddr(ctx, address, tlsClient, t.quicConf)
    if err != nil { return nil, err }
    return &session{c: c, maxFrame: t.maxFrame}, nil
}

type listener struct {
    l         *quicgo.Listener
    maxFrame  int
    closeCh   chan struct{}
    closeOnce sync.Once
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
    c, err := l.l.Accept(ctx)
    if err != nil { return nil, err }
    return &session{c: c, inbound: true, maxFrame: l.maxFrame}, nil
}

func (l *listener) Close() error {
    err := net.ErrClosed
    l.closeOnce.Do(func() {
        close(l.closeCh)
        err = l.l.Close()
    })
    return err
}

type session struct {
    c        quicgo.Connection
    inbound  bool
    maxFrame int

    mu sync.Mutex
    st transport.Stream
}

func (s *session) TransportKind() transport.Kind { return transport.KindQUIC }
func (s *session) LocalAddr() net.Addr           { return s.c.LocalAddr() }
func (s *session) RemoteAddr() net.Addr          { return s.c.RemoteAddr() }

// OpenStream opens the session stream and announces it with an empty
// message, since QUIC only tells the peer about a stream once data flows.
func (s *session) OpenStream(ctx context.Context) (transport.Stream, error) {
    if s.inbound { return s.AcceptStream(ctx) }
    s.mu.Lock(); defer s.mu.Unlock()
    if s.st != nil { return s.st, nil }
    qs, err := s.c.OpenStreamSync(ctx)
    if err != nil { return nil, err }
    st := transport.NewFramedStream(&qconn{Stream: qs, conn: s.c}, s.maxFrame)
    if err := st.SendBytes(nil); err != nil { return nil, err }
    if err := st.Flush(); err != nil { return nil, err }
    s.st = st
    return st, nil
}

func (s *session) AcceptStream(ctx context.Context) (transport.Stream, error) {
    if !s.inbound { return s.OpenStream(ctx) }
    s.mu.Lock(); defer s.mu.Unlock()
    if s.st != nil { return s.st, nil }
    qs, err := s.c.AcceptStream(ctx)
    if err != nil { return nil, err }
    st := transport.NewFramedStream(&qconn{Stream: qs, conn: s.c}, s.maxFrame)
    hello, err := st.RecvBytes()
    if err != nil { return nil, err }
    if len(hello) != 0 { return nil, errors.New("quic: unexpected stream preamble") }
    s.st = st
    return st, nil
}

func (s *session) Close() error { return s.c.CloseWithError(0, "") }

// qconn adapts a QUIC stream to io.ReadWriteCloser: Close tears down the
// connection, CloseWrite sends FIN.
type qconn struct {
    quicgo.Stream
    conn quicgo.Connection
}

func (q *qconn) Read(p []byte) (int, error) {
    n, err := q.Stream.Read(p)
    var ae *quicgo.ApplicationError
    if err != nil && errors.As(err, &ae) && ae.ErrorCode == 0 {
        // orderly close by the peer
        err = io.EOF
    }
    return n, err
}

func (q *qconn) CloseWrite() error { return q.Stream.Close() }

func (q *qconn) Close() error {
    _ = q.Stream.Close()
    return q.conn.CloseWithError(0, "")
}

// selfSignedCert generates a short-lived self-signed TLS certificate for local QUIC use.
func selfSignedCert() (tls.Certificate, error) {
    priv, err := rsa.GenerateKey(rand.Reader, 2048)
    if err != nil { return tls.Certificate{}, err }
    tmpl := x509.Certificate{
        SerialNumber:          big.NewInt(time.Now().UnixNano()),
        NotBefore:             time.Now().Add(-time.Minute),
        NotAfter:              time.Now().Add(24 * time.Hour),
        KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
        BasicConstraintsValid: true,
        DNSNames:              []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
    if err != nil { return tls.Certificate{}, err }
    return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}
