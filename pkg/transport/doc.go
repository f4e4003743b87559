// Package transport defines the link interfaces dialogues run over and the
// adapter that turns a byte stream into a packet transport.
//
// Key concepts:
// - Transport: dials/listens for Sessions of a specific Kind (TCP, QUIC, ...)
// - Session: a connection to a peer, exposing one Stream
// - Stream: length-prefixed messages with half-close
// - PacketConn: packet.Frame transport over a Stream, encoded by a packet.WireCodec
package transport
