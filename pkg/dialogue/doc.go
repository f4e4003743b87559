// Package dialogue multiplexes conversations over a single packet transport.
//
// A Dialogue carries four kinds of traffic between two peers:
//   - messages: one-off packets on id 0, no reply
//   - requests: one packet out, at most one response back, cancellable
//   - sub-duplexes: two independent packet streams under one id, each side
//     closing its own direction, either side may abort both
//   - the packets that keep those conversations going
//
// Outbound operations only stage packets; PollComplete hands everything staged
// to the transport and flushes it. Inbound packets are read by Next, which
// routes continuation packets to their handles and returns the packets that
// open something new. Exactly one goroutine should drive Next (Serve does it
// for you); handles may be used from any goroutine.
//
// The client side allocates odd ids, the server side even ones.
package dialogue
