// Package netstack runs frame dialogues over the configured transports:
// a listener that serves every accepted session and a dialer with backoff.
package netstack

import (
    "time"

    "go.uber.org/zap"

    "ttdialogue/pkg/dialogue"
    "ttdialogue/pkg/packet"
)

// FrameDialogue is a dialogue carrying raw byte payloads in wire frames.
type FrameDialogue = dialogue.Dialogue[*packet.Frame, []byte]

// Options shared by Listen and Dial.
type Options struct {
    Wire    packet.WireCodec
    Metrics *dialogue.Metrics
    Logger  *zap.Logger
    Linger  time.Duration

    BackoffInitial time.Duration
    BackoffMax     time.Duration
    BackoffJitter  time.Duration
    // DialAttempts bounds Dial; zero retries until ctx ends.
    DialAttempts int
}

func (o Options) logger() *zap.Logger {
    if o.Logger != nil { return o.Logger }
    return zap.L()
}

func (o Options) dialogueOptions(name string) []dialogue.Option {
    opts := []dialogue.Option{dialogue.WithLogger(o.logger()), dialogue.WithName(name), dialogue.WithMetrics(o.Metrics)}
    if o.Linger > 0 { opts = append(opts, dialogue.WithLinger(o.Linger)) }
    return opts
}
