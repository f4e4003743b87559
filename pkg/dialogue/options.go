package dialogue

import (
    "time"

    "go.uber.org/zap"
)

type options struct {
    log     *zap.Logger
    metrics *Metrics
    name    string
    linger  time.Duration
}

// Option configures a Dialogue.
type Option func(*options)

// WithLogger sets the logger; the default is the global zap logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithMetrics attaches prometheus instruments shared between dialogues.
func WithMetrics(m *Metrics) Option { return func(o *options) { o.metrics = m } }

// WithName labels log lines of this dialogue (usually the remote address).
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithLinger bounds how long a server keeps flushing after the client hung up.
func WithLinger(d time.Duration) Option { return func(o *options) { o.linger = d } }

func buildOptions(opts []Option) options {
    o := options{linger: 5 * time.Second}
    for _, fn := range opts { fn(&o) }
    if o.log == nil { o.log = zap.L() }
    o.log = o.log.Named("dialogue")
    if o.name != "" { o.log = o.log.With(zap.String("conn", o.name)) }
    return o
}
