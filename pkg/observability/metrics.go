package observability

import (
    "context"
    "errors"
    "net"
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "go.uber.org/zap"
)

// ServeMetrics exposes g on addr under /metrics until ctx is done.
// It returns the bound address once the listener is up.
func ServeMetrics(ctx context.Context, addr string, g prometheus.Gatherer) (net.Addr, error) {
    ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
    if err != nil { return nil, err }

    mux := http.NewServeMux()
    mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
    srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

    go func() {
        if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
            zap.L().Warn("metrics server stopped", zap.Error(err))
        }
    }()
    go func() {
        <-ctx.Done()
        sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
        defer cancel()
        _ = srv.Shutdown(sctx)
    }()
    zap.L().Info("metrics listening", zap.String("addr", ln.Addr().String()))
    return ln.Addr(), nil
}
