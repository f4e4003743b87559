package main

import (
    "context"
    "fmt"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "go.uber.org/zap"

    "ttdialogue/pkg/config"
    "ttdialogue/pkg/dialogue"
    "ttdialogue/pkg/netstack"
    "ttdialogue/pkg/observability"
    "ttdialogue/pkg/packet"
    "ttdialogue/pkg/transport"
    "ttdialogue/pkg/transports"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }
    applyOverrides(cfg, opts)
    role, err := dialogue.ParseRole(cfg.Dialogue.Role)
    if err != nil {
        _, _ = os.Stderr.WriteString("invalid role: " + err.Error() + "\n")
        return 1
    }

    logger, err := observability.SetupLogger(cfg.Log, cfg.AppName)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()
    zap.L().Info("ttdialogue-node started", zap.String("role", cfg.Dialogue.Role), zap.String("kind", cfg.Transport.Kind))
    zap.L().Debug("effective configuration", zap.Any("config", cfg))

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    reg := prometheus.NewRegistry()
    reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    nopts, tr, err := buildStack(cfg, reg)
    if err != nil {
        zap.L().Error("startup failed", zap.Error(err))
        return 1
    }
    if cfg.Metrics.Enable {
        if _, err := observability.ServeMetrics(ctx, cfg.Metrics.Listen, reg); err != nil {
            zap.L().Error("metrics listener failed", zap.Error(err))
            return 1
        }
    }

    if role.IsServer() {
        err = runServer(ctx, cfg, tr, nopts)
    } else {
        err = runClient(ctx, cfg, tr, nopts)
    }
    if err != nil {
        zap.L().Error("node stopped", zap.Error(err))
        return 1
    }
    zap.L().Info("node stopped")
    return 0
}

func applyOverrides(cfg *config.Config, opts Options) {
    if opts.Role != "" { cfg.Dialogue.Role = opts.Role }
    if opts.Kind != "" { cfg.Transport.Kind = opts.Kind }
    if opts.Addr == "" { return }
    if opts.Role == "client" || (opts.Role == "" && cfg.Dialogue.Role == "client") {
        cfg.Transport.Dial = opts.Addr
    } else {
        cfg.Transport.Listen = opts.Addr
    }
}

func buildStack(cfg *config.Config, reg prometheus.Registerer) (netstack.Options, transport.Transport, error) {
    var nopts netstack.Options
    wire, err := packet.WireCodecByName(cfg.Dialogue.Wire)
    if err != nil { return nopts, nil, err }
    kind, err := transport.ParseKind(cfg.Transport.Kind)
    if err != nil { return nopts, nil, err }
    tr, err := transports.New(kind, cfg.Dialogue.MaxFrameBytes)
    if err != nil { return nopts, nil, err }
    nopts = netstack.Options{
        Wire:    wire,
        Metrics: dialogue.NewMetrics(reg),
        Logger:  zap.L(),
        Linger:  cfg.Dialogue.Linger(),
    }
    return nopts, tr, nil
}

func runServer(ctx context.Context, cfg *config.Config, tr transport.Transport, nopts netstack.Options) error {
    srv, err := netstack.Listen(ctx, tr, cfg.Transport.Listen, netstack.Echo(zap.L()), nopts)
    if err != nil { return fmt.Errorf("listen %s: %w", cfg.Transport.Listen, err) }
    zap.L().Info("node is running; press Ctrl+C to exit")
    <-ctx.Done()

    sctx, cancel := context.WithTimeout(context.Background(), cfg.Dialogue.ShutdownTimeout())
    defer cancel()
    return srv.Shutdown(sctx)
}

// runClient pings the server once a second until interrupted.
func runClient(ctx context.Context, cfg *config.Config, tr transport.Transport, nopts netstack.Options) error {
    cli, err := netstack.Dial(ctx, tr, cfg.Transport.Dial, nil, nopts)
    if err != nil { return fmt.Errorf("dial %s: %w", cfg.Transport.Dial, err) }
    d := cli.Dialogue()

    tick := time.NewTicker(time.Second)
    defer tick.Stop()
    for seq := 0; ; seq++ {
        select {
        case <-ctx.Done():
            sctx, cancel := context.WithTimeout(context.Background(), cfg.Dialogue.ShutdownTimeout())
            defer cancel()
            return cli.Shutdown(sctx)
        case <-d.Done():
            return d.Err()
        case <-tick.C:
        }
        start := time.Now()
        resp, err := d.Request([]byte(fmt.Sprintf("ping %d", seq)))
        if err != nil { return err }
        if err := resp.PollComplete(ctx); err != nil { continue }
        data, ok, err := resp.Wait(ctx)
        if err != nil {
            zap.L().Warn("ping failed", zap.Int("seq", seq), zap.Error(err))
            continue
        }
        zap.L().Info("pong", zap.Int("seq", seq), zap.Bool("answered", ok), zap.ByteString("data", data), zap.Duration("rtt", time.Since(start)))
    }
}
