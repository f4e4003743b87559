package observability

import (
    "context"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"

    "ttdialogue/pkg/config"
)

func TestParseLevel(t *testing.T) {
    require.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
    require.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
    require.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
    require.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestSetupLoggerWritesFile(t *testing.T) {
    prev := zap.L()
    t.Cleanup(func() { zap.ReplaceGlobals(prev) })

    path := filepath.Join(t.TempDir(), "logs", "node.log")
    logger, err := SetupLogger(config.LogConfig{Level: "info", Format: "json", Outputs: []string{path}}, "testapp")
    require.NoError(t, err)
    logger.Info("hello")
    logger.Debug("hidden")
    _ = logger.Sync()

    b, err := os.ReadFile(path)
    require.NoError(t, err)
    require.Contains(t, string(b), `"app":"testapp"`)
    require.Contains(t, string(b), "hello")
    require.NotContains(t, string(b), "hidden")
}

func TestServeMetrics(t *testing.T) {
    reg := prometheus.NewRegistry()
    c := prometheus.NewCounter(prometheus.CounterOpts{Name: "ttdialogue_test_total", Help: "test"})
    reg.MustRegister(c)
    c.Inc()

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    addr, err := ServeMetrics(ctx, "127.0.0.1:0", reg)
    require.NoError(t, err)

    resp, err := http.Get("http://" + addr.String() + "/metrics")
    require.NoError(t, err)
    defer resp.Body.Close()
    body, err := io.ReadAll(resp.Body)
    require.NoError(t, err)
    require.True(t, strings.Contains(string(body), "ttdialogue_test_total 1"))
}
