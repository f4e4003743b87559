package main

import (
    "testing"

    "ttdialogue/pkg/config"
)

func TestApplyOverrides(t *testing.T) {
    cfg := config.Default()
    applyOverrides(cfg, ParseFlags([]string{"-role", "client", "-kind", "quic", "-addr", "10.0.0.1:4433"}))
    if cfg.Dialogue.Role != "client" || cfg.Transport.Kind != "quic" { t.Fatalf("overrides not applied: %+v", cfg) }
    if cfg.Transport.Dial != "10.0.0.1:4433" || cfg.Transport.Listen != ":7777" { t.Fatalf("addr applied to wrong side: %+v", cfg.Transport) }

    cfg = config.Default()
    applyOverrides(cfg, ParseFlags([]string{"-addr", ":9000"}))
    if cfg.Transport.Listen != ":9000" { t.Fatalf("server addr not applied: %+v", cfg.Transport) }
}
