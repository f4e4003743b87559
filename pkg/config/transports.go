package config

import (
    "fmt"
    "strings"
)

// TransportConfig describes the link and its endpoints.
// Example YAML:
// transport:
//   kind: quic
//   listen: ":4433"
//   dial: "10.0.0.2:4433"
//
// kind is one of tcp, quic, winpipe (listen: "\\\\.\\pipe\\ttdialogue") or mem.
type TransportConfig struct {
    Kind   string `mapstructure:"kind"`
    Listen string `mapstructure:"listen"`
    Dial   string `mapstructure:"dial"`
}

func (t *TransportConfig) validate() error {
    t.Kind = strings.ToLower(strings.TrimSpace(t.Kind))
    switch t.Kind {
    case "tcp", "quic", "winpipe", "mem":
        return nil
    default:
        return fmt.Errorf("invalid transport.kind: %q", t.Kind)
    }
}
