package main

import "flag"

// Options holds CLI options for the node.
type Options struct {
    ConfigPath string
    Role       string
    Kind       string
    Addr       string
}

// ParseFlags parses CLI flags from args and returns Options. Non-empty
// flags override the loaded configuration.
func ParseFlags(args []string) Options {
    fs := flag.NewFlagSet("ttdialogue-node", flag.ExitOnError)
    var opts Options
    fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    fs.StringVar(&opts.Role, "role", "", "client or server")
    fs.StringVar(&opts.Kind, "kind", "", "transport kind: tcp, quic, winpipe, mem")
    fs.StringVar(&opts.Addr, "addr", "", "listen address (server) or dial address (client)")
    _ = fs.Parse(args)
    return opts
}
