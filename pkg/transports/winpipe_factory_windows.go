//go:build windows

package transports

import (
    "ttdialogue/pkg/transport"
    "ttdialogue/pkg/transport/winpipe"
)

func newWinPipeTransport(maxFrame int) (transport.Transport, error) { return winpipe.New(maxFrame), nil }
