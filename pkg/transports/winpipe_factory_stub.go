//go:build !windows

package transports

import (
    "fmt"

    "ttdialogue/pkg/transport"
)

func newWinPipeTransport(int) (transport.Transport, error) {
    return nil, fmt.Errorf("winpipe transport is not supported on this platform")
}
