//go:build !linux

package transport

import (
	"fmt"
	"runtime"
)

// Dial is not supported on platforms without netlink.
func Dial(config *Config) (Socket, error) {
	return nil, fmt.Errorf("netlink sockets are not supported on %s: %w", runtime.GOOS, ErrNotSupported)
}

// DialProtocol is not supported on platforms without netlink.
func DialProtocol(protocol int, config *Config) (Socket, error) {
	return nil, fmt.Errorf("netlink sockets are not supported on %s: %w", runtime.GOOS, ErrNotSupported)
}
