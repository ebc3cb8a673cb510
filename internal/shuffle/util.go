package shuffle

import (
	"fmt"
	"net"
	"strconv"
)

// splitHostPort breaks a "host:port" address into the separate IP and
// port fields the Phase-1 join message carries, so a receiving leader
// can reassemble a dialable address without parsing.
func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("shuffle: bad address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("shuffle: bad port in %q: %w", addr, err)
	}
	return host, port, nil
}
