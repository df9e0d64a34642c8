package node

import (
	"net"
	"strings"
	"time"
)

// NormalizeEndpoint adds the tcp:// scheme and a default port to a bare
// host or host:port. Addresses that already carry a scheme are returned as is.
func NormalizeEndpoint(addr, defPort string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, defPort)
	}
	return "tcp://" + addr
}

// NormalizeHostPort cuts the http:// https:// prefixes from the input address
// and adds a default port.
func NormalizeHostPort(addr, defPort string) string {
	if rest, ok := strings.CutPrefix(addr, "http://"); ok {
		addr = rest
	} else if rest, ok := strings.CutPrefix(addr, "https://"); ok {
		addr = rest
	}

	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}

	return addr + ":" + defPort
}

// parseWait reads the optional ?wait= query value. Bare integers are milliseconds.
func parseWait(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	ms, err := time.ParseDuration(v + "ms")
	if err != nil {
		return 0, err
	}
	return ms, nil
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
