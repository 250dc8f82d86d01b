// Package hostutil validates the host:port addresses camwall listens on or
// dials.
package hostutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidateAddr checks a "host:port" address. An empty host is accepted when
// allowEmptyHost is set, as for listen addresses like ":8080".
func ValidateAddr(addr string, allowEmptyHost bool) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("bad address '%s': %w", addr, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("bad port in '%s'", addr)
	}
	if host == "" {
		if allowEmptyHost {
			return nil
		}
		return fmt.Errorf("missing host in '%s'", addr)
	}
	return ValidateHost(host)
}

// ValidateHost accepts an IPv4 or IPv6 literal or an RFC 1123 hostname.
func ValidateHost(raw string) error {
	if looksNumeric(raw) || strings.Contains(raw, ":") {
		if net.ParseIP(raw) == nil {
			return fmt.Errorf("bad IP: '%s'", raw)
		}
		return nil
	}
	if !validHostname(raw) {
		return fmt.Errorf("bad hostname: '%s'", raw)
	}
	return nil
}

// looksNumeric catches malformed dotted quads like "10.0.0.300"
func looksNumeric(raw string) bool {
	return strings.Trim(raw, "0123456789.") == "" && strings.Contains(raw, ".")
}

func validHostname(raw string) bool {
	if raw == "" || len(raw) > 253 {
		return false
	}
	for _, label := range strings.Split(raw, ".") {
		if len(label) < 1 || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	return true
}
