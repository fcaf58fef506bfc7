package addrutil

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"qcping/internal/model"
)

// ParsePort parses a decimal TCP port in the range 1-65535.
func ParsePort(value string) (uint16, error) {
	p, err := strconv.ParseUint(strings.TrimSpace(value), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", value)
	}
	if p == 0 {
		return 0, fmt.Errorf("invalid port %q", value)
	}
	return uint16(p), nil
}

// IsLiteralIP reports whether value is an IPv4 or IPv6 address (no host names).
func IsLiteralIP(value string) bool {
	_, err := netip.ParseAddr(strings.Trim(value, "[]"))
	return err == nil
}

// SplitAddr parses "ip:port", "[ipv6]:port" or an unbracketed "ipv6:port".
func SplitAddr(addr string) (model.Address, bool) {
	a := strings.TrimSpace(addr)
	if a == "" {
		return model.Address{}, false
	}

	host, portStr, err := net.SplitHostPort(a)
	if err != nil {
		// Unbracketed IPv6: peel off the last ":port".
		last := strings.LastIndexByte(a, ':')
		if strings.Count(a, ":") <= 1 || last <= 0 || last == len(a)-1 {
			return model.Address{}, false
		}
		host, portStr = a[:last], a[last+1:]
	}

	port, err := ParsePort(portStr)
	if err != nil || host == "" {
		return model.Address{}, false
	}
	return model.Address{IP: host, Port: port}, true
}
