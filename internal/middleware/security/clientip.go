package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPExtractor resolves the client address of a request, trusting forwarding
// headers only when the direct peer is a known proxy.
type IPExtractor struct {
	trustedProxies []*net.IPNet
}

// NewIPExtractor trusts loopback and private networks plus any extra CIDRs.
func NewIPExtractor(extra ...string) (*IPExtractor, error) {
	cidrs := append([]string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"}, extra...)
	e := &IPExtractor{}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy CIDR %s: %w", cidr, err)
		}
		e.trustedProxies = append(e.trustedProxies, network)
	}
	return e, nil
}

// ClientIP returns the caller's IP address.
func (e *IPExtractor) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !e.trusted(parsed) {
		return directIP
	}

	// X-Forwarded-For can contain multiple IPs; the first is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (e *IPExtractor) trusted(ip net.IP) bool {
	for _, network := range e.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
