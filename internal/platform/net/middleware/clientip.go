package middleware

import (
	"net"
	"net/http"
	"strings"
)

// TrustedProxies holds parsed proxy networks whose forwarding headers we believe
type TrustedProxies struct {
	nets []*net.IPNet
}

// ParseTrustedProxies parses a comma separated list of CIDRs or bare IPs.
// Invalid entries are skipped
func ParseTrustedProxies(list string) TrustedProxies {
	var tp TrustedProxies
	for _, raw := range strings.Split(list, ",") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			if ip := net.ParseIP(s); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				tp.nets = append(tp.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			}
			continue
		}
		if _, n, err := net.ParseCIDR(s); err == nil {
			tp.nets = append(tp.nets, n)
		}
	}
	return tp
}

// Empty reports whether no trusted proxies are configured
func (tp TrustedProxies) Empty() bool { return len(tp.nets) == 0 }

// Contains reports whether ip falls inside a trusted network
func (tp TrustedProxies) Contains(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range tp.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP resolves the originating client address for rate limiting.
// The peer address is authoritative unless the peer is a trusted proxy, in
// which case we walk X-Forwarded-For right to left and take the first hop
// that is not itself a trusted proxy. Header values from untrusted peers are
// ignored so callers cannot spoof their way past a limiter
func ClientIP(r *http.Request, tp TrustedProxies) string {
	peer := remoteHost(r.RemoteAddr)
	peerIP := net.ParseIP(peer)
	if tp.Empty() || !tp.Contains(peerIP) {
		return peer
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return peer
	}
	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		h := strings.TrimSpace(hops[i])
		ip := net.ParseIP(h)
		if ip == nil {
			continue
		}
		if !tp.Contains(ip) {
			return ip.String()
		}
	}
	return peer
}

func remoteHost(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}
