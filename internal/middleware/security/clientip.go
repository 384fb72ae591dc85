package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
}

// Detector resolves client addresses behind trusted proxies and flags
// requests probing for common exploits.
type Detector struct {
	suspicious     atomic.Int64
	trustedProxies []netip.Prefix
}

// NewDetector trusts loopback and private ranges plus the given proxies,
// each an address or CIDR.
func NewDetector(trusted ...string) (*Detector, error) {
	d := &Detector{}
	for _, p := range []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		d.trustedProxies = append(d.trustedProxies, netip.MustParsePrefix(p))
	}
	for _, p := range trusted {
		if err := d.AddTrustedProxy(p); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// MustNewDetector is like NewDetector but panics on an invalid proxy.
func MustNewDetector(trusted ...string) *Detector {
	d, err := NewDetector(trusted...)
	if err != nil {
		panic(fmt.Sprintf("security: %v", err))
	}
	return d
}

// AddTrustedProxy adds a trusted proxy address or network.
func (d *Detector) AddTrustedProxy(p string) error {
	p = strings.TrimSpace(p)
	if prefix, err := netip.ParsePrefix(p); err == nil {
		d.trustedProxies = append(d.trustedProxies, prefix.Masked())
		return nil
	}
	addr, err := netip.ParseAddr(p)
	if err != nil {
		return fmt.Errorf("invalid trusted proxy %q: %w", p, err)
	}
	d.trustedProxies = append(d.trustedProxies, netip.PrefixFrom(addr, addr.BitLen()))
	return nil
}

// ExtractClientIP returns the peer address, or the forwarded client address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(directIP)
	if err != nil {
		return directIP
	}

	if d.isTrustedProxy(addr.Unmap()) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return ip.String()
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			if ip, err := netip.ParseAddr(xri); err == nil {
				return ip.String()
			}
		}
	}
	return directIP
}

func (d *Detector) isTrustedProxy(addr netip.Addr) bool {
	for _, p := range d.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

var suspiciousPatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", ".git", ".ssh",
	"<script", "union select", "etc/passwd", "cmd.exe",
}

// DetectSuspiciousRequest reports path or query probing for well known
// exploits. It never blocks.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(target, pattern) {
			d.suspicious.Add(1)
			return true
		}
	}
	if r.Method == "TRACE" || r.Method == "TRACK" || len(r.URL.String()) > 2048 {
		d.suspicious.Add(1)
		return true
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{SuspiciousRequests: d.suspicious.Load()}
}
