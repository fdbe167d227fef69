package httpserver

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// cidrAllowlist limits the server to callers from configured subnets.
// Useful when the box also sits on a routed network but the share
// should stay LAN-only.
type cidrAllowlist struct {
	nets []*net.IPNet
}

func newCIDRAllowlist(cidrs []string) (*cidrAllowlist, error) {
	a := &cidrAllowlist{}
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(strings.TrimSpace(c))
		if err != nil {
			return nil, fmt.Errorf("allowed subnet %q: %w", c, err)
		}
		a.nets = append(a.nets, n)
	}
	return a, nil
}

func (a *cidrAllowlist) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RemoteAddr is host:port, or a bare IP once RealIP rewrote it.
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(strings.TrimSpace(host))
		if ip == nil {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		for _, n := range a.nets {
			if n.Contains(ip) {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, http.StatusForbidden, "forbidden")
	})
}
