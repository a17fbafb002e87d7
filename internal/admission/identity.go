package admission

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClient is the shared bucket for requests carrying no identifying
// information. Collapsing them into one quota bucket is the accepted
// coarse-grained fallback.
const UnknownClient = "unknown"

// Identify derives a grouping key for the request's origin: the first entry
// of the forwarded-address chain when present, else the transport peer
// address, else UnknownClient. The value is an opaque bucket key and is
// never validated as an address.
func Identify(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		return addr
	}
	return UnknownClient
}
