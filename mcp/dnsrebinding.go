package mcp

import (
	"net/http"
	"strings"
)

// HostPolicy implements DNS-rebinding protection: local HTTP transports
// must validate the Host/Origin of inbound requests,
// since a malicious web page can otherwise script a request to
// 127.0.0.1:<port> and reach a locally-bound MCP server through the
// victim's browser.
//
// Grounded on corsMiddleware (daemon/services/api/middleware.go) for the
// "reject before touching the handler" shape, generalized from CORS-header
// emission to an allow/deny decision since this threat model needs
// rejection, not merely advertisement.
type HostPolicy struct {
	mode           hostPolicyMode
	allowedHosts   map[string]struct{}
	allowedOrigins map[string]struct{}
}

type hostPolicyMode int

const (
	hostPolicyNone hostPolicyMode = iota
	hostPolicyAutomatic
	hostPolicyCustom
)

// NoHostPolicy disables Host/Origin validation entirely (only appropriate
// behind a reverse proxy that already enforces it).
func NoHostPolicy() HostPolicy { return HostPolicy{mode: hostPolicyNone} }

// AutomaticHostPolicy allows only the exact bind host (plus its loopback
// aliases) as the Host header, and any Origin or none. This is the default
// posture a local stdio-adjacent HTTP listener should take.
func AutomaticHostPolicy(bindHost string) HostPolicy {
	allowed := map[string]struct{}{bindHost: {}}
	if bindHost == "127.0.0.1" || bindHost == "localhost" || bindHost == "::1" {
		allowed["127.0.0.1"] = struct{}{}
		allowed["localhost"] = struct{}{}
		allowed["[::1]"] = struct{}{}
	}
	return HostPolicy{mode: hostPolicyAutomatic, allowedHosts: allowed}
}

// CustomHostPolicy allows exactly the given Host values and, when non-empty
// Origin header is present, restricts it to allowedOrigins.
func CustomHostPolicy(allowedHosts, allowedOrigins []string) HostPolicy {
	hp := HostPolicy{mode: hostPolicyCustom, allowedHosts: map[string]struct{}{}, allowedOrigins: map[string]struct{}{}}
	for _, h := range allowedHosts {
		hp.allowedHosts[h] = struct{}{}
	}
	for _, o := range allowedOrigins {
		hp.allowedOrigins[o] = struct{}{}
	}
	return hp
}

// Allow reports whether r's Host/Origin headers satisfy this policy.
func (p HostPolicy) Allow(r *http.Request) bool {
	if p.mode == hostPolicyNone {
		return true
	}
	host := stripPort(r.Host)
	if _, ok := p.allowedHosts[host]; !ok {
		return false
	}
	if p.mode == hostPolicyAutomatic {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	_, ok := p.allowedOrigins[origin]
	return ok
}

func stripPort(hostport string) string {
	if i := strings.LastIndex(hostport, ":"); i != -1 && !strings.Contains(hostport[i:], "]") {
		return hostport[:i]
	}
	return hostport
}

// hostPolicyMiddleware wraps next, rejecting disallowed requests with 403
// before they reach routing, and counting rejections in metrics when
// provided. policy is resolved fresh on every request so a caller can
// hot-swap it (see HTTPServerTransport.SetHostPolicy) without rebuilding
// the middleware chain.
func hostPolicyMiddleware(policy func() HostPolicy, metrics *Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !policy().Allow(r) {
			if metrics != nil {
				metrics.dnsRebindingRejected.Inc()
			}
			http.Error(w, "Forbidden: Host/Origin not allowed", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
