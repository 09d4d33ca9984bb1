package paycom

import (
	"crypto/subtle"
	"encoding/base64"
	"net"
	"strings"
)

// DefaultAllowedIPs are the provider's published egress addresses. A
// deployment can override the list through configuration.
var DefaultAllowedIPs = []string{
	"185.234.113.1",
	"185.234.113.2",
	"185.234.113.3",
	"185.234.113.7",
	"185.234.113.9",
	"185.234.113.14",
	"185.234.113.15",
	"195.158.31.134",
}

// AuthConfig is built once at startup and handed to the authenticator;
// nothing here is read from ambient globals so tests can substitute
// fixtures. TestMode disables the source-IP check and must never be set
// in a production deployment.
type AuthConfig struct {
	Login      string
	Key        string
	AllowedIPs []string
	TestMode   bool
}

// Authenticator validates the Basic credentials and source IP of a
// merchant API call.
type Authenticator struct {
	cfg     AuthConfig
	allowed map[string]struct{}
}

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.Login == "" {
		cfg.Login = "Paycom"
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedIPs))
	for _, ip := range cfg.AllowedIPs {
		allowed[NormalizeIP(ip)] = struct{}{}
	}
	return &Authenticator{cfg: cfg, allowed: allowed}
}

// Allow checks the raw Authorization header and the resolved client IP.
// It never fails hard: any malformed input is a deny. The returned
// reason is for the caller's log only; the wire error is always
// ErrInsufficientPrivilege regardless of which check failed.
func (a *Authenticator) Allow(authorization, clientIP string) (bool, string) {
	if !a.checkCredentials(authorization) {
		return false, "bad credentials"
	}
	if a.cfg.TestMode {
		return true, ""
	}
	ip := NormalizeIP(clientIP)
	if ip == "" {
		return false, "client ip missing"
	}
	if _, ok := a.allowed[ip]; !ok {
		return false, "ip not allowed: " + ip
	}
	return true, ""
}

func (a *Authenticator) checkCredentials(authorization string) bool {
	if a.cfg.Key == "" {
		return false
	}
	const prefix = "Basic "
	if !strings.HasPrefix(authorization, prefix) {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authorization, prefix))
	if err != nil {
		return false
	}
	login, key, ok := strings.Cut(string(raw), ":")
	if !ok {
		return false
	}
	if login != a.cfg.Login {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(a.cfg.Key)) == 1
}

// NormalizeIP strips the IPv6-mapped-IPv4 prefix proxies tend to add.
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	return strings.TrimPrefix(ip, "::ffff:")
}

// ClientIP resolves the caller's address: the first entry of a
// comma-separated X-Forwarded-For chain when present, the transport
// remote address otherwise.
func ClientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
