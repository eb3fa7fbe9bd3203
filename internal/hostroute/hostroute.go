// Package hostroute maps an inbound Host header onto the application's route
// tree. Requests for the platform apex are served as-is; requests for any
// other host are rewritten into the internal tenant namespace
// /_sites/<tenant>/<path>, where <tenant> is a subdomain slug or a custom
// hostname. The decision is computed from strings alone; no store is read.
package hostroute

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"
)

// SitesPrefix is the internal tenant namespace. It is never reachable
// directly from the public edge.
const SitesPrefix = "/_sites"

// APIPrefix is always exempt from rewriting.
const APIPrefix = "/api"

// Kind classifies a routing decision.
type Kind int

const (
	// PassThrough leaves the request untouched (assets, API, unusable host).
	PassThrough Kind = iota
	// Default serves the apex route tree unmodified.
	Default
	// Tenant rewrites the path into the tenant namespace.
	Tenant
	// Reject refuses external requests for the internal namespace.
	Reject
)

func (k Kind) String() string {
	switch k {
	case PassThrough:
		return "passthrough"
	case Default:
		return "default"
	case Tenant:
		return "tenant"
	case Reject:
		return "reject"
	}
	return "unknown"
}

// Decision is the outcome of routing one request.
type Decision struct {
	Kind Kind
	// Tenant is the tenant key: the slug for single-label subdomains of the
	// apex, otherwise the full hostname. Set only for Tenant.
	Tenant string
	// Path is the path the request should be served under.
	Path string
}

// ErrInvalidAppURL is returned by ParseApex for a missing or malformed URL.
var ErrInvalidAppURL = errors.New("invalid app URL")

// ParseApex extracts the platform host from the application URL, e.g.
// "https://toolbox.app" yields "toolbox.app". Ports are dropped.
func ParseApex(appURL string) (string, error) {
	if strings.TrimSpace(appURL) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAppURL)
	}
	u, err := url.Parse(appURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAppURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidAppURL)
	}
	host := normalizeHost(u.Host)
	if host == "" || !validHost(host) {
		return "", fmt.Errorf("%w: missing or malformed host", ErrInvalidAppURL)
	}
	return host, nil
}

// Decide computes the routing decision for host and urlPath against apex.
// Paths under any of passThrough (in addition to APIPrefix) are not
// rewritten. An empty apex means the configuration is unusable and every
// request passes through.
func Decide(apex, host, urlPath string, passThrough ...string) Decision {
	if urlPath == "" {
		urlPath = "/"
	}
	keep := Decision{Kind: PassThrough, Path: urlPath}
	if apex == "" {
		return keep
	}

	if underPrefix(urlPath, SitesPrefix) || underPrefix(path.Clean(urlPath), SitesPrefix) {
		return Decision{Kind: Reject, Path: urlPath}
	}
	if strings.Contains(urlPath, ".") || underPrefix(urlPath, APIPrefix) {
		return keep
	}
	for _, p := range passThrough {
		if underPrefix(urlPath, p) {
			return keep
		}
	}

	h := normalizeHost(host)
	if h == "" || !validHost(h) {
		return keep
	}
	if h == apex {
		return Decision{Kind: Default, Path: urlPath}
	}

	// Only a single label under the apex is a slug. Deeper names keep the
	// full host so they can never be mistaken for a custom hostname.
	tenant := h
	if sub, ok := strings.CutSuffix(h, "."+apex); ok && !strings.Contains(sub, ".") {
		tenant = sub
	}
	return Decision{
		Kind:   Tenant,
		Tenant: tenant,
		Path:   SitesPrefix + "/" + tenant + urlPath,
	}
}

// Option configures a Router.
type Option func(*Router)

// WithPassThrough exempts additional path prefixes, e.g. "/healthz".
func WithPassThrough(prefixes ...string) Option {
	return func(r *Router) { r.passThrough = append(r.passThrough, prefixes...) }
}

// WithDecisionHook registers fn to observe every decision.
func WithDecisionHook(fn func(Decision)) Option {
	return func(r *Router) { r.hook = fn }
}

// Router is an http.Handler applying Decide before the wrapped handler.
type Router struct {
	apex        string
	next        http.Handler
	passThrough []string
	hook        func(Decision)
}

// New creates a Router for appURL. A missing or malformed appURL is logged
// and the router then passes every request through unchanged.
func New(appURL string, next http.Handler, logger *zap.Logger, opts ...Option) *Router {
	r := &Router{next: next}
	apex, err := ParseApex(appURL)
	if err != nil {
		logger.Error("hostname routing disabled: app URL is not usable",
			zap.String("app_url", appURL),
			zap.Error(err),
		)
	}
	r.apex = apex
	for _, o := range opts {
		o(r)
	}
	return r
}

// Apex returns the parsed platform host, or "" when routing is disabled.
func (r *Router) Apex() string { return r.apex }

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	d := Decide(r.apex, req.Host, req.URL.Path, r.passThrough...)
	if r.hook != nil {
		r.hook(d)
	}

	switch d.Kind {
	case Reject:
		http.NotFound(w, req)
	case Tenant:
		r.next.ServeHTTP(w, rewrite(req, d.Path))
	default:
		r.next.ServeHTTP(w, req)
	}
}

// rewrite returns a shallow copy of req addressed at p.
func rewrite(req *http.Request, p string) *http.Request {
	r2 := new(http.Request)
	*r2 = *req
	u := *req.URL
	u.Path = p
	u.RawPath = ""
	r2.URL = &u
	return r2
}

func underPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// validHost accepts letters, digits, hyphens and dots only, so a hostile
// Host header cannot inject path segments into the rewritten path.
func validHost(h string) bool {
	if strings.HasPrefix(h, ".") || strings.Contains(h, "..") {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '.') {
			return false
		}
	}
	return true
}
