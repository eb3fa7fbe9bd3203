// Package dns performs the external lookups behind custom-domain
// verification: a CNAME (or A record) pointing at the platform, or a TXT
// ownership token published under the challenge host.
package dns

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
)

const (
	txtHostPrefix   = "_toolbox-challenge."
	txtRecordPrefix = "toolbox-verification="

	defaultTimeout = 5 * time.Second
)

var fallbackNameservers = []string{"1.1.1.1:53", "8.8.8.8:53"}

var (
	// ErrNoRecord is returned when the queried name exists but carries no
	// record of the requested type.
	ErrNoRecord = errors.New("no matching DNS record")
	// ErrNXDomain is returned when the queried name does not exist.
	ErrNXDomain = errors.New("domain does not exist")
	// ErrNotPointed is returned by Check when lookups succeeded but none of
	// them point at the platform.
	ErrNotPointed = errors.New("domain does not point at the platform")
)

// Target describes what a verified domain must resolve to.
type Target struct {
	Domain string
	// CNAMEs are acceptable CNAME targets, e.g. "acme.toolbox.app".
	CNAMEs []string
	// Addresses are acceptable A/AAAA values for apex domains that cannot
	// carry a CNAME.
	Addresses []string
	// Token is the domain's ownership token; empty disables the TXT check.
	Token string
}

// TXTHost returns the DNS hostname where the ownership TXT record is placed.
func TXTHost(domain string) string {
	return txtHostPrefix + strings.TrimSuffix(domain, ".")
}

// TXTRecord returns the full TXT record value expected for token.
func TXTRecord(token string) string {
	return txtRecordPrefix + token
}

// NewToken produces a cryptographically random URL-safe ownership token.
func NewToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Resolver queries a fixed list of recursive nameservers.
type Resolver struct {
	nameservers []string
	timeout     time.Duration
	client      *mdns.Client
}

// NewResolver creates a Resolver. nameservers are "host:port" pairs; when
// empty the system resolv.conf is used, then public fallbacks. A zero
// timeout defaults to 5 seconds and bounds every Check call as a whole.
func NewResolver(nameservers []string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if len(nameservers) == 0 {
		nameservers = systemNameservers()
	}
	return &Resolver{
		nameservers: nameservers,
		timeout:     timeout,
		client:      &mdns.Client{Net: "udp", Timeout: timeout},
	}
}

func systemNameservers() []string {
	cfg, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return fallbackNameservers
	}
	out := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		out = append(out, net.JoinHostPort(s, cfg.Port))
	}
	return out
}

// Check reports whether t.Domain points at the platform. It returns nil on
// success. The whole check, including every lookup, is bounded by the
// resolver timeout; a timeout is reported like any other failure.
func (r *Resolver) Check(ctx context.Context, t Target) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var failures []string

	cname, err := r.LookupCNAME(ctx, t.Domain)
	switch {
	case err == nil:
		for _, want := range t.CNAMEs {
			if cname == normalize(want) {
				return nil
			}
		}
		failures = append(failures, fmt.Sprintf("CNAME points to %s", cname))
	case errors.Is(err, ErrNXDomain):
		return err
	default:
		failures = append(failures, "CNAME: "+err.Error())
	}

	if len(t.Addresses) > 0 {
		addrs, err := r.LookupA(ctx, t.Domain)
		if err == nil && intersects(addrs, t.Addresses) {
			return nil
		}
		if err != nil {
			failures = append(failures, "A: "+err.Error())
		} else {
			failures = append(failures, fmt.Sprintf("A records %v", addrs))
		}
	}

	if t.Token != "" {
		host := TXTHost(t.Domain)
		txts, err := r.LookupTXT(ctx, host)
		if err == nil {
			want := TXTRecord(t.Token)
			for _, txt := range txts {
				if strings.TrimSpace(txt) == want {
					return nil
				}
			}
			failures = append(failures, "TXT record not found at "+host)
		} else {
			failures = append(failures, "TXT: "+err.Error())
		}
	}

	return fmt.Errorf("%w: %s", ErrNotPointed, strings.Join(failures, "; "))
}

// LookupCNAME returns the first-hop CNAME target of name, lowercased and
// without the trailing dot.
func (r *Resolver) LookupCNAME(ctx context.Context, name string) (string, error) {
	msg, err := r.exchange(ctx, name, mdns.TypeCNAME)
	if err != nil {
		return "", err
	}
	for _, rr := range msg.Answer {
		if c, ok := rr.(*mdns.CNAME); ok {
			return normalize(c.Target), nil
		}
	}
	return "", ErrNoRecord
}

// LookupTXT returns all TXT strings published at name.
func (r *Resolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	msg, err := r.exchange(ctx, name, mdns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rr := range msg.Answer {
		if t, ok := rr.(*mdns.TXT); ok {
			out = append(out, strings.Join(t.Txt, ""))
		}
	}
	if len(out) == 0 {
		return nil, ErrNoRecord
	}
	return out, nil
}

// LookupA returns the IPv4 addresses of name.
func (r *Resolver) LookupA(ctx context.Context, name string) ([]string, error) {
	msg, err := r.exchange(ctx, name, mdns.TypeA)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rr := range msg.Answer {
		if a, ok := rr.(*mdns.A); ok {
			out = append(out, a.A.String())
		}
	}
	if len(out) == 0 {
		return nil, ErrNoRecord
	}
	return out, nil
}

func (r *Resolver) exchange(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error) {
	q := new(mdns.Msg)
	q.SetQuestion(mdns.Fqdn(name), qtype)
	q.RecursionDesired = true

	var lastErr error
	for _, ns := range r.nameservers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("lookup %s: %w", name, err)
		}
		in, _, err := r.client.ExchangeContext(ctx, q, ns)
		if err != nil {
			lastErr = err
			continue
		}
		switch in.Rcode {
		case mdns.RcodeSuccess:
			return in, nil
		case mdns.RcodeNameError:
			return nil, fmt.Errorf("%w: %s", ErrNXDomain, name)
		default:
			lastErr = fmt.Errorf("%s answered %s", ns, mdns.RcodeToString[in.Rcode])
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no nameservers configured")
	}
	return nil, fmt.Errorf("lookup %s: %w", name, lastErr)
}

func normalize(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

func intersects(got, want []string) bool {
	for _, g := range got {
		for _, w := range want {
			if g == w {
				return true
			}
		}
	}
	return false
}
