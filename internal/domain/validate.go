// Package domain holds the pure syntax and policy checks for custom domain
// names, workspace slugs and workspace display names. Nothing in this package
// performs I/O, so the same checks run as a client-side pre-check and as the
// authoritative check at the server boundary.
package domain

import (
	"net"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

const (
	MaxNameLength          = 253
	MaxLabelLength         = 63
	MaxSlugLength          = 16
	MaxWorkspaceNameLength = 16
)

// Field names used in ValidationError. They match the JSON request fields so
// the HTTP layer can report them verbatim.
const (
	FieldDomainName = "domainName"
	FieldSlug       = "slug"
	FieldName       = "name"
)

// reservedTLDs are special-use names (RFC 2606, RFC 6761) that never resolve
// publicly and therefore can never be verified.
var reservedTLDs = map[string]bool{
	"localhost": true,
	"local":     true,
	"internal":  true,
	"invalid":   true,
	"test":      true,
	"example":   true,
	"onion":     true,
	"arpa":      true,
}

// reservedSlugs would produce platform-looking hostnames such as www.<apex>.
var reservedSlugs = map[string]bool{
	"www":    true,
	"api":    true,
	"app":    true,
	"admin":  true,
	"mail":   true,
	"static": true,
	"status": true,
	"docs":   true,
	"cname":  true,
}

// ValidationError reports a malformed or disallowed candidate value.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

// Normalize lowercases name, trims surrounding whitespace and strips a single
// trailing dot. It does not validate.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".")
}

// Validate checks that candidate is a fully-qualified domain name that a
// tenant may claim and returns its normalized (lowercase, ASCII) form.
//
// apex is the platform's own host. The candidate is rejected when it equals
// apex or is a subdomain of it. An empty apex disables that check.
func Validate(candidate, apex string) (string, error) {
	name := Normalize(candidate)
	if name == "" {
		return "", invalid(FieldDomainName, "domain name is required")
	}

	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", invalid(FieldDomainName, "domain name contains invalid characters")
	}
	name = ascii

	if len(name) > MaxNameLength {
		return "", invalid(FieldDomainName, "domain name must be at most 253 characters")
	}
	if net.ParseIP(name) != nil {
		return "", invalid(FieldDomainName, "IP addresses cannot be used as a domain")
	}

	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return "", invalid(FieldDomainName, "domain name must be fully qualified, e.g. example.com")
	}
	for _, label := range labels {
		if msg := checkLabel(label); msg != "" {
			return "", invalid(FieldDomainName, msg)
		}
	}

	tld := labels[len(labels)-1]
	if !validTLD(tld) {
		return "", invalid(FieldDomainName, "domain name has an invalid top-level domain")
	}
	if reservedTLDs[tld] {
		return "", invalid(FieldDomainName, "reserved top-level domains cannot be claimed")
	}
	if suffix, _ := publicsuffix.PublicSuffix(name); suffix == name {
		return "", invalid(FieldDomainName, "public suffixes cannot be claimed")
	}

	if apex = Normalize(stripPort(apex)); apex != "" {
		if name == apex || strings.HasSuffix(name, "."+apex) {
			return "", invalid(FieldDomainName, "domains under the platform host cannot be claimed")
		}
	}

	return name, nil
}

// checkLabel returns a non-empty message when label is not a valid DNS label.
func checkLabel(label string) string {
	switch {
	case label == "":
		return "domain name contains an empty label"
	case len(label) > MaxLabelLength:
		return "each domain label must be at most 63 characters"
	case label[0] == '-' || label[len(label)-1] == '-':
		return "domain labels cannot start or end with a hyphen"
	}
	for i := 0; i < len(label); i++ {
		if !isLDH(label[i]) {
			return "domain name contains invalid characters"
		}
	}
	return ""
}

func validTLD(tld string) bool {
	if strings.HasPrefix(tld, "xn--") {
		return len(tld) > 4
	}
	if len(tld) < 2 {
		return false
	}
	for i := 0; i < len(tld); i++ {
		if tld[i] < 'a' || tld[i] > 'z' {
			return false
		}
	}
	return true
}

func isLDH(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '-'
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// ValidateSlug checks a workspace slug: 1-16 characters of lowercase letters,
// digits and single hyphens, not starting or ending with a hyphen.
func ValidateSlug(slug string) (string, error) {
	slug = strings.TrimSpace(slug)
	switch {
	case slug == "":
		return "", invalid(FieldSlug, "slug is required")
	case len(slug) > MaxSlugLength:
		return "", invalid(FieldSlug, "slug must be at most 16 characters")
	case slug[0] == '-' || slug[len(slug)-1] == '-' || strings.Contains(slug, "--"):
		return "", invalid(FieldSlug, "slug cannot start or end with a hyphen or contain consecutive hyphens")
	}
	for i := 0; i < len(slug); i++ {
		if !isLDH(slug[i]) {
			return "", invalid(FieldSlug, "slug may only contain lowercase letters, digits and hyphens")
		}
	}
	if reservedSlugs[slug] {
		return "", invalid(FieldSlug, "slug is reserved")
	}
	return slug, nil
}

// ValidateWorkspaceName checks a display name: 1-16 characters after trimming.
func ValidateWorkspaceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := len([]rune(name))
	switch {
	case n == 0:
		return "", invalid(FieldName, "name is required")
	case n > MaxWorkspaceNameLength:
		return "", invalid(FieldName, "name must be at most 16 characters")
	}
	return name, nil
}
