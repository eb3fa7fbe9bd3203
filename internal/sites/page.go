// Package sites renders and caches tenant-facing pages. Pages are built
// from the workspace resolver, cached, served stale while a background
// rebuild runs, and rendered on demand the first time a tenant is seen.
package sites

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/service"
)

// Page is one rendered tenant page.
type Page struct {
	Key         string    `json:"key"`
	Status      int       `json:"status"`
	Title       string    `json:"title"`
	Body        []byte    `json:"body"`
	GeneratedAt time.Time `json:"generated_at"`
}

// siteResolver is the read side of the tenancy service used for rendering.
// *service.Resolver satisfies it.
type siteResolver interface {
	ResolveSite(ctx context.Context, key string) (*model.Workspace, error)
	ListSlugs(ctx context.Context) ([]string, error)
}

var pageTemplate = template.Must(template.New("site").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{- if .NoIndex}}
<meta name="robots" content="noindex">
{{- end}}
</head>
<body>
{{- if .Found}}
<main>
<h1>Welcome to your workspace subdomain!</h1>
<h2>This workspace belongs to <strong>{{.Name}}</strong>.</h2>
<p>Quick links to access:</p>
<ul>
<li><a href="https://{{.Hostname}}" target="_blank" rel="noopener">{{.Hostname}}</a></li>
{{- range .Domains}}
<li><a href="https://{{.}}" target="_blank" rel="noopener">{{.}}</a></li>
{{- end}}
</ul>
</main>
{{- else}}
<main>
<h1>404</h1>
<p>This page could not be found.</p>
</main>
{{- end}}
</body>
</html>
`))

type pageData struct {
	Title    string
	NoIndex  bool
	Found    bool
	Name     string
	Hostname string
	Domains  []string
}

// Builder renders tenant pages.
type Builder struct {
	resolver siteResolver
	apex     string
	policy   *bluemonday.Policy
	now      func() time.Time
}

// NewBuilder creates a Builder for the platform host apex.
func NewBuilder(resolver siteResolver, apex string) *Builder {
	return &Builder{
		resolver: resolver,
		apex:     apex,
		policy:   bluemonday.StrictPolicy(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Build renders the page for a tenant key. An unknown tenant yields a 404
// page, not an error; errors are reserved for store failures.
func (b *Builder) Build(ctx context.Context, key string) (*Page, error) {
	w, err := b.resolver.ResolveSite(ctx, key)
	if err != nil {
		if errors.Is(err, service.ErrWorkspaceNotFound) {
			return b.NotFound(key)
		}
		return nil, fmt.Errorf("resolve site %q: %w", key, err)
	}

	name := b.clean(w.Name)
	data := pageData{
		Title:    name + " | Workspace",
		Found:    true,
		Name:     name,
		Hostname: w.Hostname(b.apex),
	}
	for _, d := range w.VerifiedDomains() {
		data.Domains = append(data.Domains, d.Name)
	}
	return b.render(key, http.StatusOK, data)
}

// NotFound renders the 404 page for key.
func (b *Builder) NotFound(key string) (*Page, error) {
	return b.render(key, http.StatusNotFound, pageData{Title: "Workspace Not Found", NoIndex: true})
}

func (b *Builder) render(key string, status int, data pageData) (*Page, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render site %q: %w", key, err)
	}
	return &Page{
		Key:         key,
		Status:      status,
		Title:       data.Title,
		Body:        buf.Bytes(),
		GeneratedAt: b.now(),
	}, nil
}

// clean strips any markup from tenant-supplied text. The sanitizer escapes
// entities, so they are decoded again before the template escapes once.
func (b *Builder) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(b.policy.Sanitize(s)))
}
