package hostroute_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jmerrifield20/tenantedge/internal/hostroute"
)

const apex = "toolbox.app"

func TestParseApex(t *testing.T) {
	ok := map[string]string{
		"https://toolbox.app":         "toolbox.app",
		"http://localhost:3000":       "localhost",
		"https://Toolbox.App/some/x":  "toolbox.app",
		"https://toolbox.app.":        "toolbox.app",
	}
	for in, want := range ok {
		got, err := hostroute.ParseApex(in)
		if err != nil || got != want {
			t.Errorf("ParseApex(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "toolbox.app", "ftp://toolbox.app", "https://", "::not a url", "https://bad_host"} {
		if got, err := hostroute.ParseApex(in); err == nil {
			t.Errorf("ParseApex(%q) = %q, want error", in, got)
		}
	}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name   string
		host   string
		path   string
		kind   hostroute.Kind
		tenant string
		out    string
	}{
		{"apex dashboard", apex, "/dashboard", hostroute.Default, "", "/dashboard"},
		{"apex with port", apex + ":443", "/", hostroute.Default, "", "/"},
		{"apex mixed case", "TOOLBOX.app", "/", hostroute.Default, "", "/"},
		{"subdomain", "acme." + apex, "/dashboard", hostroute.Tenant, "acme", "/_sites/acme/dashboard"},
		{"subdomain root", "acme." + apex, "/", hostroute.Tenant, "acme", "/_sites/acme/"},
		{"subdomain empty path", "acme." + apex, "", hostroute.Tenant, "acme", "/_sites/acme/"},
		{"deeper subdomain", "acme.com." + apex, "/", hostroute.Tenant, "acme.com." + apex, "/_sites/acme.com.toolbox.app/"},
		{"custom domain", "www.acme.com", "/about", hostroute.Tenant, "www.acme.com", "/_sites/www.acme.com/about"},
		{"custom domain port", "acme.com:8080", "/", hostroute.Tenant, "acme.com", "/_sites/acme.com/"},
		{"asset on apex", apex, "/logo.png", hostroute.PassThrough, "", "/logo.png"},
		{"asset on tenant", "acme." + apex, "/logo.png", hostroute.PassThrough, "", "/logo.png"},
		{"asset on custom", "acme.com", "/css/site.css", hostroute.PassThrough, "", "/css/site.css"},
		{"api on tenant", "acme." + apex, "/api/workspace/acme/domain", hostroute.PassThrough, "", "/api/workspace/acme/domain"},
		{"api root", "acme.com", "/api", hostroute.PassThrough, "", "/api"},
		{"apiary is not api", "acme.com", "/apiary", hostroute.Tenant, "acme.com", "/_sites/acme.com/apiary"},
		{"internal namespace", "acme." + apex, "/_sites/other", hostroute.Reject, "", "/_sites/other"},
		{"internal namespace on apex", apex, "/_sites", hostroute.Reject, "", "/_sites"},
		{"internal namespace dotted", "acme.com", "/x/../_sites/other", hostroute.Reject, "", "/x/../_sites/other"},
		{"missing host", "", "/dashboard", hostroute.PassThrough, "", "/dashboard"},
		{"hostile host", "evil/../../admin", "/", hostroute.PassThrough, "", "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := hostroute.Decide(apex, tc.host, tc.path)
			if d.Kind != tc.kind || d.Tenant != tc.tenant || d.Path != tc.out {
				t.Errorf("Decide(%q, %q) = {%s %q %q}, want {%s %q %q}",
					tc.host, tc.path, d.Kind, d.Tenant, d.Path, tc.kind, tc.tenant, tc.out)
			}
		})
	}
}

func TestDecide_extraPassThrough(t *testing.T) {
	d := hostroute.Decide(apex, "acme."+apex, "/healthz", "/healthz")
	if d.Kind != hostroute.PassThrough {
		t.Errorf("got %s, want passthrough", d.Kind)
	}
}

func TestDecide_noApexPassesThrough(t *testing.T) {
	d := hostroute.Decide("", "acme."+apex, "/_sites/x")
	if d.Kind != hostroute.PassThrough || d.Path != "/_sites/x" {
		t.Errorf("got %+v", d)
	}
}

// ── Router ─────────────────────────────────────────────────────────────────

type seen struct {
	path string
	host string
}

func echo(s *seen) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.path = r.URL.Path
		s.host = r.Host
		w.WriteHeader(http.StatusTeapot)
	})
}

func serve(h http.Handler, host, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Host = host
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_rewritesTenant(t *testing.T) {
	var s seen
	r := hostroute.New("https://toolbox.app", echo(&s), zap.NewNop())

	rec := serve(r, "acme.toolbox.app", "/dashboard?tab=1")
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status: %d", rec.Code)
	}
	if s.path != "/_sites/acme/dashboard" {
		t.Errorf("rewritten path: %q", s.path)
	}
	if s.host != "acme.toolbox.app" {
		t.Errorf("host must be preserved: %q", s.host)
	}
}

func TestRouter_leavesApexAndAssets(t *testing.T) {
	var s seen
	r := hostroute.New("https://toolbox.app", echo(&s), zap.NewNop())

	serve(r, "toolbox.app", "/dashboard")
	if s.path != "/dashboard" {
		t.Errorf("apex path: %q", s.path)
	}
	serve(r, "acme.toolbox.app", "/logo.png")
	if s.path != "/logo.png" {
		t.Errorf("asset path: %q", s.path)
	}
}

func TestRouter_rejectsInternalNamespace(t *testing.T) {
	var s seen
	r := hostroute.New("https://toolbox.app", echo(&s), zap.NewNop())

	rec := serve(r, "acme.toolbox.app", "/_sites/other/")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
	if s.path != "" {
		t.Error("rejected request must not reach the next handler")
	}
}

func TestRouter_failsOpenOnBadConfig(t *testing.T) {
	for _, appURL := range []string{"", "not a url", "ftp://toolbox.app"} {
		core, logs := observer.New(zap.ErrorLevel)
		var s seen
		r := hostroute.New(appURL, echo(&s), zap.New(core))

		rec := serve(r, "acme.toolbox.app", "/dashboard")
		if rec.Code != http.StatusTeapot || s.path != "/dashboard" {
			t.Errorf("app URL %q: request not passed through (status %d, path %q)", appURL, rec.Code, s.path)
		}
		if logs.Len() != 1 {
			t.Errorf("app URL %q: expected one configuration error log, got %d", appURL, logs.Len())
		}
	}
}

func TestRouter_decisionHook(t *testing.T) {
	var kinds []hostroute.Kind
	r := hostroute.New("https://toolbox.app", http.NotFoundHandler(), zap.NewNop(),
		hostroute.WithDecisionHook(func(d hostroute.Decision) { kinds = append(kinds, d.Kind) }),
		hostroute.WithPassThrough("/metrics"),
	)

	serve(r, "toolbox.app", "/")
	serve(r, "acme.toolbox.app", "/")
	serve(r, "acme.toolbox.app", "/metrics")

	want := []hostroute.Kind{hostroute.Default, hostroute.Tenant, hostroute.PassThrough}
	if len(kinds) != len(want) {
		t.Fatalf("hook calls: %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("call %d: got %s, want %s", i, kinds[i], want[i])
		}
	}
}
