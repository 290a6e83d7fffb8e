package guest

import (
	"strings"
	"testing"
)

func TestParseURLBinding(t *testing.T) {
	rt := newTestRuntime(t, nil, nil)
	rt.run(t, `var u = ___parseUrl("https://user:pw@Example.com:8443/a/b?x=1&y=2#frag")`)

	want := map[string]string{
		"href":     "https://user:pw@example.com:8443/a/b?x=1&y=2#frag",
		"origin":   "https://example.com:8443",
		"protocol": "https:",
		"host":     "example.com:8443",
		"hostname": "example.com",
		"port":     "8443",
		"pathname": "/a/b",
		"search":   "?x=1&y=2",
		"hash":     "#frag",
		"username": "user",
		"password": "pw",
	}
	for field, w := range want {
		if got := rt.run(t, "u."+field); got != w {
			t.Errorf("%s = %q, want %q", field, got, w)
		}
	}
}

func TestParseURLBinding_DefaultsAndBase(t *testing.T) {
	rt := newTestRuntime(t, nil, nil)
	tests := []struct {
		expr    string
		want    string
		wantErr bool
	}{
		{expr: `___parseUrl("https://test.test").href`, want: "https://test.test/"},
		{expr: `___parseUrl("https://test.test:443/x").port`, want: ""},
		{expr: `___parseUrl("http://test.test:8080").host`, want: "test.test:8080"},
		{expr: `___parseUrl("../c?q", "https://h.test/a/b/").href`, want: "https://h.test/a/c?q"},
		{expr: `___parseUrl("mailto:a@b.test").origin`, want: "null"},
		{expr: `___parseUrl("/p", undefined)`, wantErr: true},
		{expr: `___parseUrl("/p", "relative/base")`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := rt.vm.RunString(tt.expr)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected a thrown error, got %v", v)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.String() != tt.want {
				t.Errorf("got %q, want %q", v.String(), tt.want)
			}
		})
	}
}

func TestParseURLBinding_Malformed(t *testing.T) {
	rt := newTestRuntime(t, nil, nil)
	for _, raw := range []string{"not a url", "https://", "http://host:99999/", "::"} {
		got := rt.run(t, `(function () {
			try { ___parseUrl(`+jsString(raw)+`); return "none"; }
			catch (e) { return e.name + ":" + e.message; }
		})()`)
		if !strings.HasPrefix(got, "TypeError:Invalid URL") {
			t.Errorf("%q: got %q", raw, got)
		}
	}
}

func TestParseURLBinding_Setters(t *testing.T) {
	rt := newTestRuntime(t, nil, nil)
	rt.run(t, `var base = ___parseUrl("https://example.com/a?x=1#h")`)

	tests := []struct {
		expr string
		want string
	}{
		{`base.setProtocol(base.href, "http").href`, "http://example.com/a?x=1#h"},
		{`base.setHost(base.href, "other.test:81").href`, "https://other.test:81/a?x=1#h"},
		{`base.setPort(base.href, "8080").port`, "8080"},
		{`base.setPort(base.setPort(base.href, "8080").href, "").host`, "example.com"},
		{`base.setPathname(base.href, "b/c").pathname`, "/b/c"},
		{`base.setSearch(base.href, "?y=2").search`, "?y=2"},
		{`base.setSearch(base.href, "").href`, "https://example.com/a#h"},
		{`base.setHash(base.href, "#top").hash`, "#top"},
		{`base.setUsername(base.href, "me").href`, "https://me@example.com/a?x=1#h"},
		{`base.setPassword(base.setUsername(base.href, "me").href, "pw").password`, "pw"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			if got := rt.run(t, tt.expr); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if got := rt.run(t, `base.href`); got != "https://example.com/a?x=1#h" {
		t.Errorf("setters mutated the original object: %q", got)
	}
	got := rt.run(t, `try { base.setPort(base.href, "abc"); "none" } catch (e) { e.name }`)
	if got != "TypeError" {
		t.Errorf("invalid port: %q", got)
	}
}

func TestURLPolyfill(t *testing.T) {
	rt := newPolyfilledRuntime(t, nil)
	got := rt.run(t, `
		var u = new URL("/search?q=a+b&n=1", "https://example.com");
		u.searchParams.append("x", "y z");
		u.pathname = "/find";
		[u.href, u.searchParams.get("q"), URL.canParse("nope")].join("|")
	`)
	want := "https://example.com/find?q=a+b&n=1&x=y+z|a b|false"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func jsString(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}
