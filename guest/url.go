package guest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

func isSpecialScheme(scheme string) bool {
	_, ok := defaultPorts[scheme]
	return ok
}

// ParseURL resolves raw against base (which may be empty) and normalizes the
// result the way the URL polyfill expects.
func ParseURL(raw, base string) (*url.URL, error) {
	var u *url.URL
	var err error
	if base != "" {
		b, berr := url.Parse(base)
		if berr != nil || b.Scheme == "" {
			return nil, fmt.Errorf("invalid base URL %q", base)
		}
		u, err = b.Parse(raw)
	} else {
		u, err = url.Parse(raw)
	}
	if err != nil {
		return nil, err
	}
	return normalizeURL(u)
}

func normalizeURL(u *url.URL) (*url.URL, error) {
	if u.Scheme == "" {
		return nil, fmt.Errorf("missing scheme")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if isSpecialScheme(u.Scheme) {
		if u.Host == "" {
			return nil, fmt.Errorf("missing host")
		}
		if u.Path == "" && u.Opaque == "" {
			u.Path = "/"
		}
	}
	host, port := u.Hostname(), u.Port()
	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", port)
		}
		port = strconv.FormatUint(n, 10)
		if defaultPorts[u.Scheme] == port {
			port = ""
		}
	}
	host = strings.ToLower(host)
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}
	u.ForceQuery = false
	return u, nil
}

func urlOrigin(u *url.URL) string {
	if !isSpecialScheme(u.Scheme) {
		return "null"
	}
	return u.Scheme + "://" + u.Host
}

func (r *Runtime) installURL() error {
	return r.vm.Set("___parseUrl", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 || len(call.Arguments) > 2 {
			panic(r.vm.NewTypeError(arityMessage("___parseUrl", 2, len(call.Arguments))))
		}
		raw := call.Argument(0).String()
		base := ""
		if b := call.Argument(1); !goja.IsUndefined(b) && !goja.IsNull(b) {
			base = b.String()
		}
		u, err := ParseURL(raw, base)
		if err != nil {
			panic(r.vm.NewTypeError(fmt.Sprintf("Invalid URL %q: %v", raw, err)))
		}
		return r.urlObject(u)
	})
}

// urlObject renders u as a plain object with immutable-update setters.
func (r *Runtime) urlObject(u *url.URL) goja.Value {
	obj := r.vm.NewObject()
	username, password := "", ""
	if u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
	}
	search := ""
	if u.RawQuery != "" {
		search = "?" + u.RawQuery
	}
	hash := ""
	if u.Fragment != "" {
		hash = "#" + u.EscapedFragment()
	}
	pathname := u.EscapedPath()
	if u.Opaque != "" {
		pathname = u.Opaque
	}

	fields := []struct {
		name, value string
	}{
		{"href", u.String()},
		{"origin", urlOrigin(u)},
		{"protocol", u.Scheme + ":"},
		{"host", u.Host},
		{"hostname", u.Hostname()},
		{"port", u.Port()},
		{"pathname", pathname},
		{"search", search},
		{"hash", hash},
		{"username", username},
		{"password", password},
	}
	for _, f := range fields {
		_ = obj.Set(f.name, f.value)
	}

	setters := map[string]func(u *url.URL, v string) error{
		"setProtocol": setProtocol,
		"setHost":     setHost,
		"setPort":     setPort,
		"setPathname": setPathname,
		"setSearch":   setSearch,
		"setHash":     setHash,
		"setUsername": setUsername,
		"setPassword": setPassword,
	}
	for name, set := range setters {
		_ = obj.Set(name, r.urlSetter(name, set))
	}
	return obj
}

func (r *Runtime) urlSetter(name string, set func(*url.URL, string) error) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		r.checkArity(name, call, 2)
		href := call.Argument(0).String()
		u, err := ParseURL(href, "")
		if err != nil {
			panic(r.vm.NewTypeError(fmt.Sprintf("Invalid URL %q: %v", href, err)))
		}
		if err := set(u, call.Argument(1).String()); err != nil {
			panic(r.vm.NewTypeError(fmt.Sprintf("%s: %v", name, err)))
		}
		next, err := ParseURL(u.String(), "")
		if err != nil {
			panic(r.vm.NewTypeError(fmt.Sprintf("%s: %v", name, err)))
		}
		return r.urlObject(next)
	}
}

func setProtocol(u *url.URL, v string) error {
	scheme := strings.ToLower(strings.TrimSuffix(v, ":"))
	if scheme == "" {
		return fmt.Errorf("empty scheme")
	}
	for i, c := range scheme {
		letter := c >= 'a' && c <= 'z'
		if i == 0 && !letter {
			return fmt.Errorf("invalid scheme %q", v)
		}
		if !letter && !(c >= '0' && c <= '9') && c != '+' && c != '-' && c != '.' {
			return fmt.Errorf("invalid scheme %q", v)
		}
	}
	u.Scheme = scheme
	return nil
}

func setHost(u *url.URL, v string) error {
	if _, err := url.Parse(u.Scheme + "://" + v); err != nil {
		return err
	}
	u.Host = v
	return nil
}

func setPort(u *url.URL, v string) error {
	host := u.Hostname()
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if v == "" {
		u.Host = host
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid port %q", v)
	}
	u.Host = host + ":" + strconv.FormatUint(n, 10)
	return nil
}

func setPathname(u *url.URL, v string) error {
	if u.Opaque != "" {
		u.Opaque = v
		return nil
	}
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	p, err := url.PathUnescape(v)
	if err != nil {
		return err
	}
	u.Path, u.RawPath = p, ""
	return nil
}

func setSearch(u *url.URL, v string) error {
	u.RawQuery = strings.TrimPrefix(v, "?")
	return nil
}

func setHash(u *url.URL, v string) error {
	u.Fragment, u.RawFragment = strings.TrimPrefix(v, "#"), ""
	return nil
}

func setUsername(u *url.URL, v string) error {
	if u.User != nil {
		if p, ok := u.User.Password(); ok {
			u.User = url.UserPassword(v, p)
			return nil
		}
	}
	if v == "" {
		u.User = nil
		return nil
	}
	u.User = url.User(v)
	return nil
}

func setPassword(u *url.URL, v string) error {
	name := ""
	if u.User != nil {
		name = u.User.Username()
	}
	if v == "" {
		if name == "" {
			u.User = nil
		} else {
			u.User = url.User(name)
		}
		return nil
	}
	u.User = url.UserPassword(name, v)
	return nil
}
