package target

import (
	"fmt"

	"github.com/agentic-research/grist/internal/trace"
)

func init() {
	Register(Entry{
		Name: "url",
		Doc:  "scheme://userinfo@host:port/path?query#fragment",
		Func: parseURL,
	})
}

// parseURL decomposes an URL-shaped sample, reporting every named
// component it binds. The authority and userinfo run through nested
// helpers so the stack-aware policies see real call structure.
func parseURL(input trace.Str, rec trace.Recorder) error {
	rec.Record("url", input)

	scheme, rest, ok := input.Cut("://")
	if !ok {
		return fmt.Errorf("url: missing \"://\" in %q", input.String())
	}
	if !validScheme(scheme.String()) {
		return fmt.Errorf("url: bad scheme %q", scheme.String())
	}
	rec.Record("scheme", scheme)

	body, fragment, hasFragment := rest.Cut("#")
	body, query, hasQuery := body.Cut("?")

	authority := body
	var path trace.Str
	hasPath := false
	if i := body.IndexByte('/'); i >= 0 {
		authority = body.Slice(0, i)
		path = body.Slice(i, body.Len())
		hasPath = true
	}

	rec.Record("authority", authority)
	if authority.Len() > 0 {
		parseAuthority(authority, rec)
	}
	if hasPath {
		rec.Record("path", path)
	}
	if hasQuery {
		rec.Record("query", query)
	}
	if hasFragment {
		rec.Record("fragment", fragment)
	}
	return nil
}

func parseAuthority(authority trace.Str, rec trace.Recorder) {
	rec.Enter("ParseAuthority", authority)
	defer rec.Exit()

	hostport := authority
	if userinfo, rest, ok := authority.Cut("@"); ok {
		rec.Record("userinfo", userinfo)
		parseUserinfo(userinfo, rec)
		hostport = rest
	}

	host, port, ok := hostport.Cut(":")
	rec.Record("host", host)
	if ok {
		rec.Record("port", port)
	}
}

func parseUserinfo(userinfo trace.Str, rec trace.Recorder) {
	rec.Enter("ParseUserinfo", userinfo)
	defer rec.Exit()

	user, pass, ok := userinfo.Cut(":")
	rec.Record("user", user)
	if ok {
		rec.Record("pass", pass)
	}
}

// validScheme accepts RFC 3986 scheme syntax: a letter followed by
// letters, digits, '+', '-' or '.'.
func validScheme(s string) bool {
	if s == "" || !alpha(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !alpha(c) && (c < '0' || c > '9') && c != '+' && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

func alpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
