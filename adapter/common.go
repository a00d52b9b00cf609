package adapter

import (
	"regexp"
	"strings"
)

// colonRegex identifies parameter placeholders in the format ":name" (e.g., :id, :user-id).
var colonRegex = regexp.MustCompile(`:([a-zA-Z0-9_-]+)(\.[a-zA-Z0-9_.-]+)?`)

// TranslatePath converts neutral path parameters (:param) into brace-style
// placeholders ({param}) as expected by chi and [http.ServeMux]. A literal
// extension on the parameter name is dropped: the parameter captures it.
func TranslatePath(path string) string {
	return colonRegex.ReplaceAllString(path, "{$1}")
}

// JoinPaths joins a prefix and a path, avoiding duplicate or missing slashes.
func JoinPaths(base, next string) string {
	if next == "" || next == "/" {
		if base == "" {
			return "/"
		}
		return "/" + strings.Trim(base, "/")
	}
	joined := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(next, "/")
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}

// CleanPrefix normalizes a group prefix: leading slash, no trailing slash.
func CleanPrefix(parent, prefix string) string {
	clean := parent + "/" + strings.Trim(prefix, "/")
	clean = strings.ReplaceAll(clean, "//", "/")
	return strings.TrimSuffix(clean, "/")
}

// SplitWildcard cuts a path at its catch-all marker. name is "" for a bare "*".
func SplitWildcard(path string) (before, name string, found bool) {
	before, name, found = strings.Cut(path, "*")
	return before, name, found
}

// StripExtensions turns ":id.json" segments into ":id".
func StripExtensions(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			if dot := strings.Index(seg, "."); dot != -1 {
				segments[i] = seg[:dot]
			}
		}
	}
	return strings.Join(segments, "/")
}

// ParamNames returns the parameter names declared in path, extensions removed.
func ParamNames(path string) []string {
	var names []string
	for _, m := range colonRegex.FindAllStringSubmatch(path, -1) {
		names = append(names, m[1])
	}
	return names
}

// Score orders routes so that static paths are tried before parametric ones
// and those before catch-alls. Engines that match in registration order
// rely on it.
func Score(path string) int {
	if strings.Contains(path, "*") {
		return 3
	}
	if strings.Contains(path, ":") {
		return 2
	}
	return 1
}

// StaticBase returns the longest static prefix of path.
func StaticBase(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") || strings.HasPrefix(p, "*") {
			if i <= 1 {
				return "/"
			}
			return strings.Join(parts[:i], "/")
		}
	}
	return path
}

// Pattern is a compiled route or host pattern. It understands ":name"
// segments, "*name" or "*" tails and the "(.*)" wildcard.
type Pattern struct {
	raw      string
	re       *regexp.Regexp
	keys     []string
	wildcard string
}

// CompilePattern compiles a slash separated route pattern. A trailing slash
// on the request path is tolerated.
func CompilePattern(path string) *Pattern {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return compile(path, '/')
}

// CompileHostPattern compiles a dot separated host pattern such as
// ":account.example.com".
func CompileHostPattern(host string) *Pattern {
	return compile(host, '.')
}

func compile(raw string, sep byte) *Pattern {
	p := &Pattern{raw: raw}
	segment := "([^" + regexp.QuoteMeta(string(sep)) + "]+)"

	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(raw); {
		switch {
		case raw[i] == ':':
			j := i + 1
			for j < len(raw) && isNameChar(raw[j], sep) {
				j++
			}
			name := raw[i+1 : j]
			if sep == '/' {
				name, _, _ = strings.Cut(name, ".")
				// The extension belongs to the captured value.
				for j < len(raw) && raw[j] != '/' {
					j++
				}
			}
			p.keys = append(p.keys, name)
			b.WriteString(segment)
			i = j
		case strings.HasPrefix(raw[i:], "(.*)"):
			p.keys = append(p.keys, "*")
			p.wildcard = "*"
			b.WriteString("(.*)")
			i += len("(.*)")
		case raw[i] == '*':
			j := i + 1
			for j < len(raw) && isNameChar(raw[j], sep) {
				j++
			}
			name := raw[i+1 : j]
			if name == "" {
				name = "*"
			}
			p.keys = append(p.keys, name)
			p.wildcard = name
			b.WriteString("(.*)")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(raw[i : i+1]))
			i++
		}
	}
	if sep == '/' && !strings.HasSuffix(raw, "/") {
		b.WriteString("/?")
	}
	b.WriteString("$")

	p.re = regexp.MustCompile(b.String())
	return p
}

func isNameChar(c, sep byte) bool {
	if c == sep {
		return false
	}
	return c == '_' || c == '-' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// String returns the source of the pattern.
func (p *Pattern) String() string { return p.raw }

// Wildcard returns the catch-all name, or "" when the pattern has none.
func (p *Pattern) Wildcard() string { return p.wildcard }

// Match reports whether s matches and returns the captured parameters.
// Catch-all captures are also exposed under "*".
func (p *Pattern) Match(s string) (map[string]string, bool) {
	m := p.re.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	params := make(map[string]string, len(p.keys)+1)
	for i, key := range p.keys {
		if i+1 < len(m) {
			params[key] = m[i+1]
		}
	}
	if p.wildcard != "" {
		params["*"] = params[p.wildcard]
	}
	return params, true
}
