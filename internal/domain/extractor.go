package domain

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/bl4ck0w1/vaultlynx/pkg/models"
)

// Second-level labels that, under a two-letter country code, form a compound public suffix
// (google.co.uk, login.gov.br). This list is intentionally short and is not a public-suffix list.
var compoundSLDs = map[string]struct{}{
	"co": {}, "com": {}, "org": {}, "gov": {}, "net": {},
	"ac": {}, "edu": {}, "ne": {}, "or": {}, "go": {},
}

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) BaseDomain(raw string) string {
	return ExtractBaseDomain(raw)
}

// ExtractBaseDomain reduces a URI, URL or bare host to its registrable domain.
// Anything that does not resolve to a dotted host or an IP literal yields models.UnknownDomain.
func ExtractBaseDomain(input string) string {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return models.UnknownDomain
	}

	effective := raw
	if scheme, rest, ok := strings.Cut(raw, "://"); !ok {
		effective = "http://" + raw
	} else if !isHTTPScheme(scheme) {
		if !strings.Contains(rest, ".") {
			return models.UnknownDomain
		}
		effective = "http://" + rest
	}

	if host, ok := hostFromURL(effective); ok {
		return reduce(host)
	}
	return fallback(raw)
}

func isHTTPScheme(scheme string) bool {
	return strings.EqualFold(scheme, "http") || strings.EqualFold(scheme, "https")
}

func hostFromURL(s string) (string, bool) {
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	return normalizeHost(u.Hostname())
}

// fallback strips scheme, userinfo, path and port by hand for inputs net/url refuses,
// such as scp-style "ssh://git@host:owner/repo.git".
func fallback(raw string) string {
	if !strings.Contains(raw, ".") {
		return models.UnknownDomain
	}
	token := raw
	if _, rest, ok := strings.Cut(token, "://"); ok {
		token = rest
	}
	if i := strings.IndexAny(token, "/?#"); i >= 0 {
		token = token[:i]
	}
	if i := strings.LastIndex(token, "@"); i >= 0 {
		token = token[i+1:]
	}
	if strings.HasPrefix(token, "[") {
		if end := strings.Index(token, "]"); end > 0 {
			token = token[1:end]
		}
	} else if i := strings.Index(token, ":"); i >= 0 {
		token = token[:i]
	}

	host, ok := normalizeHost(token)
	if !ok {
		return models.UnknownDomain
	}
	return reduce(host)
}

func normalizeHost(host string) (string, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "", false
	}
	if net.ParseIP(host) != nil {
		return host, true
	}
	ascii, err := idna.Punycode.ToASCII(host)
	if err != nil {
		return "", false
	}
	if !isDottedHost(ascii) {
		return "", false
	}
	return ascii, true
}

func isDottedHost(host string) bool {
	if !strings.Contains(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			switch {
			case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
			default:
				return false
			}
		}
	}
	return true
}

func reduce(host string) string {
	host = strings.TrimPrefix(host, "www.")
	if net.ParseIP(host) != nil {
		return host
	}
	labels := strings.Split(host, ".")
	n := len(labels)
	if n <= 2 {
		return host
	}
	if _, ok := compoundSLDs[labels[n-2]]; ok && len(labels[n-1]) == 2 {
		return strings.Join(labels[n-3:], ".")
	}
	return strings.Join(labels[n-2:], ".")
}
