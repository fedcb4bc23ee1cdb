package content

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var urlPattern = regexp.MustCompile(`(?i)(https?://[^\s]+)|(\bt\.me/[^\s]+)|(tg://[^\s]+)`)

const trailingPunctuation = `.,;:!?)]}>"'»“”`

// ExtractURLs returns links in first-found order without duplicates.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	return appendUnique(nil, matches...)
}

func appendUnique(dst []string, urls ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(urls))
	for _, u := range dst {
		seen[u] = struct{}{}
	}
	for _, u := range urls {
		u = strings.TrimRight(strings.TrimSpace(u), trailingPunctuation)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		dst = append(dst, u)
	}
	return dst
}

// CanonicalURL adds a missing scheme, lowercases scheme and host and converts the host to punycode.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	u.Host = host
	return u.String()
}

// URLID is the reputation service identifier of a URL: unpadded base64url of its canonical form.
func URLID(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(CanonicalURL(raw)))
}

func DecodeURLID(id string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return "", fmt.Errorf("decode url id: %w", err)
	}
	return string(raw), nil
}
