// Package dockey maps a tab URL to a stable logical document key.
//
// Keys group time by content identity rather than by full URL, so cursor
// fragments, query parameters and sub-pages of one document accumulate into
// a single record. Recognized editors and AI chat products yield
// "<tag>_<id>"; everything else falls back to "domain_<hostname>".
package dockey

import (
	"net/url"
	"regexp"
	"strings"
)

// UnknownHost is the hostname used when a URL cannot be parsed or has no host.
const UnknownHost = "unknown"

// DomainTag is the tag used by fallback keys.
const DomainTag = "domain"

// Kind classifies a provider.
type Kind string

const (
	KindEditor Kind = "editor"
	KindChat   Kind = "chat"
	KindDomain Kind = "domain"
)

// Provider recognizes one product's document or conversation URLs.
type Provider struct {
	Tag   string
	Name  string
	Kind  Kind
	hosts []string
	path  *regexp.Regexp
}

// matchHost reports whether host is one of the provider's hosts or a
// subdomain of a host listed with a leading dot.
func (p Provider) matchHost(host string) bool {
	for _, h := range p.hosts {
		if strings.HasPrefix(h, ".") {
			if strings.HasSuffix(host, h) || host == h[1:] {
				return true
			}
			continue
		}
		if host == h {
			return true
		}
	}
	return false
}

// extract returns the id captured by the provider's path pattern.
func (p Provider) extract(path string) (string, bool) {
	m := p.path.FindStringSubmatch(path)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// providers is checked in order; editors come before chat products.
var providers = []Provider{
	{Tag: "gdoc", Name: "Google Docs", Kind: KindEditor, hosts: []string{"docs.google.com"},
		path: regexp.MustCompile(`^/document/(?:u/\d+/)?d/([A-Za-z0-9_-]+)`)},
	{Tag: "gsheet", Name: "Google Sheets", Kind: KindEditor, hosts: []string{"docs.google.com"},
		path: regexp.MustCompile(`^/spreadsheets/(?:u/\d+/)?d/([A-Za-z0-9_-]+)`)},
	{Tag: "gslide", Name: "Google Slides", Kind: KindEditor, hosts: []string{"docs.google.com"},
		path: regexp.MustCompile(`^/presentation/(?:u/\d+/)?d/([A-Za-z0-9_-]+)`)},
	{Tag: "gform", Name: "Google Forms", Kind: KindEditor, hosts: []string{"docs.google.com"},
		path: regexp.MustCompile(`^/forms/(?:u/\d+/)?d/(?:e/)?([A-Za-z0-9_-]+)`)},
	{Tag: "notion", Name: "Notion", Kind: KindEditor, hosts: []string{".notion.so", ".notion.site"},
		path: regexp.MustCompile(`(?:^|[/-])([0-9a-f]{32})(?:$|[/?#])`)},
	{Tag: "overleaf", Name: "Overleaf", Kind: KindEditor, hosts: []string{"www.overleaf.com", "overleaf.com"},
		path: regexp.MustCompile(`^/project/([0-9a-f]+)`)},
	{Tag: "figma", Name: "Figma", Kind: KindEditor, hosts: []string{"www.figma.com", "figma.com"},
		path: regexp.MustCompile(`^/(?:file|design|board)/([A-Za-z0-9]+)`)},

	{Tag: "chatgpt", Name: "ChatGPT", Kind: KindChat, hosts: []string{"chatgpt.com", "chat.openai.com"},
		path: regexp.MustCompile(`^(?:/g/[^/]+)?/c/([A-Za-z0-9-]+)`)},
	{Tag: "claude", Name: "Claude", Kind: KindChat, hosts: []string{"claude.ai"},
		path: regexp.MustCompile(`^/chat/([A-Za-z0-9-]+)`)},
	{Tag: "gemini", Name: "Gemini", Kind: KindChat, hosts: []string{"gemini.google.com"},
		path: regexp.MustCompile(`^(?:/u/\d+)?/app/([A-Za-z0-9]+)`)},
	{Tag: "perplexity", Name: "Perplexity", Kind: KindChat, hosts: []string{"www.perplexity.ai", "perplexity.ai"},
		path: regexp.MustCompile(`^/search/([A-Za-z0-9._-]+)`)},
}

// Providers returns a copy of the recognized provider table.
func Providers() []Provider {
	out := make([]Provider, len(providers))
	copy(out, providers)
	return out
}

// Resolve returns the document key for rawURL. It never fails: anything it
// cannot classify resolves to a domain key.
func Resolve(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return DomainTag + "_" + UnknownHost
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return DomainTag + "_" + UnknownHost
	}

	for _, p := range providers {
		if !p.matchHost(host) {
			continue
		}
		if id, ok := p.extract(u.EscapedPath()); ok {
			return p.Tag + "_" + id
		}
	}

	return DomainTag + "_" + host
}

// Describe splits a document key into its provider and id. Unknown tags are
// reported with KindDomain.
func Describe(docKey string) (Provider, string) {
	tag, id, ok := strings.Cut(docKey, "_")
	if !ok {
		return Provider{Tag: DomainTag, Name: "Website", Kind: KindDomain}, docKey
	}
	for _, p := range providers {
		if p.Tag == tag {
			return p, id
		}
	}
	return Provider{Tag: DomainTag, Name: "Website", Kind: KindDomain}, id
}
