// Package extract pulls email addresses for a target domain out of raw text.
package extract

import (
	"regexp"
	"sort"
	"strings"
)

var emailPattern = regexp.MustCompile(`[\w.+-]+@[\w.-]+`)

// Matcher decides whether an address belongs to the target domain.
type Matcher struct {
	domain  string
	keyword string
	fuzzy   bool
}

// NewMatcher builds a Matcher. In fuzzy mode the keyword is the label before
// the first dot of the domain.
func NewMatcher(domain string, fuzzy bool) Matcher {
	normalized := normalize(domain)
	return Matcher{
		domain:  normalized,
		keyword: Keyword(normalized),
		fuzzy:   fuzzy,
	}
}

// Keyword returns the primary label of a domain.
func Keyword(domain string) string {
	label, _, _ := strings.Cut(normalize(domain), ".")
	return label
}

// Match reports whether the address is accepted for the target.
func (m Matcher) Match(address string) bool {
	_, host, ok := strings.Cut(address, "@")
	if !ok {
		return false
	}
	host = normalize(host)
	if host == "" || m.domain == "" {
		return false
	}
	if m.fuzzy {
		return m.keyword != "" && strings.Contains(host, m.keyword)
	}
	return host == m.domain
}

// Emails returns the sorted, lower-cased, unique addresses in text accepted by m.
func (m Matcher) Emails(text string) []string {
	c := NewCollector(m)
	c.Add(text)
	return c.Emails()
}

// Collector accumulates accepted addresses across many documents.
type Collector struct {
	matcher Matcher
	seen    map[string]struct{}
}

// NewCollector returns an empty Collector for the matcher.
func NewCollector(m Matcher) *Collector {
	return &Collector{matcher: m, seen: make(map[string]struct{})}
}

// Add scans text and records every accepted address.
func (c *Collector) Add(text string) {
	for _, match := range emailPattern.FindAllString(text, -1) {
		email := clean(match)
		if c.matcher.Match(email) {
			c.seen[email] = struct{}{}
		}
	}
}

// Emails returns the collected addresses sorted.
func (c *Collector) Emails() []string {
	out := make([]string, 0, len(c.seen))
	for email := range c.seen {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

func clean(match string) string {
	return strings.TrimRight(strings.ToLower(match), ".-")
}

func normalize(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}
