// Package bing implements the Bing search module.
package bing

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/engine"
	"github.com/JakeFAU/frisbee/internal/extract"
	"github.com/JakeFAU/frisbee/internal/harvest"
)

// Name is the registry name of the module.
const Name = "bing"

// DefaultHost is the search endpoint used when Options.Host is empty.
const DefaultHost = "https://www.bing.com"

const pageSize = 10

// Options configures every module the factory builds.
type Options struct {
	Host        string
	MaxParallel int
}

// Factory returns a constructor producing one fresh Module per job.
func Factory(fetcher harvest.Fetcher, limiter harvest.Limiter, opts Options, logger *zap.Logger) func(harvest.ModuleConfig) (harvest.SearchModule, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	host := strings.TrimRight(opts.Host, "/")
	if host == "" {
		host = DefaultHost
	}
	return func(cfg harvest.ModuleConfig) (harvest.SearchModule, error) {
		if strings.TrimSpace(cfg.Domain) == "" {
			return nil, fmt.Errorf("bing: domain is required")
		}
		if cfg.Limit <= 0 {
			return nil, fmt.Errorf("bing: limit must be > 0")
		}
		return &Module{
			cfg:     cfg,
			host:    host,
			matcher: extract.NewMatcher(cfg.Domain, cfg.Fuzzy),
			bulk: engine.NewBulk(fetcher, limiter, engine.BulkConfig{
				Engine:      Name,
				MaxParallel: opts.MaxParallel,
			}, logger),
			logger: logger.Named(Name).With(zap.String("domain", cfg.Domain)),
		}, nil
	}
}

// Module searches Bing for pages mentioning a domain and extracts addresses from them.
type Module struct {
	cfg     harvest.ModuleConfig
	host    string
	matcher extract.Matcher
	bulk    *engine.Bulk
	logger  *zap.Logger
}

// Search fetches the result pages, follows every hit and extracts matching addresses.
// Partial results are returned alongside harvest.ErrNoTargets.
func (m *Module) Search(ctx context.Context) (harvest.Results, error) {
	collector := extract.NewCollector(m.matcher)
	processed := 0

	serps, err := m.bulk.Fetch(ctx, m.format())
	if err != nil {
		return harvest.Results{Emails: collector.Emails()}, fmt.Errorf("bing: fetch result pages: %w", err)
	}
	for _, page := range serps {
		collector.Add(pageText(page.Body))
		processed++
	}

	hits := m.process(serps)
	m.logger.Debug("result pages parsed", zap.Int("serps", len(serps)), zap.Int("hits", len(hits)))

	details, err := m.bulk.Fetch(ctx, hits)
	if err != nil {
		return harvest.Results{Emails: collector.Emails(), Processed: processed},
			fmt.Errorf("bing: fetch hits: %w", err)
	}
	for _, page := range details {
		collector.Add(pageText(page.Body))
		processed++
	}

	return harvest.Results{Emails: collector.Emails(), Processed: processed}, nil
}

// format builds one result page URL per ten results up to the limit.
func (m *Module) format() []string {
	term := m.cfg.Domain
	if m.cfg.Fuzzy {
		term = extract.Keyword(m.cfg.Domain)
	}
	query := strconv.Quote(term)
	if m.cfg.Modifier != "" {
		query += " " + m.cfg.Modifier
	}
	escaped := url.QueryEscape(query)

	urls := make([]string, 0, (m.cfg.Limit+pageSize-1)/pageSize)
	for first := 0; first < m.cfg.Limit; first += pageSize {
		urls = append(urls, m.host+"/search?q="+escaped+"&first="+strconv.Itoa(first))
	}
	return urls
}

// process extracts the first link of every organic result.
func (m *Module) process(serps []harvest.Page) []string {
	seen := make(map[string]struct{})
	var hits []string
	for _, page := range serps {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			m.logger.Warn("failed to parse result page", zap.String("url", page.URL), zap.Error(err))
			continue
		}
		base, _ := url.Parse(page.URL)
		doc.Find("li.b_algo").Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Find("a[href]").First().Attr("href")
			if !ok {
				return
			}
			link, ok := resolve(base, href)
			if !ok {
				return
			}
			if _, dup := seen[link]; dup {
				return
			}
			seen[link] = struct{}{}
			hits = append(hits, link)
		})
	}
	return hits
}

func resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}
	return ref.String(), true
}

// pageText returns the text nodes and mailto targets of an HTML document joined
// by newlines, or the raw body when it cannot be parsed.
func pageText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return string(body)
	}
	var b strings.Builder
	doc.Find("*").Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			b.WriteString(s.Text())
			b.WriteByte('\n')
		}
	})
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		address, _, _ := strings.Cut(strings.TrimPrefix(href, "mailto:"), "?")
		b.WriteString(address)
		b.WriteByte('\n')
	})
	return b.String()
}
