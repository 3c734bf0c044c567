package toolbuiltin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xhtml "golang.org/x/net/html"

	"github.com/cexll/grokrelay/pkg/tool"
)

const (
	webSearchDescription = "Searches the web and returns the most relevant pages with titles, URLs and snippets."

	duckDuckGoFormContentType = "application/x-www-form-urlencoded"
	defaultSearchUserAgent    = "Mozilla/5.0 (compatible; grokrelay/1.0; +https://github.com/cexll/grokrelay)"
	defaultSearchRegion       = "us-en"
	defaultSearchMaxResults   = 8
	defaultSearchTimeout      = 15 * time.Second
	maxSearchResponseBytes    = 2 << 20
	minSearchQueryLength      = 2
)

var duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// WebSearchOptions configures a WebSearchTool.
type WebSearchOptions struct {
	MaxResults int
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
}

// SearchResult is a single hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// WebSearchTool queries the DuckDuckGo HTML endpoint.
type WebSearchTool struct {
	name        string
	description string
	client      *http.Client
	maxResults  int
	timeout     time.Duration
	userAgent   string
	// scope restricts every query to these domains regardless of params.
	scope []string
}

// NewWebSearchTool builds the web_search capability.
func NewWebSearchTool(opts *WebSearchOptions) *WebSearchTool {
	var cfg WebSearchOptions
	if opts != nil {
		cfg = *opts
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultSearchMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSearchTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultSearchUserAgent
	}
	return &WebSearchTool{
		name:        tool.NameWebSearch,
		description: webSearchDescription,
		client:      cfg.HTTPClient,
		maxResults:  cfg.MaxResults,
		timeout:     cfg.Timeout,
		userAgent:   cfg.UserAgent,
	}
}

func (w *WebSearchTool) Name() string { return w.name }

func (w *WebSearchTool) Description() string { return w.description }

func (w *WebSearchTool) Schema() *tool.JSONSchema {
	props := map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Search query.",
		},
	}
	if len(w.scope) == 0 {
		props["allowed_domains"] = map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": "Only return results from these domains.",
		}
		props["blocked_domains"] = map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": "Never return results from these domains.",
		}
	}
	return &tool.JSONSchema{Type: "object", Properties: props, Required: []string{"query"}}
}

// Execute runs a search and returns the formatted hit list.
func (w *WebSearchTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.ToolResult, error) {
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	if params == nil {
		return nil, errors.New("params is nil")
	}
	query, err := parseSearchQuery(params)
	if err != nil {
		return nil, err
	}
	allowed, err := parseDomainList(params, "allowed_domains")
	if err != nil {
		return nil, err
	}
	blocked, err := parseDomainList(params, "blocked_domains")
	if err != nil {
		return nil, err
	}
	if len(w.scope) > 0 {
		allowed = w.scope
		query = scopeQuery(query, w.scope)
	}

	reqCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	results, err := w.search(reqCtx, query)
	if err != nil {
		return nil, err
	}
	results = filterByDomain(results, allowed, blocked)
	if len(results) > w.maxResults {
		results = results[:w.maxResults]
	}
	return &tool.ToolResult{
		Success: true,
		Output:  formatSearchOutput(query, results),
		Data: map[string]interface{}{
			"query":   query,
			"results": results,
		},
	}, nil
}

func (w *WebSearchTool) search(ctx context.Context, query string) ([]SearchResult, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("kl", defaultSearchRegion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, duckDuckGoEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", duckDuckGoFormContentType)
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search request: unexpected status %d", resp.StatusCode)
	}
	doc, err := xhtml.Parse(io.LimitReader(resp.Body, maxSearchResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	return deduplicateResults(extractResults(doc)), nil
}

func parseSearchQuery(params map[string]interface{}) (string, error) {
	raw, ok := params["query"]
	if !ok {
		return "", errors.New("query is required")
	}
	query, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("query must be string, got %T", raw)
	}
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minSearchQueryLength {
		return "", fmt.Errorf("query must be at least %d characters", minSearchQueryLength)
	}
	return query, nil
}

func parseDomainList(params map[string]interface{}, key string) ([]string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var values []string
	switch v := raw.(type) {
	case []string:
		values = v
	case []interface{}:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be string", key, i)
			}
			values = append(values, s)
		}
	default:
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
	return normaliseDomains(values), nil
}

func normaliseDomains(domains []string) []string {
	if len(domains) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func scopeQuery(query string, domains []string) string {
	sites := make([]string, len(domains))
	for i, d := range domains {
		sites[i] = "site:" + d
	}
	return query + " (" + strings.Join(sites, " OR ") + ")"
}

func filterByDomain(results []SearchResult, allowed, blocked []string) []SearchResult {
	if len(allowed) == 0 && len(blocked) == 0 {
		return results
	}
	out := results[:0:0]
	for _, res := range results {
		host := extractHost(res.URL)
		if host == "" {
			continue
		}
		if len(allowed) > 0 && !hostMatches(host, allowed) {
			continue
		}
		if hostMatches(host, blocked) {
			continue
		}
		out = append(out, res)
	}
	return out
}

func hostMatches(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func extractHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func extractResults(root *xhtml.Node) []SearchResult {
	var results []SearchResult
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n == nil {
			return
		}
		if n.Type == xhtml.ElementNode && nodeHasClass(n, "result") {
			if res, ok := parseResultNode(n); ok {
				results = append(results, res)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

func parseResultNode(n *xhtml.Node) (SearchResult, bool) {
	var res SearchResult
	if a := findByClass(n, "result__a"); a != nil {
		res.Title = nodeText(a)
		res.URL = cleanResultURL(attr(a, "href"))
	}
	if res.URL == "" {
		if fallback := findByClass(n, "result__url"); fallback != nil {
			text := nodeText(fallback)
			if !strings.Contains(text, "://") {
				text = "https://" + text
			}
			res.URL = cleanResultURL(text)
		}
	}
	if snippet := findByClass(n, "result__snippet"); snippet != nil {
		res.Snippet = nodeText(snippet)
	}
	if res.URL == "" {
		return SearchResult{}, false
	}
	if res.Title == "" {
		res.Title = res.URL
	}
	return res, true
}

func findByClass(n *xhtml.Node, class string) *xhtml.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.ElementNode && nodeHasClass(c, class) {
			return c
		}
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func nodeHasClass(n *xhtml.Node, class string) bool {
	if n == nil || class == "" {
		return false
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, field := range strings.Fields(a.Val) {
			if field == class {
				return true
			}
		}
	}
	return false
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *xhtml.Node) string {
	var b strings.Builder
	collectNodeText(n, &b)
	return collapseWhitespace(b.String())
}

func collectNodeText(n *xhtml.Node, b *strings.Builder) {
	if n == nil {
		return
	}
	switch n.Type {
	case xhtml.TextNode:
		b.WriteString(n.Data)
		return
	case xhtml.ElementNode:
		if n.Data == "br" {
			b.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectNodeText(c, b)
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanResultURL unwraps DuckDuckGo redirect links and encoded URLs, drops
// fragments and rejects anything that is not absolute http(s).
func cleanResultURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	if lower := strings.ToLower(raw); strings.HasPrefix(lower, "http%3a") || strings.HasPrefix(lower, "https%3a") {
		decoded, err := url.QueryUnescape(raw)
		if err != nil {
			return ""
		}
		raw = decoded
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		if target := u.Query().Get("uddg"); target != "" {
			return cleanResultURL(target)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		if q, err := url.PathUnescape(u.RawQuery); err == nil {
			u.RawQuery = q
		}
	}
	return u.String()
}

func deduplicateResults(results []SearchResult) []SearchResult {
	if len(results) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []SearchResult
	for _, res := range results {
		if res.URL == "" {
			continue
		}
		if _, dup := seen[res.URL]; dup {
			continue
		}
		seen[res.URL] = struct{}{}
		out = append(out, res)
	}
	return out
}

func formatSearchOutput(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, res := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, res.Title, res.URL)
		if res.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", res.Snippet)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
