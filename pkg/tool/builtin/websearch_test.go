package toolbuiltin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	xhtml "golang.org/x/net/html"
)

// hit renders one DuckDuckGo result block.
func hit(href, title, snippet string) string {
	var b strings.Builder
	b.WriteString(`<div class="result results_links">`)
	fmt.Fprintf(&b, `<h2><a class="result__a" href="%s">%s</a></h2>`, href, title)
	if snippet != "" {
		fmt.Fprintf(&b, `<a class="result__snippet">%s</a>`, snippet)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func ddgHTML(results ...string) string {
	return `<html><body><div id="links">` + strings.Join(results, "") + `</div></body></html>`
}

// newTestWebSearchTool points the DuckDuckGo endpoint at handler for the
// duration of the test.
func newTestWebSearchTool(t *testing.T, handler http.HandlerFunc, opts *WebSearchOptions) *WebSearchTool {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	stubDuckDuckGoEndpoint(t, srv.URL)

	cfg := WebSearchOptions{}
	if opts != nil {
		cfg = *opts
	}
	cfg.HTTPClient = srv.Client()
	return NewWebSearchTool(&cfg)
}

func stubDuckDuckGoEndpoint(t *testing.T, endpoint string) {
	t.Helper()
	prev := duckDuckGoEndpoint
	duckDuckGoEndpoint = endpoint
	t.Cleanup(func() { duckDuckGoEndpoint = prev })
}

func resultsOf(t *testing.T, data interface{}) []SearchResult {
	t.Helper()
	m, ok := data.(map[string]interface{})
	require.True(t, ok, "unexpected data %T", data)
	results, ok := m["results"].([]SearchResult)
	require.True(t, ok, "unexpected results %T", m["results"])
	return results
}

func TestWebSearchRequestShape(t *testing.T) {
	type captured struct {
		method, contentType, userAgent string
		form                           url.Values
	}
	seen := make(chan captured, 1)
	ws := newTestWebSearchTool(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		seen <- captured{r.Method, r.Header.Get("Content-Type"), r.Header.Get("User-Agent"), r.PostForm}
		_, _ = w.Write([]byte(ddgHTML(hit("https://go.dev/doc/", "Docs", "The Go docs"))))
	}, nil)

	res, err := ws.Execute(context.Background(), map[string]interface{}{"query": "  golang generics  "})
	require.NoError(t, err)
	require.True(t, res.Success)

	req := <-seen
	require.Equal(t, http.MethodPost, req.method)
	require.True(t, strings.HasPrefix(req.contentType, duckDuckGoFormContentType))
	require.Equal(t, defaultSearchUserAgent, req.userAgent)
	require.Equal(t, "golang generics", req.form.Get("q"))
	require.Equal(t, defaultSearchRegion, req.form.Get("kl"))

	results := resultsOf(t, res.Data)
	require.Equal(t, []SearchResult{{Title: "Docs", URL: "https://go.dev/doc/", Snippet: "The Go docs"}}, results)
	require.Contains(t, res.Output, "1. Docs")
	require.Contains(t, res.Output, "https://go.dev/doc/")
}

func TestWebSearchCustomUserAgent(t *testing.T) {
	agents := make(chan string, 1)
	ws := newTestWebSearchTool(t, func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(ddgHTML()))
	}, &WebSearchOptions{UserAgent: "relay-test/0.1"})

	_, err := ws.Execute(context.Background(), map[string]interface{}{"query": "agents"})
	require.NoError(t, err)
	require.Equal(t, "relay-test/0.1", <-agents)
}

func TestWebSearchDomainFilters(t *testing.T) {
	page := ddgHTML(
		hit("https://blog.golang.org/intro", "Intro", ""),
		hit("https://www.reddit.com/r/golang", "Thread", ""),
		hit("https://pkg.go.dev/net/http", "net/http", ""),
	)
	cases := []struct {
		name   string
		params map[string]interface{}
		want   []string
	}{
		{
			name:   "allow list matches subdomains",
			params: map[string]interface{}{"allowed_domains": []interface{}{"go.dev", "GOLANG.org"}},
			want:   []string{"https://blog.golang.org/intro", "https://pkg.go.dev/net/http"},
		},
		{
			name:   "block list drops www hosts",
			params: map[string]interface{}{"blocked_domains": []string{"reddit.com"}},
			want:   []string{"https://blog.golang.org/intro", "https://pkg.go.dev/net/http"},
		},
		{
			name: "block wins over allow",
			params: map[string]interface{}{
				"allowed_domains": []string{"go.dev", "reddit.com"},
				"blocked_domains": []string{"pkg.go.dev"},
			},
			want: []string{"https://www.reddit.com/r/golang"},
		},
		{
			name:   "no filters",
			params: map[string]interface{}{},
			want:   []string{"https://blog.golang.org/intro", "https://www.reddit.com/r/golang", "https://pkg.go.dev/net/http"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ws := newTestWebSearchTool(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(page))
			}, nil)
			tc.params["query"] = "go http"
			res, err := ws.Execute(context.Background(), tc.params)
			require.NoError(t, err)
			var urls []string
			for _, r := range resultsOf(t, res.Data) {
				urls = append(urls, r.URL)
			}
			require.Equal(t, tc.want, urls)
		})
	}
}

func TestWebSearchCapsResults(t *testing.T) {
	var hits []string
	for i := 0; i < 6; i++ {
		hits = append(hits, hit(fmt.Sprintf("https://site%d.dev/", i), fmt.Sprintf("Site %d", i), ""))
	}
	ws := newTestWebSearchTool(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ddgHTML(hits...)))
	}, &WebSearchOptions{MaxResults: 3})

	res, err := ws.Execute(context.Background(), map[string]interface{}{"query": "sites"})
	require.NoError(t, err)
	results := resultsOf(t, res.Data)
	require.Len(t, results, 3)
	require.Equal(t, "Site 2", results[2].Title)
	require.NotContains(t, res.Output, "Site 3")
}

func TestWebSearchParsesResultVariants(t *testing.T) {
	page := ddgHTML(
		hit("//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&rut=abc", "Redirected", "via ddg"),
		`<div class="result"><a class="result__a">No href</a><span class="result__url"> example.net/page </span></div>`,
		hit("https://go.dev/doc/", "Duplicate", ""),
		hit("javascript:void(0)", "Script", ""),
		hit("https://untitled.dev/x#top", "", "no title"),
	)
	ws := newTestWebSearchTool(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}, nil)

	res, err := ws.Execute(context.Background(), map[string]interface{}{"query": "variants"})
	require.NoError(t, err)
	require.Equal(t, []SearchResult{
		{Title: "Redirected", URL: "https://go.dev/doc/", Snippet: "via ddg"},
		{Title: "No href", URL: "https://example.net/page"},
		{Title: "https://untitled.dev/x", URL: "https://untitled.dev/x", Snippet: "no title"},
	}, resultsOf(t, res.Data))
}

func TestWebSearchEmptyPage(t *testing.T) {
	ws := newTestWebSearchTool(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>No results.</p></body></html>"))
	}, nil)

	res, err := ws.Execute(context.Background(), map[string]interface{}{"query": "zzqx"})
	require.NoError(t, err)
	require.Empty(t, resultsOf(t, res.Data))
	require.Contains(t, res.Output, "No results")
}

func TestWebSearchUpstreamFailures(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		ws := newTestWebSearchTool(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}, nil)
		_, err := ws.Execute(context.Background(), map[string]interface{}{"query": "limits"})
		require.ErrorContains(t, err, "unexpected status 429")
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		ws := newTestWebSearchTool(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}, &WebSearchOptions{Timeout: 30 * time.Millisecond})
		defer close(release)
		_, err := ws.Execute(context.Background(), map[string]interface{}{"query": "slow"})
		require.Error(t, err)
	})

	t.Run("caller cancelled", func(t *testing.T) {
		ws := newTestWebSearchTool(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(ddgHTML()))
		}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ws.Execute(ctx, map[string]interface{}{"query": "cancelled"})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestWebSearchRejectsBadParams(t *testing.T) {
	ws := NewWebSearchTool(nil)
	cases := map[string]map[string]interface{}{
		"nil params":        nil,
		"missing query":     {},
		"query not string":  {"query": 42},
		"query too short":   {"query": " a "},
		"domains not list":  {"query": "news", "allowed_domains": "example.com"},
		"domain not string": {"query": "news", "blocked_domains": []interface{}{"ok.com", 7}},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ws.Execute(context.Background(), params)
			require.Error(t, err)
		})
	}

	_, err := ws.Execute(nil, map[string]interface{}{"query": "ok"})
	require.Error(t, err)
}

func TestWebSearchSchema(t *testing.T) {
	ws := NewWebSearchTool(nil)
	require.Equal(t, "web_search", ws.Name())
	require.NotEmpty(t, ws.Description())

	schema := ws.Schema()
	require.Equal(t, "object", schema.Type)
	require.Equal(t, []string{"query"}, schema.Required)
	require.Contains(t, schema.Properties, "query")
	require.Contains(t, schema.Properties, "allowed_domains")
	require.Contains(t, schema.Properties, "blocked_domains")
}

func TestCleanResultURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"mailto:gopher@go.dev", ""},
		{"https:///missing-host", ""},
		{"%zz", ""},
		{"//go.dev/play", "https://go.dev/play"},
		{"http://go.dev/a?b=c#frag", "http://go.dev/a?b=c"},
		{"https%3A%2F%2Fgo.dev%2Fsearch%3Fq%3Dchan%2Bselect", "https://go.dev/search?q=chan+select"},
		{"https://duckduckgo.com/l/?uddg=https%3A%2F%2Fpkg.go.dev%2Fio&rut=1", "https://pkg.go.dev/io"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, cleanResultURL(tc.in), "input %q", tc.in)
	}
}

func TestDomainHelpers(t *testing.T) {
	require.Nil(t, normaliseDomains(nil))
	require.Equal(t, []string{"go.dev", "x.com"}, normaliseDomains([]string{" WWW.Go.dev", "go.dev", "", "x.com"}))

	require.Equal(t, "go.dev", extractHost("https://www.GO.dev:8443/doc"))
	require.Empty(t, extractHost("::not a url"))

	require.True(t, hostMatches("api.x.com", []string{"x.com"}))
	require.False(t, hostMatches("notx.com", []string{"x.com"}))

	require.Equal(t, "rust (site:x.com OR site:twitter.com)", scopeQuery("rust", []string{"x.com", "twitter.com"}))
}

func TestHTMLHelpers(t *testing.T) {
	doc, err := xhtml.Parse(strings.NewReader(`<div class="a  result	b"><p>Line one<br>line   two</p><span> tail </span></div>`))
	require.NoError(t, err)

	div := findByClass(doc, "result")
	require.NotNil(t, div)
	require.True(t, nodeHasClass(div, "b"))
	require.False(t, nodeHasClass(div, "res"))
	require.False(t, nodeHasClass(div, ""))
	require.False(t, nodeHasClass(nil, "result"))
	require.Nil(t, findByClass(doc, "missing"))

	require.Equal(t, "Line one line two tail", nodeText(div))

	require.Nil(t, deduplicateResults(nil))
	require.Equal(t,
		[]SearchResult{{Title: "a", URL: "https://a.dev"}, {Title: "b", URL: "https://b.dev"}},
		deduplicateResults([]SearchResult{
			{Title: "a", URL: "https://a.dev"},
			{Title: "no url"},
			{Title: "again", URL: "https://a.dev"},
			{Title: "b", URL: "https://b.dev"},
		}))
}
