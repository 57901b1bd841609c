package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendscout/internal/data"
	"trendscout/internal/fetcher"
	gh "trendscout/internal/github"
	"trendscout/internal/records"
)

const readmeHTML = `<div id="readme" class="markdown-body"><article>
<h1>Agentic toolkit</h1>
<p>This project is an LLM agent framework that lets you compose tools, memory and planning into reliable assistants for production workloads.</p>
<p>It ships adapters for several model providers, a tracing dashboard, and an evaluation harness so that agent behaviour can be measured before release.</p>
<p><a href="https://example.com/badge"><img src="https://example.com/badge.svg" alt="build"></a></p>
</article></div>`

func newTestFetcher(t *testing.T, handler http.Handler) *fetcher.Fetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := gh.NewClient(context.Background(), "dummy-token")
	require.NoError(t, err)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.Client.BaseURL = base
	return fetcher.NewFetcher(client, fetcher.NewRequestBudget())
}

func TestReadmeFetcher(t *testing.T) {
	var calls int32
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/repos/acme/agent/readme", r.URL.Path)
		assert.Equal(t, readmeHTMLMediaType, r.Header.Get("Accept"))
		w.Header().Set("X-RateLimit-Remaining", "4999")
		_, _ = w.Write([]byte(readmeHTML))
	}))

	out := fetcher.Get[string](context.Background(), f, "acme", "agent", data.DepRepoReadme)
	require.True(t, out.OK(), "err: %v", out.Err)
	assert.Contains(t, out.Value, "LLM agent framework")
	assert.NotContains(t, out.Value, "\n")
	assert.NotContains(t, out.Value, "badge.svg")
	assert.Equal(t, 4999, f.Budget().Remaining())

	// Second call is served from the run cache.
	again := fetcher.Get[string](context.Background(), f, "ACME", "agent", data.DepRepoReadme)
	require.True(t, again.OK())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestReadmeFetcher_NotFound(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))

	out := fetcher.Get[string](context.Background(), f, "acme", "missing", data.DepRepoReadme)
	assert.Equal(t, fetcher.FailureNotFound, out.Failure)
	assert.Empty(t, out.Value)
}

func TestReadmeFetcher_RateLimited(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "4102444800")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	}))

	out := fetcher.Get[string](context.Background(), f, "acme", "agent", data.DepRepoReadme)
	assert.Equal(t, fetcher.FailureRateLimited, out.Failure)
	assert.Equal(t, 0, f.Budget().Remaining())
}

func TestMetadataFetcher(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/agent", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "agent",
			"topics": ["llm", "agents"],
			"open_issues_count": 12,
			"forks_count": 40,
			"subscribers_count": 7,
			"pushed_at": "2025-06-01T10:00:00Z"
		}`))
	}))

	out := fetcher.Get[*records.Metadata](context.Background(), f, "acme", "agent", data.DepRepoMetadata)
	require.True(t, out.OK(), "err: %v", out.Err)
	md := out.Value
	assert.Equal(t, []string{"llm", "agents"}, md.Topics)
	assert.Equal(t, 12, md.OpenIssues)
	assert.Equal(t, 40, md.Forks)
	assert.Equal(t, 7, md.Watchers)
	assert.Equal(t, 2025, md.PushedAt.Year())
}

func TestMetadataFetcher_ServerError(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	out := fetcher.Get[*records.Metadata](context.Background(), f, "acme", "agent", data.DepRepoMetadata)
	assert.Equal(t, fetcher.FailureOther, out.Failure)
	assert.Nil(t, out.Value)
	assert.False(t, strings.Contains(fetcher.Describe(out.Err, false), "http://"))
}

func TestRegisteredFetchers(t *testing.T) {
	var keys []data.DependencyKey
	for _, df := range fetcher.ListDataFetchers() {
		keys = append(keys, df.Key())
	}
	assert.Equal(t, []data.DependencyKey{data.DepRepoMetadata, data.DepRepoReadme}, keys)
}
