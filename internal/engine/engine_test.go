package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendscout/internal/config"
	_ "trendscout/internal/fetcher/providers"
	gh "trendscout/internal/github"
	"trendscout/internal/output"
	"trendscout/internal/records"
	"trendscout/internal/summarizer"
)

func init() {
	color.NoColor = true
}

func noSleep(context.Context, time.Duration) error { return nil }

type panickyEnricher struct{ target string }

func (p panickyEnricher) Enrich(_ context.Context, r records.RepositoryRecord) records.EnrichedRecord {
	if r.Name == p.target {
		panic("enricher exploded")
	}
	return records.Unenriched(r)
}

func testEngine(input []records.RepositoryRecord) (*Engine, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	e := NewEngine(nil, zerolog.Nop())
	e.stdout, e.stderr = &stdout, &stderr
	e.sleep = noSleep
	e.loadInput = func(context.Context, *config.Config) ([]records.RepositoryRecord, error) {
		return input, nil
	}
	e.newEnricher = func(*config.Config) Enricher { return stubEnricher{} }
	return e, &stdout, &stderr
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Interests.Keywords = []string{"agent"}
	require.NoError(t, cfg.Validate())
	return cfg
}

func decodeNDJSON(t *testing.T, b []byte) []output.Event {
	t.Helper()
	var events []output.Event
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var ev output.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev), sc.Text())
		events = append(events, ev)
	}
	return events
}

func TestExitCodeForRun(t *testing.T) {
	assert.Equal(t, 0, exitCodeForRun(false, false))
	assert.Equal(t, 2, exitCodeForRun(false, true))
	assert.Equal(t, 3, exitCodeForRun(true, true))
}

func TestEngine_Run_CleanTextOutput(t *testing.T) {
	e, stdout, stderr := testEngine([]records.RepositoryRecord{
		repo("quiet", "Go", "nothing here"),
		repo("agent-kit", "Go", "an agent framework"),
	})
	cfg := testConfig(t)

	code := e.Run(context.Background(), cfg)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Less(t, strings.Index(out, "acme/agent-kit"), strings.Index(out, "acme/quiet"), out)
	assert.Contains(t, stderr.String(), "Found 2 repositories.")
}

func TestEngine_Run_EmitsLifecycleEvents(t *testing.T) {
	e, stdout, _ := testEngine([]records.RepositoryRecord{
		repo("a", "Go", "agent"),
		repo("b", "Rust", "agent"),
	})
	cfg := testConfig(t)
	cfg.Output.NoConsole = true
	cfg.Output.Emit = []string{"ndjson"}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	require.Equal(t, 0, e.Run(context.Background(), cfg))

	events := decodeNDJSON(t, stdout.Bytes())
	require.NotEmpty(t, events)

	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
		assert.Equal(t, events[0].RunID, ev.RunID)
	}
	assert.Equal(t, []string{
		output.EventRunStarted,
		output.EventBatchStarted,
		output.EventRepoScored,
		output.EventRepoScored,
		output.EventRunFinished,
	}, types)
	assert.NotEmpty(t, events[0].RunID)
	assert.Equal(t, 2, events[0].Repos)
	assert.True(t, events[0].Time.Equal(fixed))

	last := events[len(events)-1]
	require.NotNil(t, last.Stats)
	assert.Equal(t, 2, last.Stats.Analyzed)
	assert.Zero(t, last.ExitCode)
}

func TestEngine_Run_FailedBatchIsPartial(t *testing.T) {
	e, _, _ := testEngine([]records.RepositoryRecord{
		repo("a", "Go", "agent"),
		repo("bad", "Go", "agent"),
	})
	e.newEnricher = func(*config.Config) Enricher { return panickyEnricher{target: "bad"} }
	cfg := testConfig(t)
	cfg.Analysis.BatchSize = 1
	cfg.Output.NoConsole = true
	cfg.Output.Report = filepath.Join(t.TempDir(), "report.md")

	assert.Equal(t, 2, e.Run(context.Background(), cfg))

	report, err := os.ReadFile(cfg.Output.Report)
	require.NoError(t, err)
	assert.Contains(t, string(report), "batch 2 (1 records)")
}

func TestEngine_Run_InputErrorIsFatal(t *testing.T) {
	e, stdout, stderr := testEngine(nil)
	e.loadInput = func(context.Context, *config.Config) ([]records.RepositoryRecord, error) {
		return nil, errors.New("trending: fetch: unexpected status 503")
	}

	assert.Equal(t, 3, e.Run(context.Background(), testConfig(t)))
	assert.Contains(t, stderr.String(), "Error loading repositories")
	assert.Empty(t, stdout.String())
}

func TestEngine_Run_SummariesWithoutKeyAreFatal(t *testing.T) {
	e, stdout, stderr := testEngine([]records.RepositoryRecord{repo("a", "Go", "agent")})
	cfg := testConfig(t)
	cfg.Summary.Enabled = true
	loaded := false
	e.loadInput = func(context.Context, *config.Config) ([]records.RepositoryRecord, error) {
		loaded = true
		return nil, nil
	}

	assert.Equal(t, 3, e.Run(context.Background(), cfg))
	assert.Contains(t, stderr.String(), "GEMINI_API_KEY")
	assert.Empty(t, stdout.String())
	assert.False(t, loaded, "repositories should not be fetched when summaries are misconfigured")
}

func TestEngine_Run_DryRunIgnoresSummaryKey(t *testing.T) {
	e, stdout, stderr := testEngine([]records.RepositoryRecord{repo("a", "Go", "agent")})
	cfg := testConfig(t)
	cfg.Summary.Enabled = true
	cfg.Runtime.DryRun = true

	require.Equal(t, 0, e.Run(context.Background(), cfg), stderr.String())
	assert.Contains(t, stdout.String(), "acme/a")
}

func TestEngine_Run_SummariesRespectQuota(t *testing.T) {
	e, _, _ := testEngine([]records.RepositoryRecord{
		repo("a", "Go", "agent"),
		repo("b", "Go", "agent agent"),
		repo("c", "Go", "nothing"),
	})
	e.newGenerator = func(context.Context, *config.Config) (summarizer.Generator, error) {
		return echoGenerator{}, nil
	}
	cfg := testConfig(t)
	cfg.Summary.Enabled = true
	cfg.Summary.Quota = 1
	cfg.Output.NoConsole = true
	cfg.Output.Out = filepath.Join(t.TempDir(), "out.json")
	cfg.Output.OutFormat = "json"

	require.Equal(t, 0, e.Run(context.Background(), cfg))

	b, err := os.ReadFile(cfg.Output.Out)
	require.NoError(t, err)
	var recs []records.ScoredRecord
	require.NoError(t, json.Unmarshal(b, &recs))
	require.Len(t, recs, 3)

	var summarized int
	for _, r := range recs {
		if r.Summary != nil {
			summarized++
			assert.Equal(t, "summary of a", *r.Summary)
		}
	}
	assert.Equal(t, 1, summarized)
}

func TestEngine_Run_DryRun(t *testing.T) {
	e, stdout, _ := testEngine([]records.RepositoryRecord{
		repo("a", "Python", ""),
		repo("b", "Go", ""),
		repo("c", "", ""),
	})
	e.newEnricher = func(*config.Config) Enricher {
		t.Fatal("dry run must not enrich")
		return nil
	}
	cfg := testConfig(t)
	cfg.Runtime.DryRun = true
	cfg.Interests.Languages = []string{"python"}

	assert.Equal(t, 0, e.Run(context.Background(), cfg))
	assert.Equal(t, "Filtered repositories (1 of 3):\nacme/a\tPython\n", stdout.String())
}

func TestEngine_Run_CanceledIsPartial(t *testing.T) {
	e, _, _ := testEngine([]records.RepositoryRecord{repo("a", "Go", ""), repo("b", "Go", "")})
	e.sleep = func(context.Context, time.Duration) error { return context.Canceled }
	cfg := testConfig(t)
	cfg.Analysis.BatchSize = 1
	cfg.Output.NoConsole = true

	assert.Equal(t, 2, e.Run(context.Background(), cfg))
}

func TestEngine_Run_NoConsole(t *testing.T) {
	e, stdout, stderr := testEngine([]records.RepositoryRecord{repo("a", "Go", "agent")})
	cfg := testConfig(t)
	cfg.Output.NoConsole = true

	require.Equal(t, 0, e.Run(context.Background(), cfg))
	assert.Empty(t, strings.TrimSpace(stdout.String()))
	assert.Empty(t, strings.TrimSpace(stderr.String()))
}

func TestEngine_Run_EnrichesThroughGitHub(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/agent-kit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"agent-kit","owner":{"login":"acme"},"topics":["llm","agent"],"open_issues_count":3,"forks_count":7}`))
	})
	mux.HandleFunc("/repos/acme/agent-kit/readme", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<article><h1>Agent kit</h1><p>A toolkit for building a reliable agent with tools, memory and planning, used in production by many teams around the world.</p></article>`))
	})
	mux.HandleFunc("/repos/acme/gone", http.NotFound)
	mux.HandleFunc("/repos/acme/gone/readme", http.NotFound)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := gh.NewClient(context.Background(), "dummy-token")
	require.NoError(t, err)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.Client.BaseURL = base

	input := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"owner": "acme", "name": "agent-kit", "language": "Go", "description": "toolkit"},
		{"owner": "acme", "name": "gone", "language": "Go", "description": "agent"}
	]`), 0o644))

	var stdout, stderr bytes.Buffer
	e := NewEngine(client, zerolog.Nop())
	e.stdout, e.stderr = &stdout, &stderr
	e.sleep = noSleep

	cfg := testConfig(t)
	cfg.Source.Input = input
	cfg.Output.NoConsole = true
	cfg.Output.Out = filepath.Join(t.TempDir(), "out.json")
	cfg.Output.OutFormat = "json"
	require.NoError(t, cfg.Validate())

	require.Equal(t, 0, e.Run(context.Background(), cfg), stderr.String())

	b, err := os.ReadFile(cfg.Output.Out)
	require.NoError(t, err)
	var recs []records.ScoredRecord
	require.NoError(t, json.Unmarshal(b, &recs))
	require.Len(t, recs, 2)

	assert.Equal(t, "gone", recs[0].Name)
	assert.Equal(t, records.EnrichNotFound, recs[0].ReadmeStatus)
	assert.Equal(t, records.EnrichNotFound, recs[0].MetadataStatus)
	assert.Equal(t, 5, recs[0].Score)

	assert.Equal(t, "agent-kit", recs[1].Name)
	assert.Equal(t, records.EnrichOK, recs[1].MetadataStatus)
	require.NotNil(t, recs[1].Metadata)
	assert.Equal(t, []string{"llm", "agent"}, recs[1].Metadata.Topics)
	assert.Equal(t, 7, recs[1].Metadata.Forks)
	// the topic match alone is worth 3; the README may add 1
	assert.GreaterOrEqual(t, recs[1].Score, 3)
}
