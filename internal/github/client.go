package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v81/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const defaultHTTPTimeout = 30 * time.Second

// Client bundles the go-github REST client with the http.Client it was built
// on, so raw requests share auth and logging.
type Client struct {
	Client *github.Client
	HTTP   *http.Client
}

type options struct {
	verbose bool
	log     zerolog.Logger
	timeout time.Duration
}

type Option func(*options)

// WithVerbose logs one debug line per request and response on log.
func WithVerbose(enabled bool, log zerolog.Logger) Option {
	return func(o *options) {
		o.verbose = enabled
		o.log = log
	}
}

// WithTimeout bounds each HTTP exchange.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

type loggingRoundTripper struct {
	base http.RoundTripper
	log  zerolog.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("github api request")
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.log.Debug().Err(err).Dur("elapsed", elapsed).Msg("github api error")
		return resp, err
	}
	t.log.Debug().
		Int("status", resp.StatusCode).
		Str("remaining", resp.Header.Get("X-RateLimit-Remaining")).
		Dur("elapsed", elapsed).
		Msg("github api response")
	return resp, err
}

// NewClient builds an authenticated client. An empty token yields an
// unauthenticated client.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("github client: ctx is nil")
	}

	o := &options{log: zerolog.Nop(), timeout: defaultHTTPTimeout}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	transport := http.DefaultTransport
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, log: o.log}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	hc := &http.Client{Transport: transport, Timeout: o.timeout}

	return &Client{
		Client: github.NewClient(hc),
		HTTP:   hc,
	}, nil
}
