package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v81/github"

	"trendscout/internal/data"
)

// Failure tags why a fetch produced no value.
type Failure int

const (
	FailureNone Failure = iota
	FailureNotFound
	FailureRateLimited
	FailureOther
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureNotFound:
		return "not_found"
	case FailureRateLimited:
		return "rate_limited"
	default:
		return "other"
	}
}

// Outcome carries either a fetched value or a tagged failure, so callers can
// branch on the failure kind without inspecting HTTP responses.
type Outcome[T any] struct {
	Value   T
	Failure Failure
	Err     error
}

func (o Outcome[T]) OK() bool {
	return o.Failure == FailureNone
}

// Get fetches key and converts the result into an Outcome of type T.
func Get[T any](ctx context.Context, f *Fetcher, owner, name string, key data.DependencyKey) Outcome[T] {
	val, err := f.Fetch(ctx, owner, name, key)
	if err != nil {
		return Outcome[T]{Failure: Classify(err), Err: err}
	}
	v, ok := val.(T)
	if !ok {
		var zero T
		return Outcome[T]{Failure: FailureOther, Err: fmt.Errorf("fetch %s: unexpected type %T", key, val), Value: zero}
	}
	return Outcome[T]{Value: v}
}

// Classify maps a fetch error onto a Failure.
func Classify(err error) Failure {
	if err == nil {
		return FailureNone
	}

	var budget *BudgetError
	var rle *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &budget) || errors.As(err, &rle) || errors.As(err, &abuse) {
		return FailureRateLimited
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch er.Response.StatusCode {
		case http.StatusNotFound:
			return FailureNotFound
		case http.StatusTooManyRequests:
			return FailureRateLimited
		case http.StatusForbidden:
			if er.Response.Header.Get("X-RateLimit-Remaining") == "0" || er.Response.Header.Get("Retry-After") != "" {
				return FailureRateLimited
			}
		}
	}
	return FailureOther
}

// Describe renders err for logs without leaking request URLs unless verbose.
func Describe(err error, verbose bool) string {
	if err == nil {
		return "unknown error"
	}
	if verbose {
		return err.Error()
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) {
		msg := strings.TrimSpace(er.Message)
		if msg == "" {
			msg = "GitHub API request failed"
		}
		if er.Response != nil {
			return fmt.Sprintf("%d %s: %s", er.Response.StatusCode, http.StatusText(er.Response.StatusCode), msg)
		}
		return msg
	}

	if scrubbed := scrubRequestPrefix(strings.TrimSpace(err.Error())); scrubbed != "" {
		return scrubbed
	}
	return err.Error()
}

// scrubRequestPrefix drops the "GET https://api.github.com/...: " prefix that
// go-github puts on its error strings.
func scrubRequestPrefix(s string) string {
	for _, m := range []string{"GET ", "POST ", "PUT ", "PATCH ", "DELETE "} {
		if !strings.HasPrefix(s, m) {
			continue
		}
		rest := s[len(m):]
		if i := strings.Index(rest, ": "); i >= 0 {
			return strings.TrimSpace(rest[i+2:])
		}
		return ""
	}
	return ""
}
