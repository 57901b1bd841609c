package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v81/github"

	"trendscout/internal/data"
	gh "trendscout/internal/github"
)

// Fetcher is the rate-limited GitHub fetch client used by enrichment. It owns
// the request budget, collapses duplicate in-flight requests and caches
// successful results for the run.
type Fetcher struct {
	client *gh.Client
	budget *RequestBudget
	group  Group
	cache  *Cache
}

func NewFetcher(client *gh.Client, budget *RequestBudget) *Fetcher {
	if budget == nil {
		budget = NewRequestBudget()
	}
	return &Fetcher{
		client: client,
		budget: budget,
		cache:  NewCache(),
	}
}

func (f *Fetcher) Budget() *RequestBudget {
	return f.budget
}

func (f *Fetcher) Client() *gh.Client {
	return f.client
}

// Fetch resolves key for the repository identified by owner/name.
func (f *Fetcher) Fetch(ctx context.Context, owner, name string, key data.DependencyKey) (any, error) {
	if ctx == nil {
		return nil, errors.New("fetch: nil context")
	}
	if f == nil || f.client == nil || f.client.Client == nil {
		return nil, errors.New("fetch: fetcher not initialized (use NewFetcher)")
	}
	owner, name = strings.TrimSpace(owner), strings.TrimSpace(name)
	if owner == "" || name == "" {
		return nil, errors.New("fetch: repo owner/name is required")
	}

	impl, ok := ResolveDataFetcher(key)
	if !ok {
		return nil, fmt.Errorf("fetch: unsupported dependency key: %s", key)
	}

	flightKey := strings.ToLower(owner+"/"+name) + ":" + string(key)
	if val, ok := f.cache.Get(flightKey); ok {
		return val, nil
	}

	repo := &github.Repository{
		Owner:    &github.User{Login: github.Ptr(owner)},
		Name:     github.Ptr(name),
		FullName: github.Ptr(owner + "/" + name),
	}
	val, err, _ := f.group.Do(flightKey, func() (any, error) {
		v, err := impl.Fetch(ctx, repo, f)
		if err == nil {
			f.cache.Set(flightKey, v)
		}
		return v, err
	})
	return val, err
}

// Do runs one budgeted GitHub call: it acquires a request slot, invokes call
// and feeds the response headers back into the budget.
func (f *Fetcher) Do(ctx context.Context, call func() (*github.Response, error)) error {
	if err := f.budget.Acquire(ctx); err != nil {
		return err
	}
	resp, err := call()
	if resp != nil {
		f.budget.UpdateFromResponse(resp.Response)
	}
	return err
}
