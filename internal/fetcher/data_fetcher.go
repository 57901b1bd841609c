package fetcher

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/go-github/v81/github"

	"trendscout/internal/data"
)

// DataFetcher retrieves one piece of repository data. Implementations live
// in the providers package and register themselves from init.
type DataFetcher interface {
	Key() data.DependencyKey
	Fetch(ctx context.Context, repo *github.Repository, f *Fetcher) (any, error)
}

type registry struct {
	mu       sync.RWMutex
	fetchers map[data.DependencyKey]DataFetcher
}

var providers = &registry{fetchers: map[data.DependencyKey]DataFetcher{}}

func (r *registry) add(df DataFetcher) {
	if df == nil {
		panic("data fetcher is nil")
	}
	k := df.Key()
	if k == "" {
		panic("data fetcher key is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.fetchers[k]; dup {
		panic(fmt.Sprintf("data fetcher %s already registered", k))
	}
	r.fetchers[k] = df
}

func (r *registry) get(k data.DependencyKey) (DataFetcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	df, ok := r.fetchers[k]
	return df, ok
}

func (r *registry) all() []DataFetcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DataFetcher, 0, len(r.fetchers))
	for _, df := range r.fetchers {
		out = append(out, df)
	}
	slices.SortFunc(out, func(a, b DataFetcher) int { return strings.Compare(string(a.Key()), string(b.Key())) })
	return out
}

// RegisterDataFetcher panics on a nil fetcher, an empty key or a duplicate key.
func RegisterDataFetcher(df DataFetcher) { providers.add(df) }

func ResolveDataFetcher(key data.DependencyKey) (DataFetcher, bool) { return providers.get(key) }

// ListDataFetchers returns registered fetchers sorted by key.
func ListDataFetchers() []DataFetcher { return providers.all() }
