package fetcher

import (
	"golang.org/x/sync/singleflight"
)

// Group collapses concurrent fetches of the same repository dependency.
// Trending lists occasionally repeat a repository across languages.
type Group struct {
	g singleflight.Group
}

func (g *Group) Do(key string, fn func() (any, error)) (any, error, bool) {
	return g.g.Do(key, fn)
}
