package providers

import (
	"context"

	"github.com/google/go-github/v81/github"

	"trendscout/internal/data"
	"trendscout/internal/fetcher"
	"trendscout/internal/records"
)

type repoMetadataFetcher struct{}

func (r *repoMetadataFetcher) Key() data.DependencyKey { return data.DepRepoMetadata }

func (r *repoMetadataFetcher) Fetch(ctx context.Context, repo *github.Repository, f *fetcher.Fetcher) (any, error) {
	var result *github.Repository
	err := f.Do(ctx, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		result, resp, err = f.Client().Client.Repositories.Get(ctx, repo.GetOwner().GetLogin(), repo.GetName())
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	md := &records.Metadata{
		Topics:     append([]string{}, result.Topics...),
		OpenIssues: result.GetOpenIssuesCount(),
		Forks:      result.GetForksCount(),
		Watchers:   result.GetSubscribersCount(),
	}
	if result.PushedAt != nil {
		md.PushedAt = result.PushedAt.Time
	}
	return md, nil
}

func init() {
	fetcher.RegisterDataFetcher(&repoMetadataFetcher{})
}
