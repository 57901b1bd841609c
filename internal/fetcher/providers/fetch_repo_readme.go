package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/google/go-github/v81/github"

	"trendscout/internal/data"
	"trendscout/internal/fetcher"
)

// readmeHTMLMediaType asks GitHub for the README rendered to HTML, which
// drops badges and link targets once reduced to text.
const readmeHTMLMediaType = "application/vnd.github.html+json"

type repoReadmeFetcher struct{}

func (r *repoReadmeFetcher) Key() data.DependencyKey { return data.DepRepoReadme }

func (r *repoReadmeFetcher) Fetch(ctx context.Context, repo *github.Repository, f *fetcher.Fetcher) (any, error) {
	owner, name := repo.GetOwner().GetLogin(), repo.GetName()
	client := f.Client().Client

	req, err := client.NewRequest("GET", fmt.Sprintf("repos/%s/%s/readme", url.PathEscape(owner), url.PathEscape(name)), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", readmeHTMLMediaType)

	var body bytes.Buffer
	err = f.Do(ctx, func() (*github.Response, error) {
		return client.Do(ctx, req, &body)
	})
	if err != nil {
		return nil, err
	}

	return readmeText(body.Bytes(), fmt.Sprintf("https://github.com/%s/%s", owner, name))
}

// readmeText reduces rendered README HTML to readable text.
func readmeText(html []byte, pageURL string) (string, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return "", nil
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("readme: parse page url: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(html), u)
	if err != nil {
		return "", fmt.Errorf("readme: extract text: %w", err)
	}
	return strings.Join(strings.Fields(article.TextContent), " "), nil
}

func init() {
	fetcher.RegisterDataFetcher(&repoReadmeFetcher{})
}
