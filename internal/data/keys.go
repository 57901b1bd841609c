package data

// DependencyKey identifies one piece of GitHub data fetched for a repository.
type DependencyKey string

const (
	// DepRepoMetadata is the repository object (topics, counters, push time).
	DepRepoMetadata DependencyKey = "repo.metadata"

	// DepRepoReadme is the README of the default branch rendered by GitHub
	// and reduced to plain text.
	DepRepoReadme DependencyKey = "repo.readme"
)
