package output

import (
	"time"

	"trendscout/internal/records"
)

func scoredRecord(owner, name string, score int) records.ScoredRecord {
	return records.ScoredRecord{
		EnrichedRecord: records.EnrichedRecord{
			RepositoryRecord: records.RepositoryRecord{
				Owner:       owner,
				Name:        name,
				URL:         "https://github.com/" + owner + "/" + name,
				Language:    "Go",
				Description: "An LLM agent runtime",
				StarsGained: 1234,
				Stars:       45678,
				Forks:       321,
			},
			ReadmeStatus:   records.EnrichOK,
			MetadataStatus: records.EnrichOK,
			Metadata: &records.Metadata{
				Topics:     []string{"llm", "agents"},
				OpenIssues: 12,
				PushedAt:   time.Now().Add(-48 * time.Hour),
			},
		},
		Score:           score,
		MatchedKeywords: []string{"LLM"},
	}
}
