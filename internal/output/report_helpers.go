package output

import (
	"fmt"
	"strings"

	"trendscout/internal/records"
)

func writeStatsTable(b *strings.Builder, st *records.RunStats, received int) {
	if st == nil {
		fmt.Fprintf(b, "Run did not finish; %d records received.\n", received)
		return
	}
	rows := []struct {
		label string
		value int
	}{
		{"Trending input", st.Input},
		{"Matched language filter", st.Filtered},
		{"Analyzed", st.Analyzed},
		{"Summarized", st.Summarized},
		{"Partial enrichment", st.Degraded},
		{"Rate limited", st.RateLimited},
		{"Failed batches", st.FailedBatches},
	}
	b.WriteString("| Metric | Count |\n")
	b.WriteString("| --- | ---: |\n")
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %d |\n", r.label, r.value)
	}
	if omitted := st.Omitted(); omitted > 0 {
		fmt.Fprintf(b, "\n%d filtered records are missing from this report because their batch failed.\n", omitted)
	}
}

func exitCodeMeaning(code int) string {
	switch code {
	case 0:
		return "clean run"
	case 2:
		return "partial: some batches failed"
	case 3:
		return "fatal: run did not complete"
	default:
		return "unknown"
	}
}

// enrichmentNote describes missing enrichment parts, or "" when complete.
func enrichmentNote(e records.EnrichedRecord) string {
	var parts []string
	for _, p := range []struct {
		name   string
		status records.EnrichStatus
	}{
		{"README", e.ReadmeStatus},
		{"metadata", e.MetadataStatus},
	} {
		switch p.status {
		case records.EnrichFailed:
			parts = append(parts, p.name+" unavailable")
		case records.EnrichRateLimited:
			parts = append(parts, p.name+" skipped (rate limited)")
		case records.EnrichNotFound:
			parts = append(parts, "no "+p.name)
		}
	}
	return strings.Join(parts, "; ")
}

// formatRepoList renders up to max names followed by "+N more".
func formatRepoList(recs []records.ScoredRecord, max int) string {
	names := make([]string, 0, min(len(recs), max))
	for i, r := range recs {
		if i == max {
			break
		}
		names = append(names, r.FullName())
	}
	out := strings.Join(names, ", ")
	if extra := len(recs) - len(names); extra > 0 {
		out += fmt.Sprintf(", +%d more", extra)
	}
	return out
}

var markdownEscaper = strings.NewReplacer(
	"\r", " ",
	"\n", " ",
	"<", "&lt;",
	">", "&gt;",
	"|", "\\|",
)

func escapeMarkdown(s string) string {
	return strings.TrimSpace(markdownEscaper.Replace(s))
}
