package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"trendscout/internal/config"
	"trendscout/internal/engine"
	"trendscout/internal/flags"
	gh "trendscout/internal/github"
	"trendscout/internal/logger"
)

// resolveToken is replaced in tests.
var resolveToken = gh.ResolveAuthToken

const analyzeHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
	GITHUB_TOKEN      GitHub access token used for README and metadata requests.
	                  Falls back to GitHub CLI auth (gh auth token) when unset.
	                  No scopes are needed; public repositories only.
	GEMINI_API_KEY    API key for summaries (required with --summaries).
	TRENDSCOUT_*      Any config key, e.g. TRENDSCOUT_INTERESTS_KEYWORDS=agent,llm
	                  or TRENDSCOUT_ANALYSIS_BATCH_SIZE=10.
	TRENDSCOUT_CONFIG Config file path when --config is not given.

	Precedence: defaults < config file < environment < flags.

	Examples:
	  export GITHUB_TOKEN="<your_token>"
	  trendscout analyze --keywords agent

	  # GitHub CLI auth
	  gh auth login
	  trendscout analyze --keywords agent

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Rank the current trending repositories once",
		Long: `Rank the current GitHub trending repositories against your interests.

Repositories are filtered by --languages, enriched in batches with their README
and topics, scored against --keywords and ranked by score. Enrichment failures
degrade a record; they never stop the run.

Scoring:
	Each keyword is counted per field, case-insensitively, as the larger of its
	whole-word matches and its substring matches (never their sum):
	description = 5 per occurrence
	README      = 1 per occurrence
	topics      = 3 per occurrence

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON array or NDJSON stream to a file
	- --emit: write an additional structured stream to stdout (json or ndjson)
	- --report: write a Markdown report of records scoring at least --min-score
	- --no-console: suppress the console sink (use with --emit/--out for machine output)

	NDJSON mode emits one JSON object per line. Objects are lifecycle Events with a
	"type" field (run.started, batch.started, batch.failed, repo.scored, run.finished).

Exit codes:
	0 = clean run
	2 = partial (some batches failed, or the run was interrupted)
	3 = fatal error (analysis did not run)

Examples:
	trendscout analyze --languages python --keywords "LLM Agent,AI" --since weekly

	# Offline: rank a saved list without enrichment side effects
	trendscout analyze --input repos.json --keywords rust --dry-run

	# Summaries for the top matches
	export GEMINI_API_KEY="<your_key>"
	trendscout analyze --keywords agent --summaries --summary-quota 5 --report trending.md

	# AI Agent: stream machine-readable events to stdout
	trendscout analyze --keywords agent --no-console --emit ndjson
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return exitCode(3)
			}
			eng, err := newEngine(ctx, cmd, cfg, newLogger(cmd, cfg))
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return exitCode(3)
			}
			return codeErr(eng.Run(ctx, cfg))
		},
	}
	cmd.SetHelpTemplate(analyzeHelpTemplate)
	addAnalysisFlags(cmd.Flags())
	return cmd
}

// addAnalysisFlags registers the flags shared by analyze and watch. Defaults
// are shown for help only; config.Load applies a flag only when it is set.
func addAnalysisFlags(fs *pflag.FlagSet) {
	d := config.New()

	// Interests
	fs.StringSlice(flags.FlagLanguages, nil, "Keep only these primary languages (repeatable; comma-separated accepted; case-insensitive)")
	fs.StringSlice(flags.FlagKeywords, nil, "Interest keywords used for scoring (repeatable; comma-separated accepted)")
	fs.StringSlice(flags.FlagExclude, nil, "Exclude pattern(s). Go path.Match style; if pattern contains '/', matches OWNER/NAME, else matches name")
	fs.Int(flags.FlagMinScore, d.Interests.MinScore, "Minimum score for the Markdown report")

	// Source
	fs.String(flags.FlagSince, d.Source.Since, "Trending period: daily|weekly|monthly")
	fs.String(flags.FlagLanguage, "", "Language path of the trending page itself (e.g. go)")
	fs.String(flags.FlagInput, "", "Read repositories from a JSON file instead of the trending page")

	// Analysis
	fs.Int(flags.FlagBatchSize, d.Analysis.BatchSize, "Repositories per batch")
	fs.Duration(flags.FlagBatchDelay, d.Analysis.BatchDelay, "Delay between batches")
	fs.Duration(flags.FlagRateLimitBackoff, d.Analysis.RateLimitBackoff, "Delay after a rate-limited batch")
	fs.Int(flags.FlagConcurrency, d.Analysis.Concurrency, "Concurrent enrichments within a batch")
	fs.Int(flags.FlagReadmeMaxChars, d.Analysis.ReadmeMaxChars, "README characters kept for scoring and summaries")

	// Summary
	fs.Bool(flags.FlagSummaries, false, "Generate one-line summaries for matching repositories (needs GEMINI_API_KEY)")
	fs.Int(flags.FlagSummaryQuota, d.Summary.Quota, "Maximum summaries per run")
	fs.String(flags.FlagSummaryModel, d.Summary.Model, "Model used for summaries")

	// Output
	fs.String(flags.FlagConsoleFormat, d.Output.ConsoleFormat, "Console output format: text|json|ndjson")
	fs.String(flags.FlagReport, "", "Write a Markdown report to this path")
	fs.String(flags.FlagOut, "", "Write structured output to this path")
	fs.String(flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	fs.StringSlice(flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	fs.Bool(flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out/--report)")

	// Runtime
	fs.Duration(flags.FlagTimeout, d.Runtime.Timeout, "Timeout for one run")
	fs.Bool(flags.FlagDryRun, false, "List the filtered repositories without enrichment (no token needed)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString(flags.FlagConfig)
	cfg, err := config.Load(strings.TrimSpace(path), cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	return logger.New(cmd.ErrOrStderr(), cfg.Runtime.LogFormat, cfg.LogLevel())
}

func newEngine(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log zerolog.Logger) (*engine.Engine, error) {
	var client *gh.Client
	if !cfg.Runtime.DryRun {
		token, source, err := resolveToken(ctx, cfg.Runtime.GitHubToken)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve GitHub auth token: %w", err)
		}
		if strings.TrimSpace(token) == "" {
			return nil, errors.New("GitHub auth token is required (set GITHUB_TOKEN or run 'gh auth login')")
		}
		log.Debug().Str("source", string(source)).Msg("github token resolved")

		client, err = gh.NewClient(ctx, token, gh.WithVerbose(cfg.Runtime.Verbose, log))
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
	}

	eng := engine.NewEngine(client, log)
	eng.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	return eng, nil
}
