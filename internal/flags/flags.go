// Package flags defines canonical CLI flag names shared by the command
// wiring and the configuration loader, which reads changed flags back by name.
// Names are without leading dashes.
package flags

const (
	FlagConfig = "config"

	// Interests
	FlagLanguages = "languages"
	FlagKeywords  = "keywords"
	FlagExclude   = "exclude"
	FlagMinScore  = "min-score"

	// Source
	FlagSince    = "since"
	FlagLanguage = "trending-language"
	FlagInput    = "input"

	// Analysis
	FlagBatchSize        = "batch-size"
	FlagBatchDelay       = "batch-delay"
	FlagRateLimitBackoff = "rate-limit-backoff"
	FlagConcurrency      = "concurrency"
	FlagReadmeMaxChars   = "readme-max-chars"

	// Summary
	FlagSummaries    = "summaries"
	FlagSummaryQuota = "summary-quota"
	FlagSummaryModel = "summary-model"

	// Output
	FlagConsoleFormat = "console-format"
	FlagReport        = "report"
	FlagOut           = "out"
	FlagOutFormat     = "out-format"
	FlagEmit          = "emit"
	FlagNoConsole     = "no-console"

	// Runtime
	FlagVerbose   = "verbose"
	FlagTimeout   = "timeout"
	FlagLogFormat = "log-format"
	FlagLogLevel  = "log-level"
	FlagDryRun    = "dry-run"

	// Watch
	FlagSchedule   = "schedule"
	FlagTimezone   = "timezone"
	FlagRunOnStart = "run-on-start"
)
