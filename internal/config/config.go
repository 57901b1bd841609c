package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Interests Interests `yaml:"interests"`
	Source    Source    `yaml:"source"`
	Analysis  Analysis  `yaml:"analysis"`
	Summary   Summary   `yaml:"summary"`
	Output    Output    `yaml:"output"`
	Runtime   Runtime   `yaml:"runtime"`
	Watch     Watch     `yaml:"watch"`
}

type Interests struct {
	// Languages keeps only repositories whose primary language is in the set
	// (case-insensitive; see --languages). Empty means all languages.
	Languages []string `yaml:"languages"`

	// Keywords are the interest terms used for scoring (see --keywords).
	Keywords []string `yaml:"keywords"`

	// Exclude drops repositories by name using Go path.Match style (see --exclude).
	// If a pattern contains '/', it matches OWNER/NAME; otherwise it matches the name.
	Exclude []string `yaml:"exclude"`

	// MinScore is the report threshold (see --min-score). It never affects analysis.
	MinScore int `yaml:"minScore" split_words:"true"`
}

type Source struct {
	// Since is the trending period (see --since).
	// Allowed values: daily, weekly, monthly.
	Since string `yaml:"since"`

	// Language narrows the trending page itself (see --trending-language).
	Language string `yaml:"language"`

	// Input reads records from a JSON file instead of scraping (see --input).
	Input string `yaml:"input"`

	BaseURL string `yaml:"baseURL" split_words:"true"`
}

type Analysis struct {
	BatchSize        int           `yaml:"batchSize" split_words:"true"`
	BatchDelay       time.Duration `yaml:"batchDelay" split_words:"true"`
	RateLimitBackoff time.Duration `yaml:"rateLimitBackoff" split_words:"true"`

	// Concurrency bounds in-batch enrichment (see --concurrency). Must be >= 1.
	Concurrency int `yaml:"concurrency"`

	ReadmeMaxChars int `yaml:"readmeMaxChars" split_words:"true"`
}

type Summary struct {
	// Enabled turns on generated summaries (see --summaries).
	Enabled bool   `yaml:"enabled"`
	Quota   int    `yaml:"quota"`
	Model   string `yaml:"model"`

	// APIKey is read from TRENDSCOUT_SUMMARY_GEMINI_API_KEY or GEMINI_API_KEY.
	APIKey string `yaml:"-" envconfig:"GEMINI_API_KEY"`
}

type Output struct {
	// ConsoleFormat controls the human-facing console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string `yaml:"consoleFormat" split_words:"true"`

	// Report writes a Markdown report to this path (see --report).
	Report string `yaml:"report"`

	// Out writes structured output to this path (see --out).
	Out string `yaml:"out"`

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the --out file extension.
	OutFormat string `yaml:"outFormat" split_words:"true"`

	// Emit writes an additional structured event stream to stdout (see --emit).
	// Allowed values: json, ndjson.
	Emit []string `yaml:"emit"`

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool `yaml:"noConsole" split_words:"true"`
}

type Runtime struct {
	// Timeout bounds a single run (see --timeout). Must be > 0.
	Timeout time.Duration `yaml:"timeout"`

	// Verbose enables debug logs and per-request GitHub logging.
	Verbose bool `yaml:"verbose"`

	// LogFormat selects the log encoder: console or json.
	LogFormat string `yaml:"logFormat" split_words:"true"`
	LogLevel  string `yaml:"logLevel" split_words:"true"`

	// DryRun lists the filtered input without enrichment (see --dry-run).
	DryRun bool `yaml:"dryRun" split_words:"true"`

	// GitHubToken is never read from the config file.
	GitHubToken string `yaml:"-" envconfig:"GITHUB_TOKEN"`
}

type Watch struct {
	// Schedule is a standard five-field cron expression (see --schedule).
	Schedule   string `yaml:"schedule"`
	Timezone   string `yaml:"timezone"`
	RunOnStart bool   `yaml:"runOnStart" split_words:"true"`
}

var (
	consoleFormats = []string{"text", "json", "ndjson"}
	streamFormats  = []string{"json", "ndjson"}
	periods        = []string{"daily", "weekly", "monthly"}
	logFormats     = []string{"console", "json"}
)

func New() *Config {
	return &Config{
		Interests: Interests{
			MinScore: 5,
		},
		Source: Source{
			Since: "daily",
		},
		Analysis: Analysis{
			BatchSize:        5,
			BatchDelay:       2 * time.Second,
			RateLimitBackoff: 60 * time.Second,
			Concurrency:      5,
			ReadmeMaxChars:   5000,
		},
		Summary: Summary{
			Quota: 10,
			Model: "gemini-2.0-flash",
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Timeout:   30 * time.Minute,
			LogFormat: "console",
			LogLevel:  "info",
		},
		Watch: Watch{
			Timezone: "UTC",
		},
	}
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Interests.Languages = splitCommaList(c.Interests.Languages)
	c.Interests.Keywords = splitCommaList(c.Interests.Keywords)
	c.Interests.Exclude = splitCommaList(c.Interests.Exclude)
	c.Output.Emit = splitCommaList(c.Output.Emit)

	if c.Interests.MinScore < 0 {
		return errors.New("--min-score must be >= 0")
	}

	// Source validation
	c.Source.Since = normalizeEnumValue(c.Source.Since)
	if c.Source.Since == "" {
		c.Source.Since = "daily"
	}
	if err := checkEnum("--since", c.Source.Since, periods); err != nil {
		return err
	}
	c.Source.Language = strings.TrimSpace(c.Source.Language)
	c.Source.Input = strings.TrimSpace(c.Source.Input)

	// Analysis validation
	if c.Analysis.BatchSize < 1 {
		return errors.New("--batch-size must be >= 1")
	}
	if c.Analysis.Concurrency < 1 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Analysis.BatchDelay < 0 {
		return errors.New("--batch-delay must be >= 0")
	}
	if c.Analysis.RateLimitBackoff < 0 {
		return errors.New("--rate-limit-backoff must be >= 0")
	}
	if c.Analysis.ReadmeMaxChars < 0 {
		return errors.New("--readme-max-chars must be >= 0")
	}

	// Summary validation
	if c.Summary.Quota < 0 {
		return errors.New("--summary-quota must be >= 0")
	}
	c.Summary.Model = strings.TrimSpace(c.Summary.Model)
	if c.Summary.Enabled && c.Summary.Model == "" {
		return errors.New("--summary-model must not be empty when summaries are enabled")
	}
	c.Summary.APIKey = strings.TrimSpace(c.Summary.APIKey)

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if err := checkEnum("--console-format", c.Output.ConsoleFormat, consoleFormats); err != nil {
		return err
	}
	for i, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if !slices.Contains(streamFormats, v) {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", v)
		}
		c.Output.Emit[i] = v
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			case "":
				return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
			default:
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else if !slices.Contains(streamFormats, c.Output.OutFormat) {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	// Runtime validation
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	c.Runtime.LogFormat = normalizeEnumValue(c.Runtime.LogFormat)
	if c.Runtime.LogFormat == "" {
		c.Runtime.LogFormat = "console"
	}
	if err := checkEnum("--log-format", c.Runtime.LogFormat, logFormats); err != nil {
		return err
	}
	c.Runtime.LogLevel = normalizeEnumValue(c.Runtime.LogLevel)
	if c.Runtime.LogLevel == "" {
		c.Runtime.LogLevel = "info"
	}
	if _, err := zerolog.ParseLevel(c.Runtime.LogLevel); err != nil {
		return fmt.Errorf("unsupported --log-level: %s", c.Runtime.LogLevel)
	}

	// Watch validation happens when the scheduler is built; only tidy here.
	c.Watch.Schedule = strings.TrimSpace(c.Watch.Schedule)
	c.Watch.Timezone = strings.TrimSpace(c.Watch.Timezone)
	if c.Watch.Timezone == "" {
		c.Watch.Timezone = "UTC"
	}

	return nil
}

// LogLevel returns the effective level; --verbose forces debug.
func (c *Config) LogLevel() zerolog.Level {
	if c.Runtime.Verbose {
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(c.Runtime.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func checkEnum(flag, v string, allowed []string) error {
	if slices.Contains(allowed, v) {
		return nil
	}
	return fmt.Errorf("unsupported %s: %s (must be one of: %s)", flag, v, strings.Join(allowed, ", "))
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
