package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"trendscout/internal/flags"
)

const envPrefix = "TRENDSCOUT"

// Load builds a Config from defaults < YAML < env < changed flags.
// path may be empty; TRENDSCOUT_CONFIG and ./trendscout.yaml are tried next.
// fs may be nil. The result is not validated.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	cfg := New()

	if path == "" {
		path = discoverConfigPath()
	}
	if path != "" {
		if !fileExists(path) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, cfg); err != nil {
			return nil, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env override: %w", err)
	}

	if fs != nil {
		applyChangedFlags(fs, cfg)
	}
	return cfg, nil
}

func discoverConfigPath() string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + "_CONFIG")); v != "" {
		return v
	}
	for _, cand := range []string{"./trendscout.yaml", "config/trendscout.yaml"} {
		if fileExists(cand) {
			return cand
		}
	}
	return ""
}

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func applyChangedFlags(fs *pflag.FlagSet, c *Config) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}
	setDur := func(name string, dst *time.Duration) {
		if fs.Changed(name) {
			v, _ := fs.GetDuration(name)
			*dst = v
		}
	}
	setList := func(name string, dst *[]string) {
		if fs.Changed(name) {
			v, _ := fs.GetStringSlice(name)
			*dst = v
		}
	}

	setList(flags.FlagLanguages, &c.Interests.Languages)
	setList(flags.FlagKeywords, &c.Interests.Keywords)
	setList(flags.FlagExclude, &c.Interests.Exclude)
	setInt(flags.FlagMinScore, &c.Interests.MinScore)

	setStr(flags.FlagSince, &c.Source.Since)
	setStr(flags.FlagLanguage, &c.Source.Language)
	setStr(flags.FlagInput, &c.Source.Input)

	setInt(flags.FlagBatchSize, &c.Analysis.BatchSize)
	setDur(flags.FlagBatchDelay, &c.Analysis.BatchDelay)
	setDur(flags.FlagRateLimitBackoff, &c.Analysis.RateLimitBackoff)
	setInt(flags.FlagConcurrency, &c.Analysis.Concurrency)
	setInt(flags.FlagReadmeMaxChars, &c.Analysis.ReadmeMaxChars)

	setBool(flags.FlagSummaries, &c.Summary.Enabled)
	setInt(flags.FlagSummaryQuota, &c.Summary.Quota)
	setStr(flags.FlagSummaryModel, &c.Summary.Model)

	setStr(flags.FlagConsoleFormat, &c.Output.ConsoleFormat)
	setStr(flags.FlagReport, &c.Output.Report)
	setStr(flags.FlagOut, &c.Output.Out)
	setStr(flags.FlagOutFormat, &c.Output.OutFormat)
	setList(flags.FlagEmit, &c.Output.Emit)
	setBool(flags.FlagNoConsole, &c.Output.NoConsole)

	setBool(flags.FlagVerbose, &c.Runtime.Verbose)
	setDur(flags.FlagTimeout, &c.Runtime.Timeout)
	setStr(flags.FlagLogFormat, &c.Runtime.LogFormat)
	setStr(flags.FlagLogLevel, &c.Runtime.LogLevel)
	setBool(flags.FlagDryRun, &c.Runtime.DryRun)

	setStr(flags.FlagSchedule, &c.Watch.Schedule)
	setStr(flags.FlagTimezone, &c.Watch.Timezone)
	setBool(flags.FlagRunOnStart, &c.Watch.RunOnStart)
}
