package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trendscout/internal/flags"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// exitCode carries a process exit status out of a command.
type exitCode int

func (c exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(c))
}

func codeErr(code int) error {
	if code == 0 {
		return nil
	}
	return exitCode(code)
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trendscout",
		Short: "Rank trending GitHub repositories against your interests",
		Long: `trendscout reads the GitHub trending list, keeps the languages you care about,
enriches each repository with its README and topics, and ranks it by how well it
matches your keywords. Optional one-line summaries explain the best matches.

Examples:
	# Show available commands and global flags
	trendscout --help

	# Rank today's Python and Go repositories
	trendscout analyze --languages python,go --keywords "LLM agent,AI"

	# Run every morning at 08:00 Rome time
	trendscout watch --schedule "0 8 * * *" --timezone Europe/Rome --keywords rust

	# Print build info
	trendscout version

Output:
	By default, commands write human-readable output to stdout and logs to stderr.
	Structured output is available via --emit, --out and --report (see analyze --help).`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := cmd.PersistentFlags()
	pf.String(flags.FlagConfig, "", "Path to a YAML config file (default: $TRENDSCOUT_CONFIG or ./trendscout.yaml)")
	pf.Bool(flags.FlagVerbose, false, "Enable verbose logging (debug level, prints every GitHub API call)")
	pf.String(flags.FlagLogFormat, "console", "Log format: console|json")
	pf.String(flags.FlagLogLevel, "info", "Log level: debug|info|warn|error")

	cmd.AddCommand(newAnalyzeCmd(), newWatchCmd(), newVersionCmd())
	return cmd
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
