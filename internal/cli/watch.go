package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"trendscout/internal/config"
	"trendscout/internal/engine"
	"trendscout/internal/flags"
	"trendscout/internal/schedule"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rank trending repositories on a cron schedule",
		Long: `Run the analyze pipeline on a cron schedule until interrupted.

Every tick performs a complete, independent run with the same flags as analyze:
a fresh trending list, a fresh request cache and a fresh summary quota. A tick
that fires while the previous run is still going is skipped. --out and --report
are rewritten by every run.

Schedule:
	Standard five-field cron expressions ("0 8 * * 1-5") or descriptors
	(@hourly, @daily, "@every 6h"), evaluated in --timezone.

Exit codes:
	0 = stopped by signal
	3 = fatal error (invalid configuration, schedule or credentials)

Examples:
	trendscout watch --schedule "0 8 * * *" --timezone Europe/Rome --keywords agent --report trending.md
	trendscout watch --schedule @hourly --run-on-start --no-console --emit ndjson
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
			log := newLogger(cmd, cfg)

			var eng *engine.Engine
			w, err := schedule.New(cfg.Watch.Schedule, cfg.Watch.Timezone,
				func(ctx context.Context) int { return eng.Run(ctx, cfg) },
				schedule.RunOnStart(cfg.Watch.RunOnStart),
				schedule.WithLogger(log),
			)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return exitCode(3)
			}
			eng, err = newEngine(ctx, cmd, cfg, log)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return exitCode(3)
			}
			return w.Run(ctx)
		},
	}
	cmd.SetHelpTemplate(analyzeHelpTemplate)
	addAnalysisFlags(cmd.Flags())

	d := config.New()
	cmd.Flags().String(flags.FlagSchedule, "", "Cron expression or descriptor (required)")
	cmd.Flags().String(flags.FlagTimezone, d.Watch.Timezone, "IANA timezone for --schedule")
	cmd.Flags().Bool(flags.FlagRunOnStart, false, "Run once immediately before the first tick")
	return cmd
}
