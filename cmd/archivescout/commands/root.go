package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"archivescout/lib/capturelog"
	capturelogdb "archivescout/lib/capturelog/db"
	"archivescout/lib/telemetry"
	"archivescout/lib/wayback"

	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

var (
	flagEndpoint    string
	flagCdxEndpoint string
	flagReplayBase  string
	flagTimeout     time.Duration
	flagRps         float64
	flagBypassCdn   bool
	flagLogPath     string
	flagVerbose     bool
)

var telemetryCleanup func()

var rootCmd = &cobra.Command{
	Use:   "archivescout",
	Short: "archivescout looks up historical snapshots of urls in a web archive.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(flagVerbose)
		telemetryCleanup = setupTelemetry(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		telemetryCleanup()
	},
}

// a missing or broken telemetry.json5 leaves the global no-op
// providers in place, visible with --verbose
func setupTelemetry(ctx context.Context) func() {
	tel, err := telemetry.SetupFromEnv(ctx, "archivescout-cli")
	if err != nil {
		slog.Debug("telemetry setup skipped", "err", err)
		return func() {}
	}
	return func() {
		err := tel.Shutdown(context.Background())
		if err != nil {
			slog.Debug("telemetry shutdown failed", "err", err)
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&flagEndpoint, "endpoint", wayback.DefaultAvailabilityEndpoint,
		"availability lookup endpoint",
	)
	rootCmd.PersistentFlags().StringVar(
		&flagCdxEndpoint, "cdx-endpoint", wayback.DefaultCdxEndpoint,
		"cdx capture search endpoint",
	)
	rootCmd.PersistentFlags().StringVar(
		&flagReplayBase, "replay-base", wayback.DefaultReplayBase,
		"base url for snapshot replay pages",
	)
	rootCmd.PersistentFlags().DurationVar(
		&flagTimeout, "timeout", time.Second*30,
		"per-request timeout",
	)
	rootCmd.PersistentFlags().Float64Var(
		&flagRps, "rps", 2,
		"max outbound requests per second, 0 disables the limit",
	)
	rootCmd.PersistentFlags().BoolVar(
		&flagBypassCdn, "bypass-cdn", false,
		"work around cloudflare js challenges on self-hosted archives",
	)
	rootCmd.PersistentFlags().StringVar(
		&flagLogPath, "log", "",
		"sqlite file recording every resolution (empty disables the research log)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagVerbose, "verbose", "v", false,
		"enable debug logging",
	)
}

func newClient() *wayback.Client {
	return wayback.NewClient(wayback.ClientOptions{
		AvailabilityEndpoint: flagEndpoint,
		CdxEndpoint:          flagCdxEndpoint,
		ReplayBase:           flagReplayBase,
		Timeout:              flagTimeout,
		BypassCDN:            flagBypassCdn,
		RequestsPerSecond:    flagRps,
	})
}

// openStore returns nil when no --log path is given
func openStore(ctx context.Context) (*capturelog.Store, error) {
	if flagLogPath == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite", flagLogPath)
	if err != nil {
		return nil, err
	}
	_, err = db.ExecContext(ctx, capturelogdb.Schema)
	if err != nil {
		return nil, err
	}
	store := capturelog.NewStore(db)
	return &store, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
