package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"social-ingest/internal/app"
	"social-ingest/internal/database"
	"social-ingest/internal/logging"
	"social-ingest/internal/startup"

	"github.com/spf13/cobra"
)

func main() {
	// Cancel in-flight work on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:           "socialctl",
		Short:         "Operate the social ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.logLevel == "" {
				return nil
			}
			level, ok := logging.ParseLevel(g.logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", g.logLevel)
			}
			logging.SetLevel(level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "Environment file loaded before reading configuration")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		ingestCmd(&g),
		cleanupCmd(&g),
		ledgerCmd(&g),
		sweepCmd(&g),
		versionCmd(),
	)
	return cmd
}

// loadServices builds the pipeline from the environment. The ledger is
// opened when possible; requireLedger turns a missing ledger into an error.
func loadServices(ctx context.Context, g *globalFlags, requireLedger bool) (*app.Services, error) {
	if err := startup.LoadDotEnv(g.envFile); err != nil {
		return nil, err
	}
	cfg, err := startup.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.LedgerEnabled = true

	return app.Build(ctx, cfg, app.Options{RequireLedger: requireLedger})
}

func closeServices(svc *app.Services) {
	if err := svc.Close(); err != nil {
		logging.Warn("failed to close pipeline: %v", err)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ingestCmd(g *globalFlags) *cobra.Command {
	var openGraph bool

	cmd := &cobra.Command{
		Use:   "ingest <url>",
		Short: "Resolve a URL into a profile record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := loadServices(ctx, g, false)
			if err != nil {
				return err
			}
			defer closeServices(svc)

			run := svc.Orch.Ingest
			if openGraph {
				run = svc.Orch.IngestOpenGraph
			}
			record, err := run(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}

	cmd.Flags().BoolVar(&openGraph, "opengraph", false, "Force the Open Graph strategy")
	return cmd
}

func cleanupCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <url>...",
		Short: "Delete the objects behind reference URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := loadServices(ctx, g, false)
			if err != nil {
				return err
			}
			defer closeServices(svc)

			return printJSON(cmd.OutOrStdout(), svc.Orch.Cleanup(ctx, args))
		},
	}
}

func ledgerCmd(g *globalFlags) *cobra.Command {
	var (
		state string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List objects recorded in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parseState(state)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := loadServices(ctx, g, true)
			if err != nil {
				return err
			}
			defer closeServices(svc)

			objects, err := svc.Ledger.ListObjects(ctx, st, limit)
			if err != nil {
				return err
			}
			return writeObjects(cmd.OutOrStdout(), objects)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Only rows in this state (live, pending_delete, deleted)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum rows to print (0 for all)")
	return cmd
}

func parseState(s string) (database.ObjectState, error) {
	switch st := database.ObjectState(s); st {
	case "", database.StateLive, database.StatePendingDelete, database.StateDeleted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown state %q (want live, pending_delete or deleted)", s)
	}
}

func writeObjects(w io.Writer, objects []database.Object) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tCLASS\tSTATE\tSIZE\tATTEMPTS\tUPDATED\tLAST ERROR")
	for _, o := range objects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			o.Key, o.Class, o.State, o.Size, o.Attempts, o.UpdatedAt.UTC().Format(time.RFC3339), o.LastError)
	}
	return tw.Flush()
}

func sweepCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Retry pending deletions once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := loadServices(ctx, g, true)
			if err != nil {
				return err
			}
			defer closeServices(svc)

			res, err := svc.Orch.Sweep(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), startup.GetBuildInfo())
		},
	}
}
