package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/winevisor/winevisor"
	"github.com/winevisor/winevisor/internal/store"
	"github.com/winevisor/winevisor/internal/store/postgres"
	"github.com/winevisor/winevisor/internal/store/sqlite"
)

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen      string
	BasePath    string
	StoreDriver string
	StoreDSN    string
	PrefixRoot  string
	Interval    time.Duration
}

func createServeCommand(wc command) *cobra.Command {
	flags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervision daemon with the HTTP API",
		Long: `Run as a daemon: starts the monitor loop, exposes the HTTP API and
Prometheus metrics, and optionally persists launch history.

Examples:
  winevisor serve --listen :8080
  winevisor serve --store-driver sqlite --store-dsn /var/lib/winevisor/history.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(wc, flags)
		},
	}
	cmd.Flags().StringVar(&flags.Listen, "listen", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&flags.BasePath, "base-path", "/api", "base path for API routes")
	cmd.Flags().StringVar(&flags.StoreDriver, "store-driver", "", "history backend (sqlite or postgres)")
	cmd.Flags().StringVar(&flags.StoreDSN, "store-dsn", "", "history backend DSN")
	cmd.Flags().StringVar(&flags.PrefixRoot, "prefix-root", defaultPrefixRoot(), "directory holding all prefixes")
	cmd.Flags().DurationVar(&flags.Interval, "interval", time.Second, "monitor poll interval")
	return cmd
}

func runServe(wc command, flags *ServeFlags) error {
	eng := wc.eng
	if err := eng.UsePrefixManager(flags.PrefixRoot); err != nil {
		return err
	}
	if flags.StoreDriver != "" {
		st, err := openStore(flags.StoreDriver, flags.StoreDSN)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = eng.UseHistory(ctx, st)
		cancel()
		if err != nil {
			return fmt.Errorf("init history store: %w", err)
		}
	}
	if err := winevisor.RegisterMetricsDefault(); err != nil {
		return err
	}

	eng.SetMonitorInterval(flags.Interval)
	eng.StartMonitoring()
	defer eng.Shutdown()

	srv, err := winevisor.NewHTTPServer(flags.Listen, flags.BasePath, eng)
	if err != nil {
		return err
	}
	fmt.Printf("winevisor daemon listening on %s%s\n", flags.Listen, flags.BasePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func createHistoryCommand(wc command) *cobra.Command {
	var (
		driver string
		dsn    string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent launches from the history store",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(driver, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			entries, err := st.History(ctx, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "PID\tSTATE\tEXIT\tSTARTED\tENDED\tEXE")
			for _, e := range entries {
				exit, ended := "-", "-"
				if e.ExitCode.Valid {
					exit = fmt.Sprintf("%d", e.ExitCode.Int64)
				}
				if e.EndedAt.Valid {
					ended = e.EndedAt.Time.Format(time.RFC3339)
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					e.PID, e.State, exit, e.StartedAt.Format(time.RFC3339), ended, e.ExePath)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&driver, "store-driver", "sqlite", "history backend (sqlite or postgres)")
	cmd.Flags().StringVar(&dsn, "store-dsn", "", "history backend DSN")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to show")
	return cmd
}

func openStore(driver, dsn string) (store.Store, error) {
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "winevisor.db"
		}
		return sqlite.New(dsn)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("postgres requires --store-dsn")
		}
		return postgres.New(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
