package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the warm-up scheduler without the dashboard",
	Long: `Run the send, reply and daily reset jobs in the foreground until
interrupted. Logs are written to the console and the log file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, log, closer, err := openService(true)
		if err != nil {
			return err
		}
		defer closer.Close()
		startupLog(log)

		if n, err := svc.SeedIfEmpty(ctx); err != nil {
			return err
		} else if n > 0 {
			log.Info().Int("count", n).Msg("seeded recipient pool")
		}

		if addr := cfg.Metrics.Addr; addr != "" {
			go func() {
				log.Info().Str("addr", addr).Msg("serving metrics")
				if err := svc.Metrics.Serve(ctx, addr); err != nil {
					log.Error().Err(err).Msg("metrics listener stopped")
				}
			}()
		}
		go func() {
			if err := svc.WatchConfig(ctx, cfgFile); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("config watcher stopped")
			}
		}()

		if err := svc.Start(); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}

		// Nothing renders the event feed here; consume it so the bus
		// does not count drops.
		for done := false; !done; {
			select {
			case <-ctx.Done():
				done = true
			case e := <-svc.Bus.C():
				log.Debug().Str("kind", string(e.Kind)).Str("inbox", e.Inbox).Msg(e.Message)
			}
		}
		log.Info().Msg("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return svc.Shutdown(sctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
