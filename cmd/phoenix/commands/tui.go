package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/phoenix-warmup/internal/app"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	svc, log, closer, err := openService(false)
	if err != nil {
		return err
	}
	defer closer.Close()
	startupLog(log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if _, err := svc.SeedIfEmpty(ctx); err != nil {
		return err
	}
	if err := svc.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	go func() {
		if err := svc.WatchConfig(ctx, cfgFile); err != nil {
			log.Warn().Err(err).Msg("config watcher stopped")
		}
	}()

	p := tea.NewProgram(app.New(svc), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
