package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/render"
	"github.com/mattjoyce/ctlstudio/internal/runstatus"
	"github.com/mattjoyce/ctlstudio/internal/studio"
	"github.com/mattjoyce/ctlstudio/internal/tui/watch"
	"github.com/mattjoyce/ctlstudio/internal/tui/wizard"
)

func (a *app) studioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "studio",
		Short: "Open the interactive workflow wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !render.IsTerminal() {
				return fmt.Errorf("studio needs an interactive terminal; use the cycle subcommands instead")
			}
			logger, closeLog, err := a.fileLogger()
			if err != nil {
				return err
			}
			defer closeLog()

			c := a.client()
			hub := events.NewHub(256)
			session := studio.New(c, studio.Options{
				Logger:    logger.With("component", "studio"),
				Publisher: hub,
			})
			wake := wizard.NewNotifier()
			poller := runstatus.New(c, runstatus.Options{
				Interval:  a.cfg.Poll.Interval,
				Logger:    logger.With("component", "runstatus"),
				Publisher: hub,
				OnUpdate:  wake.Notify,
			})
			defer poller.Stop()

			logger.Info("studio starting", "server", c.BaseURL())
			model := wizard.New(wizard.Options{
				Session: session,
				Poller:  poller,
				Wake:    wake,
				Events:  hub,
				Logger:  logger,
				Styled:  true,
			})
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("studio: %w", err)
			}
			return nil
		},
	}
}

// watchRun opens the full-screen run monitor for runID.
func (a *app) watchRun(cmd *cobra.Command, runID, wsID string) error {
	if !render.IsTerminal() {
		return fmt.Errorf("watch needs an interactive terminal; use \"run status\" instead")
	}
	logger, closeLog, err := a.fileLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	c := a.client()
	wake := wizard.NewNotifier()
	poller := runstatus.New(c, runstatus.Options{
		Interval: a.cfg.Poll.Interval,
		Logger:   logger.With("component", "runstatus"),
		OnUpdate: wake.Notify,
	})
	defer poller.Stop()

	model := watch.New(watch.Options{
		APIURL:      c.BaseURL(),
		Token:       a.cfg.Server.Token,
		RunID:       runID,
		WorkspaceID: wsID,
		Poller:      poller,
		Wake:        wake,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
