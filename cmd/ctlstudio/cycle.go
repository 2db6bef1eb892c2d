package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/ctlstudio/internal/remote"
	"github.com/mattjoyce/ctlstudio/internal/render"
	"github.com/mattjoyce/ctlstudio/internal/studio"
)

var errDeclined = errors.New("plan not approved")

type cycleFlags struct {
	bundle    string
	llmConfig string
	yes       bool
	noReview  bool
}

func (a *app) cycleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Preview, approve, and run a bundle without the wizard",
		Long: `Drive the controller workflow from the command line.

  preview          dry-run the bundle and print the review
  run              preview, confirm the plan, then execute it live
  replay <run-id>  preview, confirm, then re-run under replay-<run-id>

Confirmation uses an interactive prompt; pass --yes when scripting.`,
	}

	var f cycleFlags
	cmd.PersistentFlags().StringVar(&f.bundle, "bundle", "", "Bundle artifact id (default: first accepted bundle)")
	cmd.PersistentFlags().StringVar(&f.llmConfig, "llm-config", "", "Recorded LLM config id")
	cmd.PersistentFlags().BoolVarP(&f.yes, "yes", "y", false, "Approve the plan without prompting")
	cmd.PersistentFlags().BoolVar(&f.noReview, "no-review", false, "Skip printing the review")

	preview := &cobra.Command{
		Use:   "preview",
		Short: "Dry-run the bundle and print the review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.prepareSession(cmd.Context(), f)
			if err != nil {
				return err
			}
			run, err := s.Preview(cmd.Context())
			if err != nil {
				return err
			}
			return a.printCycle(s, run, f)
		},
	}

	live := &cobra.Command{
		Use:   "run",
		Short: "Preview, approve, and execute the bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.approvedSession(cmd.Context(), f)
			if err != nil {
				return err
			}
			run, err := s.RunLive(cmd.Context())
			if err != nil {
				return err
			}
			return a.printCycle(s, run, f)
		},
	}

	replay := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Re-run a recorded run under a replay id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.approvedSession(cmd.Context(), f)
			if err != nil {
				return err
			}
			if err := s.SelectReport(args[0]); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			run, err := s.Replay(cmd.Context())
			if err != nil {
				return err
			}
			if !a.jsonOut {
				fmt.Fprintln(a.out, s.Snapshot().ReplayNotice)
			}
			return a.printCycle(s, run, f)
		},
	}

	cmd.AddCommand(preview, live, replay)
	return cmd
}

// prepareSession loads the workspace and applies the bundle and config flags.
func (a *app) prepareSession(ctx context.Context, f cycleFlags) (*studio.Session, error) {
	c := a.client()
	s := studio.New(c, studio.Options{Logger: a.logger.With("component", "studio")})
	if err := s.RefreshWorkspaces(ctx); err != nil {
		return nil, err
	}
	if a.workspaceID != "" && a.workspaceID != s.WorkspaceID() {
		if _, err := s.SelectWorkspace(ctx, a.workspaceID); err != nil {
			return nil, err
		}
	}
	if s.WorkspaceID() == "" {
		return nil, studio.ErrNoWorkspace
	}
	if f.bundle != "" {
		if err := s.SelectBundle(f.bundle); err != nil {
			return nil, fmt.Errorf("%s: %w", f.bundle, err)
		}
	}
	if f.llmConfig != "" {
		if err := s.SelectLLMConfig(f.llmConfig); err != nil {
			return nil, fmt.Errorf("%s: %w", f.llmConfig, err)
		}
	}
	return s, nil
}

// approvedSession previews the bundle, shows the review, and approves the
// plan once the operator confirms.
func (a *app) approvedSession(ctx context.Context, f cycleFlags) (*studio.Session, error) {
	s, err := a.prepareSession(ctx, f)
	if err != nil {
		return nil, err
	}
	if !f.yes && !render.IsTerminal() {
		return nil, fmt.Errorf("refusing to run without confirmation on a non-interactive terminal; pass --yes")
	}
	run, err := s.Preview(ctx)
	if err != nil {
		return nil, err
	}
	if !f.yes {
		a.printReview(s)
		ok, err := confirmPlan(run)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errDeclined
		}
	}
	token, err := s.ApprovePlan()
	if err != nil {
		return nil, err
	}
	a.logger.Debug("plan approved", "preview_run_id", run.RunID, "token_len", len(token))
	return s, nil
}

func confirmPlan(run *remote.CycleRun) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Approve the plan from preview %s?", run.RunID)).
				Description("The bundle will run live against the workspace.").
				Affirmative("Approve").
				Negative("Cancel").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirm: %w", err)
	}
	return ok, nil
}

func (a *app) printReview(s *studio.Session) {
	snap := s.Snapshot()
	if snap.Review == nil {
		return
	}
	fmt.Fprint(a.out, render.Markdown(render.ReviewMarkdown(snap.Review), 0, render.IsTerminal()))
}

func (a *app) printCycle(s *studio.Session, run *remote.CycleRun, f cycleFlags) error {
	if a.jsonOut {
		return a.printJSON(run)
	}
	if !f.noReview {
		a.printReview(s)
	}
	result := "success"
	if !run.Success {
		result = "failed"
	}
	fmt.Fprintf(a.out, "run %s: %s\n", run.RunID, result)
	for _, e := range run.Errors {
		fmt.Fprintf(a.out, "  %s\n", e)
	}
	if run.ReportPath != "" {
		fmt.Fprintf(a.out, "report: %s\n", run.ReportPath)
	}
	return nil
}
