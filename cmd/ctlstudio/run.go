package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/ctlstudio/internal/remote"
	"github.com/mattjoyce/ctlstudio/internal/render"
)

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect and cancel controller runs",
	}

	status := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the live status of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			st, err := c.GetRunStatus(cmd.Context(), args[0], wsID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(st)
			}
			a.printRunStatus(st)
			return nil
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Request cancellation of a running run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			st, err := c.CancelRun(cmd.Context(), args[0], wsID)
			if err != nil {
				return err
			}
			a.logger.Info("run cancel requested", "run_id", st.RunID, "status", st.Status)
			if a.jsonOut {
				return a.printJSON(st)
			}
			a.printRunStatus(st)
			return nil
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch <run-id>",
		Short: "Follow a run and the controller event stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wsID, err := a.resolveWorkspace(cmd.Context(), a.client())
			if err != nil {
				return err
			}
			return a.watchRun(cmd, args[0], wsID)
		},
	}

	cmd.AddCommand(status, cancel, watchCmd)
	return cmd
}

func (a *app) printRunStatus(st *remote.RunStatus) {
	fmt.Fprintf(a.out, "run:      %s\n", st.RunID)
	fmt.Fprintf(a.out, "status:   %s\n", st.Status)
	if st.BundleArtifactID != nil {
		fmt.Fprintf(a.out, "bundle:   %s\n", *st.BundleArtifactID)
	}
	fmt.Fprintf(a.out, "step:     %s\n", render.Deref(st.CurrentStep))
	fmt.Fprintf(a.out, "attempt:  %d (retries %d)\n", st.Attempt, st.RetryCount)
	fmt.Fprintf(a.out, "started:  %s\n", render.FormatTime(st.StartedAt))
	fmt.Fprintf(a.out, "ended:    %s\n", render.FormatTimePtr(st.EndedAt))
	if st.TimeoutReason != nil {
		fmt.Fprintf(a.out, "timeout:  %s\n", *st.TimeoutReason)
	}
	if st.LastError != nil {
		fmt.Fprintf(a.out, "error:    %s\n", *st.LastError)
	}
	if len(st.Errors) > 0 {
		fmt.Fprintf(a.out, "errors:   %s\n", strings.Join(st.Errors, "; "))
	}
}
