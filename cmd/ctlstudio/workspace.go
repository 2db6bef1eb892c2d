package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/ctlstudio/internal/remote"
	"github.com/mattjoyce/ctlstudio/internal/render"
)

func (a *app) workspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "List, mount, and select controller workspaces",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List mounted workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.client()
			workspaces, err := c.ListWorkspaces(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(workspaces)
			}
			current, err := c.CurrentWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			if len(workspaces) == 0 {
				fmt.Fprintln(a.out, "No workspaces mounted.")
				return nil
			}
			for _, ws := range workspaces {
				marker := " "
				if current != nil && current.ID == ws.ID {
					marker = "*"
				}
				fmt.Fprintf(a.out, "%s %-18s %-20s %s\n", marker, ws.ID, ws.Name, ws.Root)
			}
			return nil
		},
	}

	current := &cobra.Command{
		Use:   "current",
		Short: "Show the controller's current workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := a.client().CurrentWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(ws)
			}
			if ws == nil {
				fmt.Fprintln(a.out, "No workspace selected.")
				return nil
			}
			a.printWorkspace(ws)
			return nil
		},
	}

	mount := &cobra.Command{
		Use:   "mount <path>",
		Short: "Register a workspace root with the controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			ws, err := a.client().MountWorkspace(cmd.Context(), path)
			if err != nil {
				return err
			}
			a.logger.Info("workspace mounted", "workspace_id", ws.ID, "root", ws.Root)
			if a.jsonOut {
				return a.printJSON(ws)
			}
			a.printWorkspace(ws)
			return nil
		},
	}

	sel := &cobra.Command{
		Use:   "select <workspace-id>",
		Short: "Make a workspace current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.client().SelectWorkspace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(ws)
			}
			a.printWorkspace(ws)
			return nil
		},
	}

	cmd.AddCommand(list, current, mount, sel)
	return cmd
}

func (a *app) printWorkspace(ws *remote.Workspace) {
	fmt.Fprintf(a.out, "id:        %s\n", ws.ID)
	fmt.Fprintf(a.out, "name:      %s\n", ws.Name)
	fmt.Fprintf(a.out, "root:      %s\n", ws.Root)
	if len(ws.Languages) > 0 {
		fmt.Fprintf(a.out, "languages: %s\n", strings.Join(ws.Languages, ", "))
	}
	if len(ws.CommitPolicy.Required) > 0 {
		fmt.Fprintf(a.out, "requires:  %s\n", strings.Join(ws.CommitPolicy.Required, ", "))
	}
}

func (a *app) bundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Inspect agent bundles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List accepted bundles in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			bundles, err := c.ListBundles(cmd.Context(), wsID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(bundles)
			}
			a.printEntries(bundles)
			return nil
		},
	})
	return cmd
}

func (a *app) printEntries(entries []remote.ArtifactEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No artifacts.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(a.out, "%-20s %-14s %-10s %s  %s\n",
			e.ArtifactID, e.ArtifactType, e.Status, render.FormatTime(e.CreatedAt), shortHash(e.BodyHash))
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func (a *app) llmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Prompt templates and recorded model configs",
	}

	templates := &cobra.Command{
		Use:   "templates",
		Short: "List prompt templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			list, err := c.ListPromptTemplates(cmd.Context(), wsID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(list)
			}
			for _, t := range list {
				fmt.Fprintf(a.out, "%-10s %-24s %s\n", t.Version, t.Title, render.Deref(t.Description))
			}
			return nil
		},
	}

	configs := &cobra.Command{
		Use:   "configs",
		Short: "List recorded LLM configs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			list, err := c.ListLLMConfigs(cmd.Context(), wsID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "No recorded configs.")
				return nil
			}
			for _, cfg := range list {
				a.printLLMConfig(cfg)
			}
			return nil
		},
	}

	var req remote.LLMConfigRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Record a model + prompt template config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			cfg, err := c.CreateLLMConfig(cmd.Context(), req, wsID)
			if err != nil {
				return err
			}
			a.logger.Info("llm config created", "config_id", cfg.ConfigID)
			if a.jsonOut {
				return a.printJSON(cfg)
			}
			a.printLLMConfig(*cfg)
			return nil
		},
	}
	create.Flags().StringVar(&req.Model, "model", "", "Model name")
	create.Flags().StringVar(&req.PromptTemplateVersion, "template", "", "Prompt template version")
	create.Flags().StringVar(&req.PromptVersion, "prompt-version", "", "Prompt version (defaults to the template)")
	create.Flags().StringVar(&req.ModelID, "model-id", "", "Provider model id")
	create.Flags().StringVar(&req.ModelVersion, "model-version", "", "Provider model version")
	_ = create.MarkFlagRequired("model")
	_ = create.MarkFlagRequired("template")

	cmd.AddCommand(templates, configs, create)
	return cmd
}

func (a *app) printLLMConfig(c remote.LLMConfig) {
	fmt.Fprintf(a.out, "%-14s %-16s %s/%s  %s\n",
		c.ConfigID, c.Model, c.PromptTemplateVersion, c.PromptVersion, render.FormatTime(c.CreatedAt))
}

func (a *app) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Browse the run timeline",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			reports, err := c.ListReports(cmd.Context(), wsID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(reports)
			}
			if len(reports) == 0 {
				fmt.Fprintln(a.out, "No runs recorded.")
				return nil
			}
			for _, r := range reports {
				fmt.Fprintln(a.out, render.ReportLine(r))
			}
			return nil
		},
	})
	return cmd
}
