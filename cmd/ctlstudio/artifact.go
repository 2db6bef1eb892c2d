package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/ctlstudio/internal/document"
	"github.com/mattjoyce/ctlstudio/internal/remote"
	"github.com/mattjoyce/ctlstudio/internal/render"
)

func (a *app) artifactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Browse and edit registry artifacts",
	}

	var listType string
	list := &cobra.Command{
		Use:   "list",
		Short: "List artifacts in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			entries, err := c.ListArtifacts(cmd.Context(), listType, wsID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(entries)
			}
			a.printEntries(entries)
			return nil
		},
	}
	list.Flags().StringVar(&listType, "type", "", "Only list artifacts of this type")

	show := &cobra.Command{
		Use:   "show <artifact-id>",
		Short: "Print an artifact's entry and body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			detail, err := c.GetArtifactDetail(cmd.Context(), args[0], wsID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(detail)
			}
			a.printEntries([]remote.ArtifactEntry{detail.Entry})
			fmt.Fprintln(a.out, "---")
			return yaml.NewEncoder(a.out).Encode(map[string]any(detail.Document.Body))
		},
	}

	var createType, createFile string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a new artifact from a YAML or JSON body",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := a.readBody(createFile)
			if err != nil {
				return err
			}
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			detail, err := c.CreateArtifact(cmd.Context(), remote.ArtifactPayload{ArtifactType: createType, Body: body}, wsID)
			if err != nil {
				return err
			}
			a.logger.Info("artifact created", "artifact_id", detail.Entry.ArtifactID, "type", createType)
			return a.printDetail(detail)
		},
	}
	create.Flags().StringVar(&createType, "type", "", "Artifact type")
	create.Flags().StringVarP(&createFile, "file", "f", "-", "Body file (- for stdin)")
	_ = create.MarkFlagRequired("type")

	var updateType, updateFile string
	update := &cobra.Command{
		Use:   "update <artifact-id>",
		Short: "Replace an artifact's body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := a.readBody(updateFile)
			if err != nil {
				return err
			}
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			detail, err := c.UpdateArtifact(cmd.Context(), args[0], remote.ArtifactPayload{ArtifactType: updateType, Body: body}, wsID)
			if err != nil {
				return err
			}
			a.logger.Info("artifact updated", "artifact_id", detail.Entry.ArtifactID)
			return a.printDetail(detail)
		},
	}
	update.Flags().StringVar(&updateType, "type", "", "Artifact type")
	update.Flags().StringVarP(&updateFile, "file", "f", "-", "Body file (- for stdin)")
	_ = update.MarkFlagRequired("type")

	diff := &cobra.Command{
		Use:   "diff <base-id> <compare-id>",
		Short: "Show the structural diff between two artifacts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			wsID, err := a.resolveWorkspace(cmd.Context(), c)
			if err != nil {
				return err
			}
			res, err := c.DiffArtifacts(cmd.Context(), args[0], args[1], wsID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(res)
			}
			fmt.Fprint(a.out, render.Markdown(render.DiffMarkdown(res), 0, render.IsTerminal()))
			return nil
		},
	}

	cmd.AddCommand(list, show, create, update, diff)
	return cmd
}

// readBody decodes a YAML (or JSON) mapping from path, or stdin for "-".
func (a *app) readBody(path string) (document.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(a.in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var body map[string]any
	if err := yaml.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("body is empty")
	}
	return document.Document(body), nil
}

func (a *app) printDetail(detail *remote.ArtifactDetail) error {
	if a.jsonOut {
		return a.printJSON(detail)
	}
	a.printEntries([]remote.ArtifactEntry{detail.Entry})
	return nil
}
