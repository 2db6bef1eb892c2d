package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/ctlstudio/internal/config"
	"github.com/mattjoyce/ctlstudio/internal/log"
	"github.com/mattjoyce/ctlstudio/internal/remote"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app carries the global flags and the loaded configuration into every
// subcommand.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath  string
	serverURL   string
	token       string
	logLevel    string
	workspaceID string
	jsonOut     bool

	cfg    *config.Config
	logger *slog.Logger
}

func runCLI(args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{in: in, out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ctlstudio",
		Short: "Guided operator workflow for the agent controller",
		Long: `ctlstudio walks an operator through the controller workflow:
pick a bundle, configure the model, preview the plan, review the diff,
approve and run it, then browse or replay past runs.

Run "ctlstudio studio" for the interactive wizard, or drive each step
from the subcommands below.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["skipConfig"] == "true" {
				return nil
			}
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to configuration file")
	flags.StringVar(&a.serverURL, "server", "", "Controller URL (overrides server.url)")
	flags.StringVar(&a.token, "token", "", "Bearer token (overrides server.token)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVarP(&a.workspaceID, "workspace", "w", "", "Workspace id (default: the controller's current workspace)")
	flags.BoolVar(&a.jsonOut, "json", false, "Output JSON")

	root.AddCommand(
		a.studioCmd(),
		a.workspaceCmd(),
		a.bundleCmd(),
		a.llmCmd(),
		a.cycleCmd(),
		a.reportCmd(),
		a.runCmd(),
		a.artifactCmd(),
		a.stubServerCmd(),
		a.versionCmd(),
	)
	return root
}

// load reads the configuration, applies flag overrides, and builds the
// stderr logger.
func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.serverURL != "" {
		cfg.Server.URL = a.serverURL
	}
	if a.token != "" {
		cfg.Server.Token = a.token
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = log.New(cfg.Log.Level, cfg.Log.Format, a.errOut)
	return nil
}

// fileLogger redirects logging to the configured file while a full-screen
// UI owns the terminal. The returned func closes the file.
func (a *app) fileLogger() (*slog.Logger, func(), error) {
	path := a.cfg.Log.File
	if path == "" {
		path = config.DefaultLogFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := log.New(a.cfg.Log.Level, a.cfg.Log.Format, f)
	return logger, func() { _ = f.Close() }, nil
}

func (a *app) client() *remote.Client {
	return remote.New(remote.Options{
		BaseURL:         a.cfg.Server.URL,
		Token:           a.cfg.Server.Token,
		Timeout:         a.cfg.Server.Timeout,
		RetryMaxElapsed: a.cfg.Server.RetryMaxElapsed,
	})
}

// resolveWorkspace returns the --workspace flag or the controller's current
// workspace.
func (a *app) resolveWorkspace(ctx context.Context, c *remote.Client) (string, error) {
	if a.workspaceID != "" {
		return a.workspaceID, nil
	}
	ws, err := c.CurrentWorkspace(ctx)
	if err != nil {
		return "", fmt.Errorf("current workspace: %w", err)
	}
	if ws == nil {
		return "", fmt.Errorf("no workspace is selected; run \"ctlstudio workspace mount <path>\" first")
	}
	return ws.ID, nil
}

func (a *app) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("render JSON: %w", err)
	}
	fmt.Fprintln(a.out, string(data))
	return nil
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := currentVersionInfo()
			if a.jsonOut {
				return a.printJSON(info)
			}
			fmt.Fprintf(a.out, "ctlstudio %s\n", info.Version)
			fmt.Fprintf(a.out, "commit: %s\n", info.Commit)
			fmt.Fprintf(a.out, "built_at: %s\n", info.BuildTime)
			return nil
		},
	}
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   version,
		Commit:    gitCommit,
		BuildTime: buildDate,
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	if info.Version == "0.1.0-dev" && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		info.Version = buildInfo.Main.Version
	}

	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && setting.Value != "" {
				info.Commit = setting.Value
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && setting.Value != "" {
				info.BuildTime = setting.Value
			}
		}
	}
	return info
}
