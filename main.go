// quarry scans a source tree and produces code-intelligence artifacts: a
// symbol-annotated file tree, a dependency graph, and a call graph.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/artifact"
	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/pipeline"
	"github.com/quarrylabs/quarry/internal/watch"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quarry",
		Short:         "static code intelligence for polyglot repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newScanCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newContextCmd(),
		newShowCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return root
}

// setup resolves the scan root, loads configuration, and builds the pipeline.
func setup(args []string) (*pipeline.Pipeline, *config.Config, string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, "", fmt.Errorf("resolving root: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, "", err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	p, err := pipeline.New(root, cfg, logger)
	if err != nil {
		return nil, nil, "", err
	}
	return p, cfg, root, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [path]",
		Short: "scan the tree once and write artifacts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, _, err := setup(args)
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			printRunResult(cmd, res)
			if !res.Success {
				return fmt.Errorf("scan failed")
			}
			return nil
		},
	}
}

func printRunResult(cmd *cobra.Command, res *pipeline.RunResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d files in %s\n",
		res.RunID, res.TotalFiles, res.Elapsed.Round(time.Millisecond))
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "scan, then rescan whenever source files change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, root, err := setup(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if res, err := p.Run(ctx); err != nil {
				return err
			} else {
				printRunResult(cmd, res)
			}

			// Rescans are serialized inside the pipeline; the handler just
			// kicks one off per debounced batch.
			handler := func(paths []string) {
				slog.Info("change detected", "files", len(paths))
				if res, err := p.Run(ctx); err != nil {
					slog.Error("rescan failed", "error", err)
				} else {
					printRunResult(cmd, res)
				}
			}

			ignore := append([]string{cfg.OutputDir}, cfg.IgnoreDirs...)
			w, err := watch.New(root,
				time.Duration(cfg.DebounceMS)*time.Millisecond,
				ignore, handler, slog.Default())
			if err != nil {
				return err
			}
			slog.Info("watching", "root", root)
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [path]",
		Short: "report artifact freshness",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, _, err := setup(args)
			if err != nil {
				return err
			}
			st, err := p.Stat()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "artifact dir: %s\n", st.ArtifactDir)
			if len(st.Missing) > 0 {
				fmt.Fprintf(out, "missing: %v\n", st.Missing)
				fmt.Fprintln(out, "status: no scan (run `quarry scan`)")
				return nil
			}
			fmt.Fprintf(out, "generated: %s (%d files)\n",
				st.GeneratedAt.Format(time.RFC3339), st.TotalFiles)
			if st.Fresh {
				fmt.Fprintln(out, "status: fresh")
			} else {
				fmt.Fprintln(out, "status: stale")
			}
			return nil
		},
	}
}

func newContextCmd() *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "context [path]",
		Short: "print a ranked plain-text digest of the scanned tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, _, err := setup(args)
			if err != nil {
				return err
			}
			digest, err := p.BuildContext(files)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), digest)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&files, "files", "f", nil,
		"comma-separated project-relative paths to limit the digest")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "show <artifact> [path]",
		Short:     "print a raw artifact envelope",
		ValidArgs: artifact.Names,
		Args:      cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, _, err := setup(args[1:])
			if err != nil {
				return err
			}
			env, err := p.ReadArtifact(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", env.Payload)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the quarry version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quarry %s\n", version)
		},
	}
}
