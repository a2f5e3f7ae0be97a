package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/scripture-client/internal/config"
	"github.com/Sternrassler/scripture-client/pkg/app"
	"github.com/Sternrassler/scripture-client/pkg/logging"
	"github.com/Sternrassler/scripture-client/pkg/metrics"
	"github.com/spf13/cobra"
)

// skipApp marks commands that run without the runtime.
const skipApp = "skip-app"

type cli struct {
	configPath  string
	bibleID     string
	logLevel    string
	metricsAddr string
	jsonOutput  bool

	app     *app.App
	metrics *metrics.Server
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scripture",
		Short:         "Read, search and discuss the Bible",
		Long:          "scripture talks to a Scripture text provider and an LLM chat provider through a paced, cached client.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipApp] == "true" {
				return nil
			}
			return c.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config file (default $XDG_CONFIG_HOME/scripture/config.yaml)")
	flags.StringVar(&c.bibleID, "bible", "", "Bible version id (default from config)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.BoolVar(&c.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		c.passageCmd(),
		c.searchCmd(),
		c.lookupCmd(),
		c.biblesCmd(),
		c.booksCmd(),
		c.chaptersCmd(),
		c.bookCmd(),
		c.randomCmd(),
		c.factsCmd(),
		c.chatCmd(),
		c.statusCmd(),
		versionCmd(),
	)
	return root
}

// setup loads the configuration and starts the runtime.
func (c *cli) setup(cmd *cobra.Command) error {
	fileCfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		fileCfg.Log.Level = c.logLevel
	}
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(fileCfg.Log.Level),
		Pretty: fileCfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	cfg := app.FromFile(fileCfg)
	// One-shot commands exit before background preloads could pay off.
	cfg.PreloadEnabled = false

	ctx := cmd.Context()
	if c.metricsAddr != "" {
		if c.metrics, err = metrics.Serve(ctx, c.metricsAddr); err != nil {
			return fmt.Errorf("serve metrics: %w", err)
		}
	}

	if c.app, err = app.New(ctx, cfg); err != nil {
		return err
	}
	c.app.Start(ctx)
	return nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
	}
	if c.metrics != nil {
		c.metrics.Close()
	}
}

// emit prints v as JSON with --json, otherwise calls text.
func (c *cli) emit(w io.Writer, v any, text func(io.Writer)) error {
	if c.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipApp: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scripture %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
