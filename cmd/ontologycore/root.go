package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"ontologycore/internal/config"
	"ontologycore/internal/core"
	"ontologycore/internal/observability"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	trace      bool
	cfg        config.Config
	logger     *slog.Logger
	stderr     io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ontologycore",
		Short:         "Ontology term search and lookup",
		Long:          `ontologycore imports ontology class dumps, searches classes and measurements, and resolves terms against the terminology service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.trace, "trace", false, "write operation spans as JSON lines to stderr")

	root.AddCommand(
		newServeCmd(a),
		newClassesCmd(a),
		newMeasurementsCmd(a),
		newResolveCmd(a),
		newTermsCmd(a),
		newImportCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.stderr = stderr
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// open builds the service. The registry is nil unless metrics are wanted.
func (a *app) open(ctx context.Context, reg prometheus.Registerer) (*core.Service, error) {
	var opts []core.Option
	if a.trace {
		opts = append(opts, core.WithTracer(observability.NewJSONTracer(a.stderr, observability.SystemClock())))
	}
	return core.Open(ctx, a.cfg, reg, observability.NewSlogLogger(a.logger), opts...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
