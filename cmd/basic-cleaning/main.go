package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"basiccleaning/internal/artifact"
	"basiccleaning/internal/cleaning"
	"basiccleaning/internal/config"
	apperrors "basiccleaning/internal/errors"
	"basiccleaning/internal/events"
	"basiccleaning/internal/infrastructure"
	"basiccleaning/internal/validation"
)

const shutdownTimeout = 5 * time.Second

// cleanOptions are the flags of the root command
type cleanOptions struct {
	configFile        string
	inputArtifact     string
	outputArtifact    string
	outputType        string
	outputDescription string
	minPrice          float64
	maxPrice          float64
}

// putOptions are the flags of the put command
type putOptions struct {
	file         string
	name         string
	artifactType string
	description  string
}

func newRootCmd() *cobra.Command {
	opts := &cleanOptions{}

	cmd := &cobra.Command{
		Use:          "basic-cleaning",
		Short:        "A very basic data cleaning",
		Long:         "Download the raw dataset artifact, drop price outliers, convert last_review to dates and publish the result as a new artifact",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML configuration file (overrides "+config.ConfigFileEnv+")")

	flags := cmd.Flags()
	flags.StringVar(&opts.inputArtifact, "input_artifact", "", "Name of the input artifact")
	flags.StringVar(&opts.outputArtifact, "output_artifact", "", "Name of the output artifact")
	flags.StringVar(&opts.outputType, "output_type", "", "Type of the output artifact")
	flags.StringVar(&opts.outputDescription, "output_description", "", "Description for the output artifact")
	flags.Float64Var(&opts.minPrice, "min_price", 0, "Minimum price value allowed")
	flags.Float64Var(&opts.maxPrice, "max_price", 0, "Maximum price value allowed")
	for _, name := range []string{"input_artifact", "output_artifact", "output_type", "output_description", "min_price", "max_price"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	cmd.AddCommand(newPutCmd(opts), newVersionsCmd(opts), newRunsCmd(opts))
	return cmd
}

func newPutCmd(root *cleanOptions) *cobra.Command {
	opts := &putOptions{}

	cmd := &cobra.Command{
		Use:          "put",
		Short:        "Register a local file as a new artifact version",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPut(cmd, root.configFile, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.file, "file", "", "Local file to upload")
	flags.StringVar(&opts.name, "name", "", "Artifact name")
	flags.StringVar(&opts.artifactType, "type", "", "Artifact type")
	flags.StringVar(&opts.description, "description", "", "Artifact description")
	for _, name := range []string{"file", "name", "type"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
	return cmd
}

func newVersionsCmd(root *cleanOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "versions <artifact>",
		Short:        "List the registered versions of an artifact",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, argv []string) error {
			return runVersions(cmd, root.configFile, argv[0])
		},
	}
}

func newRunsCmd(root *cleanOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "runs <run-id>",
		Short:        "Show a run with the artifacts it used and produced",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, argv []string) error {
			return runRuns(cmd, root.configFile, argv[0])
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the process-wide collaborators of one invocation
type app struct {
	cfg       *config.Config
	paths     *config.Paths
	logger    *slog.Logger
	telemetry *infrastructure.Telemetry
	registry  *artifact.Registry
}

func setup(ctx context.Context, configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to load configuration", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to initialize logger", err)
	}

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to resolve paths", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, apperrors.NewIOError("setup", "failed to create directories", err)
	}

	telemetry, err := infrastructure.InitializeTelemetry(cfg.Telemetry, logger)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to initialize telemetry", err)
	}

	registry, err := artifact.Open(ctx, cfg, paths, logger)
	if err != nil {
		telemetry.Shutdown(ctx)
		return nil, err
	}

	return &app{
		cfg:       cfg,
		paths:     paths,
		logger:    logger,
		telemetry: telemetry,
		registry:  registry,
	}, nil
}

// close pushes run metrics and releases every collaborator
func (r *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := r.telemetry.Push(ctx); err != nil {
		infrastructure.WithError(r.logger, err).Warn("Failed to push metrics")
	}
	if err := r.registry.Close(); err != nil {
		infrastructure.WithError(r.logger, err).Warn("Failed to close artifact registry")
	}
	if err := r.telemetry.Shutdown(ctx); err != nil {
		infrastructure.WithError(r.logger, err).Warn("Failed to shut down telemetry")
	}
	infrastructure.CloseLogFile()
}

func runClean(cmd *cobra.Command, opts *cleanOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx, opts.configFile)
	if err != nil {
		return err
	}
	defer rt.close()

	notifier := events.New(rt.cfg.Events, rt.logger)
	defer notifier.Close()

	step := cleaning.NewStep(rt.registry, rt.paths, rt.logger,
		cleaning.WithNotifier(notifier),
		cleaning.WithTelemetry(rt.telemetry))

	report, err := step.Run(ctx, cleaning.Params{
		InputArtifact:     opts.inputArtifact,
		OutputArtifact:    opts.outputArtifact,
		OutputType:        opts.outputType,
		OutputDescription: opts.outputDescription,
		MinPrice:          opts.minPrice,
		MaxPrice:          opts.maxPrice,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s:%s kept %d of %d rows (run %s)\n",
		report.Artifact.Name, report.Artifact.Version, report.RowsKept, report.RowsRead, report.RunID)
	return nil
}

func runPut(cmd *cobra.Command, configFile string, opts *putOptions) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx, configFile)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := validation.NewFileValidator(rt.logger).ValidateInputFile(opts.file); err != nil {
		return apperrors.NewIOError("put", "invalid artifact file", err)
	}

	upload, err := rt.registry.StartRun(ctx, "upload", map[string]any{
		"file": opts.file,
		"name": opts.name,
		"type": opts.artifactType,
	})
	if err != nil {
		return err
	}
	defer func() {
		if ferr := rt.registry.FinishRun(context.WithoutCancel(ctx), upload, err); ferr != nil {
			infrastructure.WithError(rt.logger, ferr).Warn("Failed to close run")
		}
	}()

	art, err := rt.registry.LogArtifact(ctx, upload, artifact.NewArtifact{
		Name:        opts.name,
		Type:        opts.artifactType,
		Description: opts.description,
		Path:        opts.file,
	})
	if err != nil {
		return err
	}

	rt.logger.InfoContext(ctx, "Artifact uploaded",
		slog.String("name", art.Name),
		slog.String("version", art.Version),
		slog.String("uri", art.URI))
	fmt.Fprintf(cmd.OutOrStdout(), "%s:%s (run %s)\n", art.Name, art.Version, upload.ID)
	return nil
}

func runVersions(cmd *cobra.Command, configFile, name string) error {
	rt, err := setup(cmd.Context(), configFile)
	if err != nil {
		return err
	}
	defer rt.close()

	versions, err := rt.registry.Versions(cmd.Context(), name)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return apperrors.NewResolutionError(name, fmt.Errorf("no versions registered"))
	}

	out := cmd.OutOrStdout()
	for _, v := range versions {
		alias := ""
		if len(v.Aliases) > 0 {
			alias = " (" + v.Aliases[0] + ")"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%d bytes\t%s%s\n", v.Version, v.Type, v.CreatedAt.Format(time.RFC3339), v.Size, v.Digest, alias)
	}
	return nil
}

func runRuns(cmd *cobra.Command, configFile, runID string) error {
	rt, err := setup(cmd.Context(), configFile)
	if err != nil {
		return err
	}
	defer rt.close()

	lineage, err := rt.registry.Lineage(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	run := lineage.Run
	fmt.Fprintf(out, "run\t%s\t%s\t%s\t%s\n", run.ID, run.JobType, run.Status, run.StartedAt.Format(time.RFC3339))
	if run.Error != "" {
		fmt.Fprintf(out, "error\t%s\n", run.Error)
	}
	for _, a := range lineage.Used {
		fmt.Fprintf(out, "used\t%s:%s\t%s\n", a.Name, a.Version, a.Digest)
	}
	for _, a := range lineage.Produced {
		fmt.Fprintf(out, "produced\t%s:%s\t%s\n", a.Name, a.Version, a.Digest)
	}
	return nil
}
