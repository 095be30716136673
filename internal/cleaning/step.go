package cleaning

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"basiccleaning/internal/artifact"
	"basiccleaning/internal/config"
	"basiccleaning/internal/dataset"
	apperrors "basiccleaning/internal/errors"
	"basiccleaning/internal/events"
	"basiccleaning/internal/exporter"
	"basiccleaning/internal/infrastructure"
	"basiccleaning/internal/validation"
)

// Report summarises a finished cleaning run
type Report struct {
	RunID         string
	RowsRead      int
	RowsKept      int
	RowsDropped   int
	DatesUnparsed int
	InputPath     string
	OutputPath    string
	Artifact      *artifact.Artifact
}

// Step runs the cleaning pipeline against an artifact client
type Step struct {
	client    artifact.Client
	paths     *config.Paths
	writer    *exporter.CSVWriter
	validator *validation.FileValidator
	notifier  events.Notifier
	telemetry *infrastructure.Telemetry
	logger    *slog.Logger
}

// Option customises a Step
type Option func(*Step)

// WithNotifier sets where artifact events are sent
func WithNotifier(n events.Notifier) Option {
	return func(s *Step) { s.notifier = n }
}

// WithTelemetry sets the tracer and metrics the step records into
func WithTelemetry(t *infrastructure.Telemetry) Option {
	return func(s *Step) { s.telemetry = t }
}

// NewStep creates a cleaning step. Without options it sends no events and
// records telemetry nowhere.
func NewStep(client artifact.Client, paths *config.Paths, logger *slog.Logger, opts ...Option) *Step {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = infrastructure.WithComponent(logger, JobType)

	s := &Step{
		client:    client,
		paths:     paths,
		writer:    exporter.NewCSVWriter(paths, logger),
		validator: validation.NewFileValidator(logger),
		notifier:  events.NopNotifier{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.telemetry == nil {
		s.telemetry = infrastructure.NewNopTelemetry()
	}
	return s
}

// Run executes one cleaning pass. The run is always closed in the tracker,
// as failed when any phase returns an error.
func (s *Step) Run(ctx context.Context, p Params) (report *Report, err error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	run, err := s.client.StartRun(ctx, JobType, p.ConfigMap())
	if err != nil {
		return nil, err
	}
	ctx = infrastructure.WithTraceID(ctx, run.ID)

	defer func() {
		if ferr := s.client.FinishRun(context.WithoutCancel(ctx), run, err); ferr != nil {
			infrastructure.WithError(s.logger, ferr).WarnContext(ctx, "Failed to close run")
		}
		if err != nil {
			s.logFailure(ctx, err)
		}
	}()

	report = &Report{RunID: run.ID}

	s.logger.InfoContext(ctx, "Downloading artifact", slog.String("artifact_ref", p.InputArtifact))
	err = s.phase(ctx, "download", func(ctx context.Context) error {
		path, err := s.client.UseArtifact(ctx, run, p.InputArtifact)
		if err != nil {
			return ensureKind(err, func(cause error) error { return apperrors.NewResolutionError(p.InputArtifact, cause) })
		}
		report.InputPath = path
		return nil
	})
	if err != nil {
		return nil, err
	}

	var table *dataset.Table
	err = s.phase(ctx, "load", func(ctx context.Context) error {
		if err := s.validator.ValidateFile(report.InputPath); err != nil {
			return apperrors.NewParseError(report.InputPath, "input file is not readable", err)
		}
		t, err := dataset.Load(report.InputPath)
		if err != nil {
			return err
		}
		if err := t.RequireColumns(PriceColumn, DateColumn); err != nil {
			return apperrors.NewParseError(report.InputPath, "input table is missing columns", err)
		}
		table = t
		report.RowsRead = t.Len()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Dropping outliers",
		slog.Float64("min_price", p.MinPrice),
		slog.Float64("max_price", p.MaxPrice))
	err = s.phase(ctx, "filter", func(ctx context.Context) error {
		kept, dropped, err := FilterPriceRange(table, p.MinPrice, p.MaxPrice)
		if err != nil {
			return apperrors.New(apperrors.KindParse, "filter", "failed to filter by price", err)
		}
		report.RowsKept, report.RowsDropped = kept, dropped
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Converting last_review to date")
	err = s.phase(ctx, "dates", func(ctx context.Context) error {
		unparsed, err := NormalizeDates(table, DateColumn)
		if err != nil {
			return apperrors.New(apperrors.KindParse, "dates", "failed to convert dates", err)
		}
		report.DatesUnparsed = unparsed
		if unparsed > 0 {
			s.logger.WarnContext(ctx, "Unparseable dates set to null", slog.Int("count", unparsed))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Saving the artifact", slog.String("path", s.paths.OutputFile))
	err = s.phase(ctx, "save", func(ctx context.Context) error {
		if err := s.validator.ValidateOutputDirectory(filepath.Dir(s.paths.OutputFile)); err != nil {
			return apperrors.NewIOError("save", "output directory is not usable", err)
		}
		path, err := s.writer.WriteCSV(ctx, s.paths.OutputFile, exporter.WriteOptions{
			Headers: table.Header(),
			Records: table.Rows(),
		})
		if err != nil {
			return apperrors.NewIOError("save", "failed to write output", err)
		}
		report.OutputPath = path
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Logging artifact",
		slog.String("name", p.OutputArtifact),
		slog.String("type", p.OutputType))
	err = s.phase(ctx, "publish", func(ctx context.Context) error {
		art, err := s.client.LogArtifact(ctx, run, artifact.NewArtifact{
			Name:        p.OutputArtifact,
			Type:        p.OutputType,
			Description: p.OutputDescription,
			Path:        report.OutputPath,
		})
		if err != nil {
			return ensureKind(err, func(cause error) error { return apperrors.NewPublishError(p.OutputArtifact, cause) })
		}
		report.Artifact = art
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, run, report)

	s.telemetry.RecordRows(ctx, infrastructure.RowCounts{
		Read:     report.RowsRead,
		Written:  report.RowsKept,
		Dropped:  report.RowsDropped,
		Unparsed: report.DatesUnparsed,
	})

	s.logger.InfoContext(ctx, "Basic cleaning finished",
		slog.Int("rows_read", report.RowsRead),
		slog.Int("rows_kept", report.RowsKept),
		slog.Int("rows_dropped", report.RowsDropped),
		slog.Int("dates_unparsed", report.DatesUnparsed),
		slog.String("artifact", report.Artifact.Name),
		slog.String("version", report.Artifact.Version))

	return report, nil
}

// phase runs fn inside a telemetry span named after the phase
func (s *Step) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, end := s.telemetry.StartPhase(ctx, name)
	err := fn(ctx)
	end(err)
	return err
}

// notify announces the published artifact. The artifact is already
// registered at this point, so a delivery failure is only logged.
func (s *Step) notify(ctx context.Context, run *artifact.Run, report *Report) {
	art := report.Artifact
	err := s.notifier.Notify(ctx, events.ArtifactPublished{
		RunID:       run.ID,
		JobType:     JobType,
		Name:        art.Name,
		Version:     art.Version,
		Type:        art.Type,
		Digest:      art.Digest,
		URI:         art.URI,
		RowCount:    report.RowsKept,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		infrastructure.WithError(s.logger, err).WarnContext(ctx, "Failed to send artifact event",
			slog.String("artifact", art.Name))
	}
}

func (s *Step) logFailure(ctx context.Context, err error) {
	attrs := []any{slog.String("error", err.Error())}
	var pErr *apperrors.PipelineError
	if errors.As(err, &pErr) {
		attrs = append(attrs, pErr.LogAttrs()...)
	}
	s.logger.ErrorContext(ctx, "Basic cleaning failed", attrs...)
}

// ensureKind wraps err with wrap unless it already carries a pipeline kind
func ensureKind(err error, wrap func(error) error) error {
	if apperrors.KindOf(err) != "" {
		return err
	}
	return wrap(err)
}
