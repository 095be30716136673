package artifact

import "context"

// Client is the tracking contract a pipeline step runs against
type Client interface {
	// StartRun opens a tracked run and records its configuration
	StartRun(ctx context.Context, jobType string, config map[string]any) (*Run, error)
	// UseArtifact resolves a reference, downloads the file and records
	// the run's use of it. It returns the local path of the file.
	UseArtifact(ctx context.Context, run *Run, ref string) (string, error)
	// LogArtifact registers a local file as a new artifact version
	// produced by the run.
	LogArtifact(ctx context.Context, run *Run, a NewArtifact) (*Artifact, error)
	// FinishRun marks the run finished, or failed when runErr is non-nil
	FinishRun(ctx context.Context, run *Run, runErr error) error
	Close() error
}
