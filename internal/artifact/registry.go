package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"basiccleaning/internal/artifact/blobstore"
	"basiccleaning/internal/artifact/tracking"
	"basiccleaning/internal/config"
	apperrors "basiccleaning/internal/errors"
)

// Registry implements Client over a tracking store and a blob store
type Registry struct {
	store   *tracking.Store
	blobs   blobstore.BlobStore
	paths   *config.Paths
	project string
	entity  string
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistry wires a registry from already opened collaborators
func NewRegistry(store *tracking.Store, blobs blobstore.BlobStore, paths *config.Paths, cfg config.TrackingConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:   store,
		blobs:   blobs,
		paths:   paths,
		project: cfg.Project,
		entity:  cfg.Entity,
		logger:  logger.With("component", "artifact_registry"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Open connects the tracking database and blob store named in cfg
func Open(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*Registry, error) {
	db, err := tracking.Open(cfg.Tracking.DSN)
	if err != nil {
		return nil, apperrors.NewTrackingError("failed to open tracking database", err)
	}
	store, err := tracking.NewStore(db)
	if err != nil {
		return nil, apperrors.NewTrackingError("failed to prepare tracking database", err)
	}

	blobs, err := blobstore.New(ctx, cfg.Storage, logger)
	if err != nil {
		store.Close()
		return nil, apperrors.NewTrackingError("failed to open blob store", err)
	}

	return NewRegistry(store, blobs, paths, cfg.Tracking, logger), nil
}

// StartRun creates a run in the running state
func (r *Registry) StartRun(ctx context.Context, jobType string, cfg map[string]any) (*Run, error) {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return nil, apperrors.NewTrackingError("failed to encode run config", err)
	}

	rec := &tracking.RunRecord{
		ID:        uuid.NewString(),
		JobType:   jobType,
		Project:   r.project,
		Entity:    r.entity,
		Config:    string(encoded),
		Status:    tracking.StatusRunning,
		StartedAt: r.now(),
	}
	if err := r.store.CreateRun(ctx, rec); err != nil {
		return nil, apperrors.NewTrackingError("failed to create run", err)
	}

	r.logger.InfoContext(ctx, "Run started",
		slog.String("run_id", rec.ID),
		slog.String("job_type", jobType),
		slog.String("project", r.project))

	return &Run{
		ID:        rec.ID,
		JobType:   rec.JobType,
		Project:   rec.Project,
		Entity:    rec.Entity,
		Config:    cfg,
		Status:    rec.Status,
		StartedAt: rec.StartedAt,
	}, nil
}

// UseArtifact downloads the artifact version named by ref into the work
// directory, verifies its digest and records the run's use of it.
func (r *Registry) UseArtifact(ctx context.Context, run *Run, ref string) (string, error) {
	parsed, err := ParseReference(ref)
	if err != nil {
		return "", apperrors.NewResolutionError(ref, err)
	}

	project := r.project
	if parsed.Project != "" {
		project = parsed.Project
	}
	if parsed.Entity != "" && r.entity != "" && parsed.Entity != r.entity {
		return "", apperrors.NewResolutionError(ref, fmt.Errorf("entity %s is not tracked by this registry", parsed.Entity))
	}
	if !parsed.IsVersion() && parsed.Alias != AliasLatest {
		return "", apperrors.NewResolutionError(ref, fmt.Errorf("alias %q: %w", parsed.Alias, tracking.ErrNotFound))
	}

	rec, err := r.store.FindArtifact(ctx, project, parsed.Name, parsed.Version)
	if err != nil {
		return "", apperrors.NewResolutionError(ref, err)
	}

	version := FormatVersion(rec.Version)
	dst := r.paths.GetArtifactPath(rec.Name, version, rec.FileName)
	if err := r.blobs.Get(ctx, rec.BlobKey, dst); err != nil {
		return "", apperrors.NewResolutionError(ref, err)
	}

	digest, _, err := FileDigest(dst)
	if err != nil {
		return "", apperrors.NewResolutionError(ref, err)
	}
	if digest != rec.Digest {
		os.Remove(dst)
		return "", apperrors.NewResolutionError(ref, fmt.Errorf("digest mismatch: registered %s, downloaded %s", rec.Digest, digest))
	}

	if run != nil {
		if err := r.store.RecordUsage(ctx, run.ID, rec.ID); err != nil {
			return "", apperrors.NewTrackingError("failed to record artifact usage", err)
		}
	}

	r.logger.DebugContext(ctx, "Artifact resolved",
		slog.String("artifact_ref", ref),
		slog.String("name", rec.Name),
		slog.String("version", version),
		slog.String("path", dst))

	return dst, nil
}

// LogArtifact uploads the file and registers it as the next version of the
// named artifact. When registration fails the upload is removed, so a
// failed publish leaves nothing behind.
func (r *Registry) LogArtifact(ctx context.Context, run *Run, a NewArtifact) (*Artifact, error) {
	if err := ValidateName(a.Name); err != nil {
		return nil, apperrors.NewPublishError(a.Name, err)
	}
	if a.Type == "" {
		return nil, apperrors.NewPublishError(a.Name, errors.New("artifact type is required"))
	}

	digest, size, err := FileDigest(a.Path)
	if err != nil {
		return nil, apperrors.NewPublishError(a.Name, err)
	}

	fileName := filepath.Base(a.Path)
	key := path.Join(r.project, a.Name, uuid.NewString(), fileName)

	uri, err := r.blobs.Put(ctx, key, a.Path)
	if err != nil {
		return nil, apperrors.NewPublishError(a.Name, err)
	}

	rec := &tracking.ArtifactRecord{
		Project:     r.project,
		Name:        a.Name,
		Type:        a.Type,
		Description: a.Description,
		Digest:      digest,
		Size:        size,
		FileName:    fileName,
		BlobKey:     key,
		URI:         uri,
		CreatedAt:   r.now(),
	}
	if run != nil {
		rec.RunID = run.ID
	}

	if err := r.store.CreateArtifactVersion(ctx, rec); err != nil {
		if delErr := r.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			r.logger.WarnContext(ctx, "Failed to remove orphaned blob",
				slog.String("key", key),
				slog.String("error", delErr.Error()))
		}
		return nil, apperrors.NewPublishError(a.Name, err)
	}

	art := fromRecord(rec)
	r.logger.DebugContext(ctx, "Artifact registered",
		slog.String("name", art.Name),
		slog.String("version", art.Version),
		slog.String("digest", art.Digest),
		slog.String("uri", art.URI))

	return art, nil
}

// FinishRun records the outcome of a run
func (r *Registry) FinishRun(ctx context.Context, run *Run, runErr error) error {
	status, msg := tracking.StatusFinished, ""
	if runErr != nil {
		status, msg = tracking.StatusFailed, runErr.Error()
	}

	at := r.now()
	if err := r.store.FinishRun(ctx, run.ID, status, msg, at); err != nil {
		return apperrors.NewTrackingError("failed to finish run", err)
	}

	run.Status = status
	run.Error = msg
	run.FinishedAt = &at
	return nil
}

// Versions lists every registered version of an artifact in the default
// project, oldest first.
func (r *Registry) Versions(ctx context.Context, name string) ([]*Artifact, error) {
	recs, err := r.store.ListVersions(ctx, r.project, name)
	if err != nil {
		return nil, apperrors.NewTrackingError("failed to list artifact versions", err)
	}
	out := make([]*Artifact, 0, len(recs))
	for i := range recs {
		out = append(out, fromRecord(&recs[i]))
	}
	return out, nil
}

// Lineage loads a run with the artifact versions it consumed and produced
func (r *Registry) Lineage(ctx context.Context, runID string) (*Lineage, error) {
	rec, err := r.store.GetRun(ctx, runID)
	if errors.Is(err, tracking.ErrNotFound) {
		return nil, apperrors.NewResolutionError(runID, err)
	}
	if err != nil {
		return nil, apperrors.NewTrackingError("failed to load run", err)
	}

	run, err := runFromRecord(rec)
	if err != nil {
		return nil, apperrors.NewTrackingError("failed to decode run config", err)
	}

	used, err := r.store.UsedArtifacts(ctx, runID)
	if err != nil {
		return nil, apperrors.NewTrackingError("failed to load used artifacts", err)
	}
	produced, err := r.store.ProducedArtifacts(ctx, runID)
	if err != nil {
		return nil, apperrors.NewTrackingError("failed to load produced artifacts", err)
	}

	l := &Lineage{Run: run}
	for i := range used {
		l.Used = append(l.Used, fromRecord(&used[i]))
	}
	for i := range produced {
		l.Produced = append(l.Produced, fromRecord(&produced[i]))
	}
	return l, nil
}

// Close releases the blob store and database handles
func (r *Registry) Close() error {
	return errors.Join(r.blobs.Close(), r.store.Close())
}
