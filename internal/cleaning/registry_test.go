package cleaning

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basiccleaning/internal/artifact"
	"basiccleaning/internal/artifact/blobstore"
	"basiccleaning/internal/artifact/tracking"
	"basiccleaning/internal/config"
	apperrors "basiccleaning/internal/errors"
)

// failingPuts rejects every upload
type failingPuts struct {
	*blobstore.LocalStore
}

func (failingPuts) Put(context.Context, string, string) (string, error) {
	return "", assert.AnError
}

type registryFixture struct {
	reg   *artifact.Registry
	store *tracking.Store
	local *blobstore.LocalStore
	paths *config.Paths
}

func newRegistryFixture(t *testing.T, wrap func(*blobstore.LocalStore) blobstore.BlobStore) *registryFixture {
	t.Helper()
	root := t.TempDir()

	db, err := tracking.Open("sqlite://" + filepath.Join(root, "tracking.db"))
	require.NoError(t, err)
	store, err := tracking.NewStore(db)
	require.NoError(t, err)

	local, err := blobstore.NewLocalStore(filepath.Join(root, "blobs"), nil)
	require.NoError(t, err)
	var blobs blobstore.BlobStore = local
	if wrap != nil {
		blobs = wrap(local)
	}

	paths, err := config.NewPaths(config.PathsConfig{WorkDir: filepath.Join(root, "work"), OutputFile: "clean_sample.csv"})
	require.NoError(t, err)

	reg := artifact.NewRegistry(store, blobs, paths, config.TrackingConfig{Project: "nyc_airbnb"}, nil)
	t.Cleanup(func() { reg.Close() })
	return &registryFixture{reg: reg, store: store, local: local, paths: paths}
}

// seed registers content as the raw sample.csv artifact
func (f *registryFixture) seed(t *testing.T, content string) {
	t.Helper()
	ctx := context.Background()
	src := filepath.Join(t.TempDir(), "sample.csv")
	require.NoError(t, os.WriteFile(src, []byte(content), 0644))

	run, err := f.reg.StartRun(ctx, "upload", nil)
	require.NoError(t, err)
	_, err = f.reg.LogArtifact(ctx, run, artifact.NewArtifact{Name: "sample.csv", Type: "raw_data", Description: "Raw data", Path: src})
	require.NoError(t, err)
	require.NoError(t, f.reg.FinishRun(ctx, run, nil))
}

func TestStep_WithRegistry(t *testing.T) {
	f := newRegistryFixture(t, nil)
	f.seed(t, "id,price,last_review\n1,50,2019-01-01\n2,5,x\n3,999,2019-02-02\n")
	ctx := context.Background()

	step := NewStep(f.reg, f.paths, nil)
	report, err := step.Run(ctx, testParams(10, 500))
	require.NoError(t, err)
	assert.Equal(t, "v0", report.Artifact.Version)
	assert.Equal(t, []string{"latest"}, report.Artifact.Aliases)

	// The published artifact can be consumed by the next stage.
	next, err := f.reg.StartRun(ctx, "data_check", nil)
	require.NoError(t, err)
	path, err := f.reg.UseArtifact(ctx, next, "clean_sample.csv:latest")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,price,last_review\n1,50,2019-01-01\n", string(content))

	lineage, err := f.reg.Lineage(ctx, report.RunID)
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusFinished, lineage.Run.Status)
	assert.Equal(t, JobType, lineage.Run.JobType)
	assert.Equal(t, 500.0, lineage.Run.Config["max_price"])
	require.Len(t, lineage.Used, 1)
	assert.Equal(t, "sample.csv", lineage.Used[0].Name)
	require.Len(t, lineage.Produced, 1)
	assert.Equal(t, "clean_sample.csv", lineage.Produced[0].Name)

	// A second run publishes a new version with identical content.
	again, err := step.Run(ctx, testParams(10, 500))
	require.NoError(t, err)
	assert.Equal(t, "v1", again.Artifact.Version)
	assert.Equal(t, report.Artifact.Digest, again.Artifact.Digest)
}

func TestStep_WithRegistry_ResolutionFailure(t *testing.T) {
	f := newRegistryFixture(t, nil)
	ctx := context.Background()

	report, err := NewStep(f.reg, f.paths, nil).Run(ctx, testParams(10, 500))
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, apperrors.IsResolution(err))

	versions, err := f.reg.Versions(ctx, "clean_sample.csv")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestStep_WithRegistry_PublishFailure(t *testing.T) {
	f := newRegistryFixture(t, func(l *blobstore.LocalStore) blobstore.BlobStore { return failingPuts{l} })
	ctx := context.Background()

	// Seed through a healthy registry sharing the same database and blobs.
	healthy := artifact.NewRegistry(f.store, f.local, f.paths, config.TrackingConfig{Project: "nyc_airbnb"}, nil)
	(&registryFixture{reg: healthy, store: f.store, local: f.local, paths: f.paths}).seed(t, "price,last_review\n50,2019-01-01\n")

	_, err := NewStep(f.reg, f.paths, nil).Run(ctx, testParams(10, 500))
	require.Error(t, err)
	assert.True(t, apperrors.IsPublish(err))
	assert.ErrorIs(t, err, assert.AnError)

	versions, err := f.reg.Versions(ctx, "clean_sample.csv")
	require.NoError(t, err)
	assert.Empty(t, versions, "no artifact may be registered after a failed publish")
}
