package tracking

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)

	store, err := NewStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newArtifact(name, digest string) *ArtifactRecord {
	return &ArtifactRecord{
		Project:  "nyc_airbnb",
		Name:     name,
		Type:     "clean_sample",
		Digest:   digest,
		Size:     10,
		FileName: "clean_sample.csv",
		BlobKey:  "nyc_airbnb/" + name + "/" + digest,
		URI:      "file:///tmp/" + digest,
		RunID:    "run-1",
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{"memory", ":memory:", false},
		{"sqlite path", "sqlite://" + filepath.Join(t.TempDir(), "nested", "tracking.db"), false},
		{"unknown scheme", "mysql://localhost/db", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Open(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			sqlDB, err := db.DB()
			require.NoError(t, err)
			assert.NoError(t, sqlDB.Ping())
			sqlDB.Close()
		})
	}
}

func TestStore_RunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &RunRecord{ID: "run-1", JobType: "basic_cleaning", Project: "nyc_airbnb", Config: `{"min_price":10}`}
	require.NoError(t, store.CreateRun(ctx, run))
	assert.Equal(t, StatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	finished := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.FinishRun(ctx, "run-1", StatusFailed, "boom", finished))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))
	assert.Equal(t, `{"min_price":10}`, got.Config)

	assert.ErrorIs(t, store.FinishRun(ctx, "missing", StatusFinished, "", finished), ErrNotFound)
	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CreateArtifactVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := newArtifact("clean_sample.csv", "aaa")
	require.NoError(t, store.CreateArtifactVersion(ctx, first))
	assert.Equal(t, 0, first.Version)
	assert.True(t, first.Latest)

	second := newArtifact("clean_sample.csv", "bbb")
	require.NoError(t, store.CreateArtifactVersion(ctx, second))
	assert.Equal(t, 1, second.Version)

	other := newArtifact("sample.csv", "ccc")
	require.NoError(t, store.CreateArtifactVersion(ctx, other))
	assert.Equal(t, 0, other.Version, "versions are numbered per name")

	latest, err := store.FindArtifact(ctx, "nyc_airbnb", "clean_sample.csv", LatestVersion)
	require.NoError(t, err)
	assert.Equal(t, "bbb", latest.Digest)

	v0, err := store.FindArtifact(ctx, "nyc_airbnb", "clean_sample.csv", 0)
	require.NoError(t, err)
	assert.Equal(t, "aaa", v0.Digest)
	assert.False(t, v0.Latest)

	versions, err := store.ListVersions(ctx, "nyc_airbnb", "clean_sample.csv")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, []int{0, 1}, []int{versions[0].Version, versions[1].Version})
}

func TestStore_FindArtifactNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateArtifactVersion(ctx, newArtifact("sample.csv", "aaa")))

	tests := []struct {
		name    string
		project string
		art     string
		version int
	}{
		{"unknown name", "nyc_airbnb", "nope.csv", LatestVersion},
		{"unknown version", "nyc_airbnb", "sample.csv", 7},
		{"other project", "other", "sample.csv", LatestVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.FindArtifact(ctx, tt.project, tt.art, tt.version)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Lineage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	input := newArtifact("sample.csv", "aaa")
	require.NoError(t, store.CreateArtifactVersion(ctx, input))

	require.NoError(t, store.CreateRun(ctx, &RunRecord{ID: "run-2", JobType: "basic_cleaning", Project: "nyc_airbnb"}))
	require.NoError(t, store.RecordUsage(ctx, "run-2", input.ID))

	used, err := store.UsedArtifacts(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, "sample.csv", used[0].Name)

	none, err := store.UsedArtifacts(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, none)

	output := newArtifact("clean_sample.csv", "bbb")
	output.RunID = "run-2"
	require.NoError(t, store.CreateArtifactVersion(ctx, output))

	produced, err := store.ProducedArtifacts(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, produced, 1)
	assert.Equal(t, "clean_sample.csv", produced[0].Name)
}
