package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"basiccleaning/internal/config"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLocalStore_RoundTrip(t *testing.T) {
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)
	ctx := context.Background()

	src := writeSource(t, "price\n10\n")
	uri, err := store.Put(ctx, "nyc_airbnb/sample.csv/run-1/sample.csv", src)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"), uri)
	assert.FileExists(t, filepath.Join(store.Root(), "nyc_airbnb", "sample.csv", "run-1", "sample.csv"))

	dst := filepath.Join(t.TempDir(), "out", "sample.csv")
	require.NoError(t, store.Get(ctx, "nyc_airbnb/sample.csv/run-1/sample.csv", dst))

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "price\n10\n", string(content))

	require.NoError(t, store.Delete(ctx, "nyc_airbnb/sample.csv/run-1/sample.csv"))
	assert.ErrorIs(t, store.Get(ctx, "nyc_airbnb/sample.csv/run-1/sample.csv", dst), ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "nyc_airbnb/sample.csv/run-1/sample.csv"), "deleting twice is fine")
	assert.NoError(t, store.Close())
}

func TestLocalStore_InvalidKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()
	src := writeSource(t, "x")

	for _, key := range []string{"", ".", "..", "../escape.csv", "a/../../escape.csv"} {
		t.Run(key, func(t *testing.T) {
			_, err := store.Put(ctx, key, src)
			assert.Error(t, err)
		})
	}
}

func TestLocalStore_PutMissingSource(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "a/b.csv", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(store.Root(), "a", "b.csv"))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, config.StorageConfig{Backend: "local", LocalDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = New(ctx, config.StorageConfig{Backend: "s3"}, nil)
	assert.Error(t, err)

	_, err = New(ctx, config.StorageConfig{Backend: "gcs"}, nil)
	assert.Error(t, err, "gcs without a bucket")
}

func TestGCSStore_ObjectNames(t *testing.T) {
	ctx := context.Background()

	store, err := NewGCSStore(ctx, config.StorageConfig{Backend: "gcs", Bucket: "artifacts", Prefix: "/pipelines/"}, nil,
		option.WithoutAuthentication())
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "pipelines/nyc_airbnb/clean.csv/run-1/clean.csv", store.objectName("nyc_airbnb/clean.csv/run-1/clean.csv"))

	store.prefix = ""
	assert.Equal(t, "a/b.csv", store.objectName("/a/b.csv"))
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"clean_sample.csv", "text/csv"},
		{"SAMPLE.CSV", "text/csv"},
		{"book.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"blob", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contentType(tt.name))
		})
	}
}
