package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basiccleaning/internal/artifact/tracking"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    Reference
		wantErr bool
	}{
		{
			name: "bare name",
			ref:  "sample.csv",
			want: Reference{Name: "sample.csv", Alias: "latest", Version: tracking.LatestVersion},
		},
		{
			name: "name with alias",
			ref:  "sample.csv:latest",
			want: Reference{Name: "sample.csv", Alias: "latest", Version: tracking.LatestVersion},
		},
		{
			name: "name with version",
			ref:  "sample.csv:v3",
			want: Reference{Name: "sample.csv", Alias: "v3", Version: 3},
		},
		{
			name: "project and name",
			ref:  "nyc_airbnb/sample.csv:v0",
			want: Reference{Project: "nyc_airbnb", Name: "sample.csv", Alias: "v0", Version: 0},
		},
		{
			name: "entity project and name",
			ref:  "team/nyc_airbnb/sample.csv:prod",
			want: Reference{Entity: "team", Project: "nyc_airbnb", Name: "sample.csv", Alias: "prod", Version: tracking.LatestVersion},
		},
		{name: "empty", ref: "  ", wantErr: true},
		{name: "empty alias", ref: "sample.csv:", wantErr: true},
		{name: "empty name", ref: "nyc_airbnb/:v1", wantErr: true},
		{name: "too deep", ref: "a/b/c/d", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"clean_sample.csv", false},
		{"sample", false},
		{"v1.2.csv", false},
		{"", true},
		{" sample.csv", true},
		{"nyc/sample.csv", true},
		{`nyc\sample.csv`, true},
		{"sample.csv:v1", true},
		{".", true},
		{"..", true},
		{"a..b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			ref, err := ParseReference(tt.name + ":latest")
			require.NoError(t, err)
			assert.Equal(t, tt.name, ref.Name)
		})
	}
}

func TestReference_String(t *testing.T) {
	ref, err := ParseReference("team/nyc_airbnb/sample.csv")
	require.NoError(t, err)
	assert.Equal(t, "team/nyc_airbnb/sample.csv:latest", ref.String())
	assert.False(t, ref.IsVersion())

	ref, err = ParseReference("sample.csv:v12")
	require.NoError(t, err)
	assert.Equal(t, "sample.csv:v12", ref.String())
	assert.True(t, ref.IsVersion())
}

func TestFileDigest(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte("price\n10\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("price\n11\n"), 0644))

	da, size, err := FileDigest(a)
	require.NoError(t, err)
	assert.Len(t, da, 64)
	assert.Equal(t, int64(9), size)

	again, _, err := FileDigest(a)
	require.NoError(t, err)
	assert.Equal(t, da, again)

	db, _, err := FileDigest(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, db)

	_, _, err = FileDigest(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v0", FormatVersion(0))
	assert.Equal(t, "v17", FormatVersion(17))
}
