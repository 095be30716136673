package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved local paths of one run.
// Everything a run writes lands under WorkDir:
//
//	<work_dir>/
//	  ├── artifacts/<name>/<version>/   (downloaded input artifacts)
//	  └── clean_sample.csv              (produced output, before upload)
type Paths struct {
	WorkDir      string
	ArtifactsDir string
	OutputFile   string
}

// NewPaths resolves the configured paths to absolute locations.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work dir %s: %w", cfg.WorkDir, err)
	}

	output := cfg.OutputFile
	if !filepath.IsAbs(output) {
		output = filepath.Join(workDir, output)
	}

	return &Paths{
		WorkDir:      workDir,
		ArtifactsDir: filepath.Join(workDir, "artifacts"),
		OutputFile:   output,
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.WorkDir,
		p.ArtifactsDir,
		filepath.Dir(p.OutputFile),
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetArtifactPath returns where a downloaded artifact file is placed
func (p *Paths) GetArtifactPath(name, version, fileName string) string {
	return filepath.Join(p.ArtifactsDir, name, version, fileName)
}
