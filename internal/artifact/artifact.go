package artifact

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"basiccleaning/internal/artifact/tracking"
)

// AliasLatest is the alias carried by the newest version of an artifact
const AliasLatest = "latest"

// Run is a tracked execution of a pipeline step
type Run struct {
	ID         string
	JobType    string
	Project    string
	Entity     string
	Config     map[string]any
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string
}

// Artifact is one registered version of a named artifact
type Artifact struct {
	Name        string
	Type        string
	Description string
	Version     string
	Digest      string
	Size        int64
	FileName    string
	URI         string
	RunID       string
	Aliases     []string
	CreatedAt   time.Time
}

// Lineage is a run together with the artifact versions it consumed and
// the ones it registered, each in registration order.
type Lineage struct {
	Run      *Run
	Used     []*Artifact
	Produced []*Artifact
}

// NewArtifact describes a local file to be registered as an artifact
type NewArtifact struct {
	Name        string
	Type        string
	Description string
	Path        string
}

// Reference is the parsed form of an artifact reference string:
//
//	[entity/][project/]name[:alias|:vN]
type Reference struct {
	Entity  string
	Project string
	Name    string
	Alias   string
	// Version is the explicit version number, or tracking.LatestVersion
	// when the reference names an alias instead.
	Version int
}

var versionAlias = regexp.MustCompile(`^v(\d+)$`)

// ValidateName checks that name can be resolved back through
// ParseReference and used as a single path element.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("artifact name is required")
	case strings.TrimSpace(name) != name:
		return fmt.Errorf("artifact name %q has surrounding spaces", name)
	case strings.ContainsAny(name, `/\:`):
		return fmt.Errorf("artifact name %q must not contain '/', '\\' or ':'", name)
	case name == "." || strings.Contains(name, ".."):
		return fmt.Errorf("artifact name %q must not contain '..'", name)
	}
	return nil
}

// ParseReference splits a reference into its parts. A reference without an
// alias or version resolves to the latest version.
func ParseReference(ref string) (Reference, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Reference{}, fmt.Errorf("empty artifact reference")
	}

	r := Reference{Alias: AliasLatest, Version: tracking.LatestVersion}

	if idx := strings.LastIndex(ref, ":"); idx >= 0 {
		alias := ref[idx+1:]
		ref = ref[:idx]
		if alias == "" {
			return Reference{}, fmt.Errorf("empty alias in artifact reference")
		}
		r.Alias = alias
		if m := versionAlias.FindStringSubmatch(alias); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return Reference{}, fmt.Errorf("invalid version %q: %w", alias, err)
			}
			r.Version = n
		}
	}

	parts := strings.Split(ref, "/")
	switch len(parts) {
	case 1:
		r.Name = parts[0]
	case 2:
		r.Project, r.Name = parts[0], parts[1]
	case 3:
		r.Entity, r.Project, r.Name = parts[0], parts[1], parts[2]
	default:
		return Reference{}, fmt.Errorf("too many path segments in artifact reference %q", ref)
	}

	for _, p := range parts {
		if p == "" {
			return Reference{}, fmt.Errorf("empty path segment in artifact reference %q", ref)
		}
	}

	return r, nil
}

// String renders the reference in its canonical form
func (r Reference) String() string {
	var b strings.Builder
	if r.Entity != "" {
		b.WriteString(r.Entity + "/")
	}
	if r.Project != "" {
		b.WriteString(r.Project + "/")
	}
	b.WriteString(r.Name)
	if r.Alias != "" {
		b.WriteString(":" + r.Alias)
	}
	return b.String()
}

// IsVersion reports whether the reference pins an explicit version
func (r Reference) IsVersion() bool {
	return r.Version != tracking.LatestVersion
}

// FileDigest returns the hex blake2b-256 digest and the size of a file
func FileDigest(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(h, file)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// FormatVersion renders a version number as vN
func FormatVersion(n int) string {
	return "v" + strconv.Itoa(n)
}

func runFromRecord(rec *tracking.RunRecord) (*Run, error) {
	run := &Run{
		ID:         rec.ID,
		JobType:    rec.JobType,
		Project:    rec.Project,
		Entity:     rec.Entity,
		Status:     rec.Status,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		Error:      rec.Error,
	}
	if rec.Config != "" && rec.Config != "null" {
		if err := json.Unmarshal([]byte(rec.Config), &run.Config); err != nil {
			return nil, err
		}
	}
	return run, nil
}

func fromRecord(rec *tracking.ArtifactRecord) *Artifact {
	a := &Artifact{
		Name:        rec.Name,
		Type:        rec.Type,
		Description: rec.Description,
		Version:     FormatVersion(rec.Version),
		Digest:      rec.Digest,
		Size:        rec.Size,
		FileName:    rec.FileName,
		URI:         rec.URI,
		RunID:       rec.RunID,
		CreatedAt:   rec.CreatedAt,
	}
	if rec.Latest {
		a.Aliases = []string{AliasLatest}
	}
	return a
}
