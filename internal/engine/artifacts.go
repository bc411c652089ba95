package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Artifact roles. Each capture produces one file per role.
const (
	RoleBase = "base"
	RoleTest = "test"
	RoleDiff = "diff"
)

// DefaultArtifactDir is <tmp>/twinshot.
func DefaultArtifactDir() string {
	return filepath.Join(os.TempDir(), "twinshot")
}

// Artifacts derives capture file paths under a single directory.
//
// File names are <name>-<role>.png. Because the name and role fully
// determine the path, concurrent harnesses sharing a directory never
// collide as long as their capture names differ.
type Artifacts struct {
	dir string
}

// NewArtifacts roots artifact paths at dir (DefaultArtifactDir if empty).
func NewArtifacts(dir string) Artifacts {
	if dir == "" {
		dir = DefaultArtifactDir()
	}
	return Artifacts{dir: dir}
}

// Dir returns the artifact directory.
func (a Artifacts) Dir() string {
	return a.dir
}

// Ensure creates the artifact directory if it does not exist.
// It is safe to call before every write.
func (a Artifacts) Ensure() error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	return nil
}

// Path returns the artifact path for a capture name and role.
func (a Artifacts) Path(name, role string) string {
	return filepath.Join(a.dir, fileStem(name)+"-"+role+".png")
}

// ForPass returns the artifact a screenshot writes on pass.
func (a Artifacts) ForPass(name string, pass Pass) string {
	return a.Path(name, pass.String())
}

// fileStem makes a capture name safe to use as a file name.
// The name is NFC-normalized so visually identical names map to one file,
// and separators are replaced so a name cannot leave the directory.
func fileStem(name string) string {
	stem := norm.NFC.String(name)
	stem = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, stem)
	if stem == "" || stem == "." || stem == ".." {
		stem = "_" + stem
	}
	return stem
}
