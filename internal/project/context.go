// Package project detects the root of the directory tree obbywatch should
// monitor and persist state for.
//
// Detection Strategy (Hierarchical Precedence):
//  1. Explicit Context (.obbywatch): highest priority. Respects an existing
//     database/notes layout from a prior run.
//  2. VCS Root (.git/): medium priority fallback, so a fresh checkout is
//     monitored from its top rather than the invocation directory.
//  3. CWD: lowest priority, used if unanchored.
package project

import "github.com/spf13/afero"

// MarkerType represents the type of project marker that was detected.
type MarkerType int

const (
	// MarkerNone indicates no project marker was found.
	MarkerNone MarkerType = iota

	// MarkerObbywatch indicates a .obbywatch file or directory was found (highest priority).
	MarkerObbywatch

	// MarkerGit indicates a .git directory was found.
	MarkerGit
)

// String returns a human-readable name for the marker type.
func (m MarkerType) String() string {
	switch m {
	case MarkerNone:
		return "none"
	case MarkerObbywatch:
		return ".obbywatch"
	case MarkerGit:
		return ".git"
	default:
		return "unknown"
	}
}

// Priority returns the detection priority for this marker type. Higher
// values indicate higher priority.
func (m MarkerType) Priority() int {
	switch m {
	case MarkerObbywatch:
		return 100
	case MarkerGit:
		return 10
	default:
		return 0
	}
}

// Context contains information about the detected project boundary.
type Context struct {
	// RootPath is the absolute path to the detected project root.
	RootPath string

	// MarkerType indicates which marker was used to identify the project root.
	MarkerType MarkerType

	// GitRoot is the absolute path to the nearest .git directory (may differ
	// from RootPath). Empty string if no git repository was found.
	GitRoot string
}

// HasObbywatchDir returns true if the project root was detected by its .obbywatch entry.
func (c *Context) HasObbywatchDir() bool {
	return c.MarkerType == MarkerObbywatch
}

// Detector defines the interface for project detection. This abstraction
// allows for easy testing with mock filesystems.
type Detector interface {
	// Detect finds the project root starting from the given path. It walks
	// up the directory tree looking for project markers.
	Detect(startPath string) (*Context, error)
}

// detector implements Detector using an afero filesystem.
type detector struct {
	fs afero.Fs
}

// NewDetector creates a new Detector using the provided filesystem. Use
// afero.NewOsFs() for real filesystem operations, or afero.NewMemMapFs()
// for testing.
func NewDetector(fs afero.Fs) Detector {
	return &detector{fs: fs}
}

// NewOsDetector creates a Detector using the real operating system filesystem.
func NewOsDetector() Detector {
	return NewDetector(afero.NewOsFs())
}

// Detect is a convenience function that detects the project root from the
// given path using the real operating system filesystem.
func Detect(startPath string) (*Context, error) {
	return NewOsDetector().Detect(startPath)
}
