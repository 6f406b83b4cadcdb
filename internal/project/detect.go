package project

import (
	"path/filepath"
)

// markerFiles defines the files/directories to check for project detection.
var markerFiles = []struct {
	name       string
	markerType MarkerType
}{
	{".obbywatch", MarkerObbywatch},
	{".git", MarkerGit},
}

// Detect implements the Detector interface. It walks up the directory tree
// from startPath, looking for project markers.
//
// Constraint: read-only detection using stat calls only. No files are
// created.
func (d *detector) Detect(startPath string) (*Context, error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return nil, err
	}

	var gitRoot string
	current := absPath
	for {
		marker := d.findMarkerAt(current)

		if marker == MarkerObbywatch {
			return &Context{
				RootPath:   current,
				MarkerType: MarkerObbywatch,
				GitRoot:    gitRoot,
			}, nil
		}

		if marker == MarkerGit && gitRoot == "" {
			gitRoot = current
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	if gitRoot != "" {
		return &Context{
			RootPath:   gitRoot,
			MarkerType: MarkerGit,
			GitRoot:    gitRoot,
		}, nil
	}

	return &Context{
		RootPath:   absPath,
		MarkerType: MarkerNone,
	}, nil
}

// findMarkerAt checks for project markers at the given directory. Returns
// the highest priority marker found, or MarkerNone if none found.
func (d *detector) findMarkerAt(dir string) MarkerType {
	for _, m := range markerFiles {
		path := filepath.Join(dir, m.name)
		if exists, _ := d.exists(path); exists {
			return m.markerType
		}
	}
	return MarkerNone
}

// exists checks if a file or directory exists using stat only.
func (d *detector) exists(path string) (bool, error) {
	_, err := d.fs.Stat(path)
	return err == nil, nil
}
