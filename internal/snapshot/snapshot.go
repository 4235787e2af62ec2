// Package snapshot records the state of corpus units so that a run can
// prove the analyzer left its ground truth untouched. Tools started with
// fix or rewrite options edit sources in place, which would silently move
// the annotated lines being scored.
package snapshot

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileChange is one difference between two snapshots.
type FileChange struct {
	Path      string
	Action    string // "added", "modified", "deleted"
	SizeDelta int64
}

type fileState struct {
	size int64
	sum  [sha256.Size]byte
}

// State is the recorded state of a set of units.
type State struct {
	files map[string]fileState
}

// Len returns the number of files recorded.
func (s *State) Len() int {
	return len(s.files)
}

// Capture records the size and content hash of every unit
// in paths (slash-separated, relative to root). Units that do not exist
// are left out, so they show up as deleted in a later Diff.
func Capture(root string, paths []string) (*State, error) {
	state := &State{files: make(map[string]fileState, len(paths))}
	for _, rel := range paths {
		fs, err := captureFile(filepath.Join(root, filepath.FromSlash(rel)))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		state.files[rel] = fs
	}
	return state, nil
}

func captureFile(path string) (fileState, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileState{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fileState{}, err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fileState{}, err
	}
	fs := fileState{size: info.Size()}
	copy(fs.sum[:], h.Sum(nil))
	return fs, nil
}

// Diff lists the changes from before to after, sorted by path. A unit
// whose content is unchanged is not reported even if it was touched.
func Diff(before, after *State) []FileChange {
	changes := []FileChange{}

	for path, afterInfo := range after.files {
		beforeInfo, existed := before.files[path]
		if !existed {
			changes = append(changes, FileChange{
				Path:      path,
				Action:    "added",
				SizeDelta: afterInfo.size,
			})
		} else if afterInfo.sum != beforeInfo.sum {
			changes = append(changes, FileChange{
				Path:      path,
				Action:    "modified",
				SizeDelta: afterInfo.size - beforeInfo.size,
			})
		}
	}

	for path, beforeInfo := range before.files {
		if _, exists := after.files[path]; !exists {
			changes = append(changes, FileChange{
				Path:      path,
				Action:    "deleted",
				SizeDelta: -beforeInfo.size,
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// Summary renders changes one per line.
func Summary(changes []FileChange) string {
	if len(changes) == 0 {
		return "No files changed."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d file(s) changed:\n", len(changes)))

	added, modified, deleted := 0, 0, 0
	for _, c := range changes {
		switch c.Action {
		case "added":
			added++
			sb.WriteString(fmt.Sprintf("  + %s (new, %d bytes)\n", c.Path, c.SizeDelta))
		case "modified":
			modified++
			sb.WriteString(fmt.Sprintf("  ~ %s (%+d bytes)\n", c.Path, c.SizeDelta))
		case "deleted":
			deleted++
			sb.WriteString(fmt.Sprintf("  - %s (removed)\n", c.Path))
		}
	}

	sb.WriteString(fmt.Sprintf("Summary: %d added, %d modified, %d deleted", added, modified, deleted))
	return sb.String()
}

// ModifiedError reports corpus units changed while the analyzer ran. The
// expected violations no longer describe the files on disk, so the run
// cannot be scored.
type ModifiedError struct {
	Changes []FileChange
}

func (e *ModifiedError) Error() string {
	return "corpus changed during analysis: " + Summary(e.Changes)
}

// Hint returns a remediation hint.
func (e *ModifiedError) Hint() string {
	return "run the analyzer without fix or rewrite options and restore the corpus from version control"
}

// Verify compares before with the current state of paths and returns a
// *ModifiedError when anything changed.
func Verify(root string, before *State, paths []string) error {
	after, err := Capture(root, paths)
	if err != nil {
		return err
	}
	if changes := Diff(before, after); len(changes) > 0 {
		return &ModifiedError{Changes: changes}
	}
	return nil
}
