package fs

import (
	"io/fs"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"palate/internal/port"
)

// Walker lists files matching include globs and not matching exclude globs.
// Patterns are doublestar globs against slash-separated paths relative to the root.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns matching regular files in lexical order.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && w.matchAny(w.excludes, relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if w.matchAny(w.includes, relPath) && !w.matchAny(w.excludes, relPath) {
			info, err := d.Info()
			if err != nil {
				return err
			}
			files = append(files, port.FileInfo{
				Path:    path,
				RelPath: relPath,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
		}
		return nil
	})

	return files, err
}

func (w *Walker) matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}
