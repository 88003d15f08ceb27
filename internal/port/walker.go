package port

// FileWalker lists files under a root directory.
type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string // absolute
	RelPath string // relative to the walk root, slash separated
	ModTime int64
	Size    int64
}
