package files

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tradedays/internal/config"
	"tradedays/internal/errors"
)

// exportExtensions lists the file extensions platform exports use.
var exportExtensions = map[string]bool{
	".txt": true,
	".csv": true,
}

// FileInfo describes one discovered export file.
type FileInfo struct {
	Path    string
	Name    string
	Token   string
	Size    int64
	ModTime time.Time
}

// Discovery lists raw export files. Relative directories resolve against the
// base path so callers can pass configured paths unchanged.
type Discovery struct {
	basePath string
}

// NewDiscovery creates a discovery instance rooted at basePath.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// FindExports lists the export files in dir, newest first.
func (d *Discovery) FindExports(dir string) ([]FileInfo, error) {
	fullPath := dir
	if !filepath.IsAbs(dir) {
		fullPath = filepath.Join(d.basePath, dir)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, errors.NewStorageError("read export directory", err).WithContext("path", fullPath)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !exportExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, name),
			Name:    name,
			Token:   config.SourceToken(name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

// LatestExport returns the most recently modified export in dir.
func (d *Discovery) LatestExport(dir string) (FileInfo, error) {
	files, err := d.FindExports(dir)
	if err != nil {
		return FileInfo{}, err
	}
	if len(files) == 0 {
		return FileInfo{}, errors.NewNotFoundError("export files").WithContext("dir", dir)
	}
	return files[0], nil
}
