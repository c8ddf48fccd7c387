package config

import (
	"os"
	"path/filepath"
	"strings"

	"tradedays/internal/errors"
)

// Paths resolves every directory the pipeline touches from a single base
// directory. All components receive their paths through this type instead of
// assembling them ad hoc.
type Paths struct {
	BaseDir    string
	DataDir    string
	CacheDir   string
	ReportsDir string
	LogsDir    string
}

// NewPaths resolves the configured directories against baseDir. Relative
// configured paths are joined to baseDir; absolute ones are kept.
func NewPaths(baseDir string, cfg PathsConfig) *Paths {
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	return &Paths{
		BaseDir:    baseDir,
		DataDir:    resolve(cfg.DataDir),
		CacheDir:   resolve(cfg.CacheDir),
		ReportsDir: resolve(cfg.ReportsDir),
		LogsDir:    resolve(cfg.LogsDir),
	}
}

// EnsureDirectories creates every managed directory that does not yet exist.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.CacheDir, p.ReportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.NewStorageError("create directory", err).WithContext("path", dir)
		}
	}
	return nil
}

// GetCachePath returns the cache file path for a source file: the source
// filename with its extension replaced by the columnar cache suffix.
func (p *Paths) GetCachePath(sourcePath string) string {
	return filepath.Join(p.CacheDir, SourceToken(sourcePath)+".norm.parquet")
}

// GetReportPath returns the path of a report artifact.
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns the path of a log file.
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// SourceToken derives the artifact naming token from a source file path:
// the base name without extension, with spaces collapsed to underscores.
// Every artifact of a run embeds this token so runs over different sources
// never overwrite each other.
func SourceToken(sourcePath string) string {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return strings.Join(strings.Fields(stem), "_")
}
