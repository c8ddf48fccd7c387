package report

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tradedays/internal/config"
)

// CSVWriter writes report tables as CSV files under the reports directory.
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a CSV writer rooted in the configured reports dir.
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{paths: paths, logger: logger}
}

// WriteTable writes headers and records to filename under the reports
// directory, prefixed with a UTF-8 BOM so spreadsheet tools detect the
// encoding.
func (w *CSVWriter) WriteTable(filename string, headers []string, records [][]string) error {
	sw, err := w.CreateStreamWriter(filename, headers)
	if err != nil {
		return err
	}
	for i, record := range records {
		if err := sw.WriteRecord(record); err != nil {
			sw.Close()
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	return sw.Close()
}

// StreamWriter writes CSV records one at a time, for per-day tables that
// should not be buffered whole.
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter opens filename under the reports directory, writes the
// BOM and header row, and returns a streaming writer the caller must Close.
func (w *CSVWriter) CreateStreamWriter(filename string, headers []string) (*StreamWriter, error) {
	fullPath := w.resolvePath(filename)

	w.logger.Debug("writing csv report",
		slog.String("path", fullPath),
		slog.Int("columns", len(headers)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		file.Close()
		return nil, fmt.Errorf("write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("write headers: %w", err)
		}
	}
	return &StreamWriter{file: file, writer: writer}, nil
}

// WriteRecord writes a single record to the stream.
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the underlying file.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func (w *CSVWriter) resolvePath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return w.paths.GetReportPath(filename)
}
