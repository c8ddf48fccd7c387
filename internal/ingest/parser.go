package ingest

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"tradedays/internal/config"
	"tradedays/internal/errors"
	"tradedays/pkg/contracts/domain"
)

// Parser reads a raw delimited export file and produces a normalized bar
// series. The delimiter, column order, timestamp layout and timezones all
// come from configuration because the platform's export settings vary.
type Parser struct {
	cfg    *config.Config
	logger *slog.Logger

	sourceLoc    *time.Location
	referenceLoc *time.Location
}

// NewParser creates a parser for the configured input format.
func NewParser(cfg *config.Config, logger *slog.Logger) (*Parser, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sourceLoc, err := time.LoadLocation(cfg.Input.SourceTimezone)
	if err != nil {
		return nil, errors.NewConfigError("load source timezone", err)
	}
	referenceLoc, err := time.LoadLocation(cfg.Input.ReferenceTimezone)
	if err != nil {
		return nil, errors.NewConfigError("load reference timezone", err)
	}

	return &Parser{
		cfg:          cfg,
		logger:       logger,
		sourceLoc:    sourceLoc,
		referenceLoc: referenceLoc,
	}, nil
}

// ParseFile reads and validates one export file. It returns a fatal
// validation error enumerating the first violations when the file is
// unreadable, empty, or malformed; data quality findings that do not block
// analysis (duplicates, gaps) are collected into the series diagnostics.
func (p *Parser) ParseFile(ctx context.Context, path string) (*domain.Series, error) {
	p.logger.InfoContext(ctx, "parsing export file",
		slog.String("path", path),
		slog.String("delimiter", p.cfg.Input.Delimiter),
		slog.String("source_tz", p.cfg.Input.SourceTimezone),
		slog.String("reference_tz", p.cfg.Input.ReferenceTimezone))

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewValidationError("cannot open export file", err).WithContext("path", path)
	}
	defer file.Close()

	cols, err := p.columnIndices()
	if err != nil {
		return nil, err
	}

	v := newViolations(p.cfg.Validation.MaxErrors)
	var bars []domain.Bar

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// Some exports carry a header line naming the columns; skip it.
		if lineNo == 1 && p.isHeaderLine(line) {
			p.logger.DebugContext(ctx, "skipping header line")
			continue
		}

		bar, ok := p.parseLine(line, lineNo, cols, v)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewValidationError("read export file", err).WithContext("path", path)
	}

	if len(bars) == 0 && !v.any() {
		return nil, errors.NewValidationError("export file contains no data rows", nil).WithContext("path", path)
	}

	series := &domain.Series{
		SourcePath:  path,
		SourceToken: config.SourceToken(path),
		Timezone:    p.cfg.Input.ReferenceTimezone,
	}
	series.Bars = p.normalize(bars, &series.Diagnostics, v)

	if v.any() {
		return nil, v.toError(path)
	}

	p.logger.InfoContext(ctx, "parsed export file",
		slog.Int("bars", len(series.Bars)),
		slog.Int("days", len(series.Dates())),
		slog.Int("duplicates_dropped", series.Diagnostics.DuplicatesDropped),
		slog.Int("gaps_detected", series.Diagnostics.GapsDetected))

	return series, nil
}

// columnIndices maps the configured column names to their positions.
func (p *Parser) columnIndices() (map[string]int, error) {
	cols := make(map[string]int, len(p.cfg.Input.Columns))
	for i, name := range p.cfg.Input.Columns {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["datetime"]; !ok {
		return nil, errors.NewConfigError("input columns must include datetime", nil)
	}
	return cols, nil
}

// isHeaderLine reports whether the line repeats the configured column names
// instead of carrying data.
func (p *Parser) isHeaderLine(line string) bool {
	fields := strings.Split(line, p.cfg.Input.Delimiter)
	matched := 0
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		for _, col := range p.cfg.Input.Columns {
			if f == strings.ToLower(col) {
				matched++
				break
			}
		}
	}
	return matched >= 2
}

// parseLine converts one data row into a bar, recording violations for
// malformed or out-of-range fields. A row with violations is skipped.
func (p *Parser) parseLine(line string, lineNo int, cols map[string]int, v *violations) (domain.Bar, bool) {
	fields := strings.Split(line, p.cfg.Input.Delimiter)
	if len(fields) != len(p.cfg.Input.Columns) {
		v.addf("line %d: expected %d fields separated by %q, got %d",
			lineNo, len(p.cfg.Input.Columns), p.cfg.Input.Delimiter, len(fields))
		return domain.Bar{}, false
	}

	getField := func(name string) (string, bool) {
		idx, ok := cols[name]
		if !ok {
			return "", false
		}
		return strings.TrimSpace(fields[idx]), true
	}

	raw, _ := getField("datetime")
	ts, err := time.ParseInLocation(p.cfg.Input.TimeLayout, raw, p.sourceLoc)
	if err != nil {
		v.addf("line %d: invalid timestamp %q", lineNo, raw)
		return domain.Bar{}, false
	}

	bar := domain.Bar{Time: ts.In(p.referenceLoc)}
	ok := true

	parsePrice := func(name string, dst *float64) {
		raw, present := getField(name)
		if !present {
			return
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			v.addf("line %d: invalid %s %q", lineNo, name, raw)
			ok = false
			return
		}
		*dst = val
	}
	parsePrice("open", &bar.Open)
	parsePrice("high", &bar.High)
	parsePrice("low", &bar.Low)
	parsePrice("close", &bar.Close)

	if raw, present := getField("volume"); present {
		vol, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			v.addf("line %d: invalid volume %q", lineNo, raw)
			ok = false
		} else {
			bar.Volume = vol
		}
	}
	if !ok {
		return domain.Bar{}, false
	}

	// Single-column exports (last price only) map the close onto OHLC.
	if _, hasOpen := cols["open"]; !hasOpen {
		bar.Open, bar.High, bar.Low = bar.Close, bar.Close, bar.Close
	}

	return bar, p.validateBar(bar, lineNo, v)
}

// validateBar applies the configured range and consistency checks.
func (p *Parser) validateBar(bar domain.Bar, lineNo int, v *violations) bool {
	val := p.cfg.Validation
	ok := true

	for _, price := range []struct {
		name  string
		value float64
	}{
		{"open", bar.Open}, {"high", bar.High}, {"low", bar.Low}, {"close", bar.Close},
	} {
		if price.value < 0 {
			v.addf("line %d: negative %s price %.4f", lineNo, price.name, price.value)
			ok = false
			continue
		}
		if price.value < val.PriceMin {
			v.addf("line %d: %s price %.4f below minimum %.4f", lineNo, price.name, price.value, val.PriceMin)
			ok = false
		}
		if val.PriceMax > 0 && price.value > val.PriceMax {
			v.addf("line %d: %s price %.4f above maximum %.4f", lineNo, price.name, price.value, val.PriceMax)
			ok = false
		}
	}

	if bar.Volume < 0 {
		v.addf("line %d: negative volume %d", lineNo, bar.Volume)
		ok = false
	}

	if val.CheckHighLow && bar.High < bar.Low {
		v.addf("line %d: high %.4f below low %.4f", lineNo, bar.High, bar.Low)
		ok = false
	}
	if val.CheckOHLC && ok {
		if bar.Open > bar.High || bar.Open < bar.Low {
			v.addf("line %d: open %.4f outside high/low range", lineNo, bar.Open)
			ok = false
		}
		if bar.Close > bar.High || bar.Close < bar.Low {
			v.addf("line %d: close %.4f outside high/low range", lineNo, bar.Close)
			ok = false
		}
	}

	return ok
}

// violations accumulates fatal validation findings, keeping detail for the
// first maxDetail and counting the rest.
type violations struct {
	maxDetail int
	total     int
	detail    []string
}

func newViolations(maxDetail int) *violations {
	if maxDetail <= 0 {
		maxDetail = 20
	}
	return &violations{maxDetail: maxDetail}
}

func (v *violations) addf(format string, args ...any) {
	v.total++
	if len(v.detail) < v.maxDetail {
		v.detail = append(v.detail, fmt.Sprintf(format, args...))
	}
}

func (v *violations) any() bool { return v.total > 0 }

func (v *violations) toError(path string) error {
	msg := fmt.Sprintf("input validation failed with %d violation(s):\n  %s",
		v.total, strings.Join(v.detail, "\n  "))
	if v.total > len(v.detail) {
		msg += fmt.Sprintf("\n  ... and %d more", v.total-len(v.detail))
	}
	return errors.NewValidationError(msg, nil).WithContext("path", path).WithContext("violations", v.total)
}
