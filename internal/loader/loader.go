// Package loader turns a raw station export into a typed, date-ordered
// observation table plus its metadata block.
package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/station-quality-service/internal/config"
	"github.com/couchcryptid/station-quality-service/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader parses station files according to an analysis rule set. It holds no
// per-file state and is safe for concurrent use.
type Loader struct {
	cfg    config.Analysis
	logger *slog.Logger
}

// New creates a Loader.
func New(cfg config.Analysis, logger *slog.Logger) *Loader {
	return &Loader{cfg: cfg, logger: logger}
}

// LoadFile checks the file size against the ceiling, then loads it.
func (l *Loader) LoadFile(ctx context.Context, path string, progress ProgressObserver) (*domain.Table, *domain.Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("stat station file: %w", err)
	}
	if info.Size() > l.cfg.MaxFileSizeBytes {
		return nil, nil, &SizeLimitError{Size: info.Size(), Limit: l.cfg.MaxFileSizeBytes}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open station file: %w", err)
	}
	defer f.Close()

	return l.Load(ctx, f, progress)
}

// Load reads at most the size ceiling plus one byte from r and parses it.
// Input over the ceiling fails with *SizeLimitError before parsing starts.
func (l *Loader) Load(ctx context.Context, r io.Reader, progress ProgressObserver) (*domain.Table, *domain.Metadata, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.cfg.MaxFileSizeBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read station file: %w", err)
	}
	return l.Parse(ctx, data, progress)
}

// Parse converts raw file bytes into a table sorted by date and the metadata
// block. Fields that fail numeric or date conversion become nulls; only an
// oversized input or an unrecoverable header/data section is an error.
func (l *Loader) Parse(ctx context.Context, data []byte, progress ProgressObserver) (*domain.Table, *domain.Metadata, error) {
	if int64(len(data)) > l.cfg.MaxFileSizeBytes {
		return nil, nil, &SizeLimitError{Size: int64(len(data)), Limit: l.cfg.MaxFileSizeBytes}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if progress == nil {
		progress = NopProgress{}
	}

	lines := splitLines(bytes.TrimPrefix(data, utf8BOM))
	meta := l.extractMetadata(lines)

	headerLine, found := l.findHeader(lines)
	if headerLine >= len(lines) {
		return nil, nil, &FormatError{Line: headerLine, Reason: "header line is past the end of the file"}
	}
	progress.OnProgress(ProgressHeader)

	header, records, err := l.readRecords(lines, headerLine)
	if err != nil {
		return nil, nil, err
	}
	progress.OnProgress(ProgressParsed)

	raw := buildRawColumns(header, records, l.cfg.IsNullToken)
	raw = dropEmptyColumns(raw)
	if len(raw) == 0 {
		return nil, nil, &FormatError{Line: headerLine, Reason: "every column is empty"}
	}

	dateIdx := l.dateColumnIndex(raw)
	dates, badDates := l.parseDates(raw[dateIdx].cells)

	columns := make([]domain.Column, 0, len(raw)-1)
	coerced := badDates
	for i, rc := range raw {
		if i == dateIdx {
			continue
		}
		col, failed := l.parseNumbers(rc)
		if failed > 0 {
			l.logger.Debug("numeric coercion produced nulls", "column", rc.name, "fields", failed)
		}
		coerced += failed
		columns = append(columns, col)
	}
	progress.OnProgress(ProgressCoerced)

	table, err := domain.NewTable(dates, columns)
	if err != nil {
		return nil, nil, &FormatError{Line: headerLine, Reason: "build table", Err: err}
	}
	table = table.SortByDate()
	progress.OnProgress(ProgressSorted)

	l.logger.Debug("station file parsed",
		"header_line", headerLine,
		"header_found", found,
		"rows", table.Len(),
		"columns", table.ColumnCount(),
		"metadata_keys", meta.Len(),
		"coerced_fields", coerced,
		"unparsed_dates", badDates,
	)
	return table, meta, nil
}

func splitLines(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// extractMetadata reads "key: value" pairs from the leading metadata block.
// Lines without a colon are skipped.
func (l *Loader) extractMetadata(lines []string) *domain.Metadata {
	var entries []domain.MetadataEntry
	for i := 0; i < l.cfg.MetadataLines && i < len(lines); i++ {
		key, value, ok := strings.Cut(strings.TrimSpace(lines[i]), ":")
		if !ok {
			continue
		}
		entries = append(entries, domain.MetadataEntry{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
	return domain.NewMetadata(entries...)
}

// findHeader returns the first line containing the header marker, or the
// configured fallback line when no line does.
func (l *Loader) findHeader(lines []string) (int, bool) {
	for i, line := range lines {
		if strings.Contains(line, l.cfg.HeaderMarker) {
			return i, true
		}
	}
	return l.cfg.HeaderLine, false
}

func (l *Loader) readRecords(lines []string, headerLine int) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(strings.Join(lines[headerLine:], "\n")))
	r.Comma, _ = utf8.DecodeRuneInString(l.cfg.Delimiter)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		line := headerLine
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			line += perr.Line - 1
		}
		return nil, nil, &FormatError{Line: line, Reason: "malformed delimited record", Err: err}
	}
	if len(records) == 0 {
		return nil, nil, &FormatError{Line: headerLine, Reason: "no header row"}
	}
	header := records[0]
	if !hasName(header) {
		return nil, nil, &FormatError{Line: headerLine, Reason: "header row has no column names"}
	}
	if len(records) < 2 {
		return nil, nil, &FormatError{Line: headerLine, Reason: "no data rows after the header"}
	}
	return header, records[1:], nil
}

func hasName(header []string) bool {
	for _, h := range header {
		if strings.TrimSpace(h) != "" {
			return true
		}
	}
	return false
}

// rawColumn is one column of trimmed text cells; a nil cell is a null.
type rawColumn struct {
	name  string
	cells []*string
}

// buildRawColumns transposes records into named columns. Unnamed columns get
// positional names and repeated names get the lowest ".N" suffix not already
// used by another header, so every name is unique. Short records are padded
// with nulls; fields beyond the header are ignored.
func buildRawColumns(header []string, records [][]string, isNull func(string) bool) []rawColumn {
	names := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	for j, h := range header {
		names[j] = strings.TrimSpace(h)
		if names[j] == "" {
			names[j] = fmt.Sprintf("Unnamed: %d", j)
		}
		taken[names[j]] = true
	}

	cols := make([]rawColumn, len(header))
	used := make(map[string]bool, len(header))
	suffix := make(map[string]int)
	for j, name := range names {
		if used[name] {
			base := name
			for n := suffix[base] + 1; ; n++ {
				candidate := fmt.Sprintf("%s.%d", base, n)
				if !used[candidate] && !taken[candidate] {
					name = candidate
					suffix[base] = n
					break
				}
			}
		}
		used[name] = true
		cols[j] = rawColumn{name: name, cells: make([]*string, len(records))}
	}
	for i, rec := range records {
		for j := range cols {
			if j >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[j])
			if isNull(v) {
				continue
			}
			cols[j].cells[i] = &v
		}
	}
	return cols
}

func dropEmptyColumns(cols []rawColumn) []rawColumn {
	kept := cols[:0:0]
	for _, c := range cols {
		for _, cell := range c.cells {
			if cell != nil {
				kept = append(kept, c)
				break
			}
		}
	}
	return kept
}

// dateColumnIndex picks the column labelled with the header marker, or one
// already carrying the canonical date name, falling back to the first column.
func (l *Loader) dateColumnIndex(cols []rawColumn) int {
	for i, c := range cols {
		if c.name == l.cfg.HeaderMarker || c.name == domain.DateColumn {
			return i
		}
	}
	return 0
}

func (l *Loader) parseDates(cells []*string) ([]domain.NullTime, int) {
	dates := make([]domain.NullTime, len(cells))
	failed := 0
	for i, cell := range cells {
		if cell == nil {
			continue
		}
		t, err := time.Parse(l.cfg.DateLayout, *cell)
		if err != nil {
			failed++
			continue
		}
		dates[i] = domain.Date(t)
	}
	return dates, failed
}

func (l *Loader) parseNumbers(rc rawColumn) (domain.Column, int) {
	values := make([]domain.NullFloat, len(rc.cells))
	failed := 0
	for i, cell := range rc.cells {
		if cell == nil {
			continue
		}
		v, ok := ParseNumber(*cell, l.cfg.DecimalSeparator)
		if !ok {
			failed++
			continue
		}
		values[i] = domain.Float(v)
	}
	return domain.Column{Name: rc.name, Values: values}, failed
}

// ParseNumber converts a locale-formatted field. A field starting with the
// decimal separator has lost its leading zero and is repaired (",5" is 0.5).
// Non-finite results are rejected.
func ParseNumber(field, decimalSep string) (float64, bool) {
	s := strings.TrimSpace(field)
	if s == "" {
		return 0, false
	}
	if strings.HasPrefix(s, decimalSep) {
		s = "0" + s
	}
	if decimalSep != "." {
		s = strings.Replace(s, decimalSep, ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
