package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"time"
	"unsafe"
)

// DateColumn is the canonical name of the date column after load.
const DateColumn = "Data"

// DateLayout is the calendar layout used for dates in files and JSON.
const DateLayout = "2006-01-02"

// NullFloat is a nullable observation value.
type NullFloat struct {
	Float float64
	Valid bool
}

// Float returns a non-null value.
func Float(v float64) NullFloat { return NullFloat{Float: v, Valid: true} }

// MarshalJSON encodes null values as JSON null.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, n.Float, 'g', -1, 64), nil
}

// NullTime is a nullable calendar date.
type NullTime struct {
	Time  time.Time
	Valid bool
}

// Date returns a non-null date truncated to midnight UTC.
func Date(t time.Time) NullTime {
	y, m, d := t.Date()
	return NullTime{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

// MarshalJSON encodes the date as "YYYY-MM-DD" or null.
func (n NullTime) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Time.Format(DateLayout))
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(civilDay(b) - civilDay(a))
}

func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// DateRange is an inclusive span of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days covered, counting both ends.
func (r DateRange) Days() int {
	return DaysBetween(r.Start, r.End) + 1
}

// MarshalJSON encodes the range as {"start":"YYYY-MM-DD","end":"YYYY-MM-DD"}.
func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}{r.Start.Format(DateLayout), r.End.Format(DateLayout)})
}

// Column is a named series of nullable values, one per table row.
type Column struct {
	Name   string
	Values []NullFloat
}

// Len returns the number of rows.
func (c Column) Len() int { return len(c.Values) }

// NullCount returns the number of null values.
func (c Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if !v.Valid {
			n++
		}
	}
	return n
}

// NullMask reports, per row, whether the value is null.
func (c Column) NullMask() []bool {
	mask := make([]bool, len(c.Values))
	for i, v := range c.Values {
		mask[i] = !v.Valid
	}
	return mask
}

// NonNull returns the non-null values and their row indices, in row order.
func (c Column) NonNull() (rows []int, values []float64) {
	rows = make([]int, 0, len(c.Values))
	values = make([]float64, 0, len(c.Values))
	for i, v := range c.Values {
		if v.Valid {
			rows = append(rows, i)
			values = append(values, v.Float)
		}
	}
	return rows, values
}

func (c Column) clone() Column {
	return Column{Name: c.Name, Values: slices.Clone(c.Values)}
}

// Table is the time-ordered observation table: a date column plus variable
// columns addressed by name.
type Table struct {
	dates   []NullTime
	columns []Column
	index   map[string]int
	order   []int // source row position of each row
}

// NewTable builds a table from a date series and variable columns of equal length.
func NewTable(dates []NullTime, columns []Column) (*Table, error) {
	t := &Table{
		dates:   slices.Clone(dates),
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
		order:   make([]int, len(dates)),
	}
	for i := range t.order {
		t.order[i] = i
	}
	for _, c := range columns {
		if c.Name == DateColumn {
			return nil, fmt.Errorf("column %q is reserved for dates", DateColumn)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if len(c.Values) != len(dates) {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, len(c.Values), len(dates))
		}
		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, c.clone())
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.dates) }

// ColumnCount returns the number of columns including the date column.
func (t *Table) ColumnCount() int { return len(t.columns) + 1 }

// Variables returns the variable column names in column order.
func (t *Table) Variables() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// HasVariable reports whether a variable column exists.
func (t *Table) HasVariable(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named variable column. The returned values must be
// treated as read-only.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// Date returns the date of row i.
func (t *Table) Date(i int) NullTime { return t.dates[i] }

// Dates returns a copy of the date column.
func (t *Table) Dates() []NullTime { return slices.Clone(t.dates) }

// SourceRow returns the position row i had in the source file's data section.
func (t *Table) SourceRow(i int) int { return t.order[i] }

// SourceDates returns the date column in source order, before sorting.
func (t *Table) SourceDates() []NullTime {
	out := make([]NullTime, len(t.dates))
	for i, pos := range t.order {
		out[pos] = t.dates[i]
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{
		dates:   slices.Clone(t.dates),
		columns: make([]Column, len(t.columns)),
		index:   make(map[string]int, len(t.index)),
		order:   slices.Clone(t.order),
	}
	for i, col := range t.columns {
		c.columns[i] = col.clone()
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	return c
}

// SortByDate returns a copy ordered by ascending date. The sort is stable and
// null dates go last, keeping their relative order.
func (t *Table) SortByDate() *Table {
	perm := make([]int, len(t.dates))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		da, db := t.dates[perm[a]], t.dates[perm[b]]
		if !da.Valid {
			return false
		}
		if !db.Valid {
			return true
		}
		return da.Time.Before(db.Time)
	})

	s := &Table{
		dates:   make([]NullTime, len(perm)),
		columns: make([]Column, len(t.columns)),
		index:   make(map[string]int, len(t.index)),
		order:   make([]int, len(perm)),
	}
	for i, p := range perm {
		s.dates[i] = t.dates[p]
		s.order[i] = t.order[p]
	}
	for ci, col := range t.columns {
		values := make([]NullFloat, len(perm))
		for i, p := range perm {
			values[i] = col.Values[p]
		}
		s.columns[ci] = Column{Name: col.Name, Values: values}
	}
	for k, v := range t.index {
		s.index[k] = v
	}
	return s
}

// DateRange returns the earliest and latest non-null dates.
func (t *Table) DateRange() (DateRange, bool) {
	var r DateRange
	found := false
	for _, d := range t.dates {
		if !d.Valid {
			continue
		}
		if !found || d.Time.Before(r.Start) {
			r.Start = d.Time
		}
		if !found || d.Time.After(r.End) {
			r.End = d.Time
		}
		found = true
	}
	return r, found
}

// Equal reports whether two tables hold the same rows, columns, and source order.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !slices.Equal(t.order, o.order) || len(t.columns) != len(o.columns) {
		return false
	}
	if !slices.EqualFunc(t.dates, o.dates, func(a, b NullTime) bool {
		return a.Valid == b.Valid && a.Time.Equal(b.Time)
	}) {
		return false
	}
	for i := range t.columns {
		if t.columns[i].Name != o.columns[i].Name || !slices.Equal(t.columns[i].Values, o.columns[i].Values) {
			return false
		}
	}
	return true
}

// TableSummary describes a loaded table for presentation.
type TableSummary struct {
	RowCount     int        `json:"row_count"`
	ColumnCount  int        `json:"column_count"`
	DateRange    *DateRange `json:"date_range"`
	ExpectedDays int        `json:"expected_days"`
	ActualDays   int        `json:"actual_days"`
	Variables    []string   `json:"variables"`
	MemoryBytes  int64      `json:"memory_bytes"`
}

// Summary returns row and column counts, the date range, expected versus
// actual day counts, and an approximate in-memory size. A mismatch between
// ExpectedDays and ActualDays means the series has gaps or duplicates.
func (t *Table) Summary() TableSummary {
	s := TableSummary{
		RowCount:    t.Len(),
		ColumnCount: t.ColumnCount(),
		ActualDays:  t.Len(),
		Variables:   t.Variables(),
		MemoryBytes: t.memoryBytes(),
	}
	if r, ok := t.DateRange(); ok {
		s.DateRange = &r
		s.ExpectedDays = r.Days()
	}
	return s
}

func (t *Table) memoryBytes() int64 {
	rows := int64(len(t.dates))
	n := rows * int64(unsafe.Sizeof(NullTime{})+unsafe.Sizeof(int(0)))
	for _, c := range t.columns {
		n += int64(len(c.Name)) + rows*int64(unsafe.Sizeof(NullFloat{}))
	}
	return n
}
