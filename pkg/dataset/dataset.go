package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// ErrColumnNotFound is returned when a named column is absent from a table
var ErrColumnNotFound = errors.New("column not found")

// missingTokens are the spellings of a missing value seen in the UCI export
var missingTokens = map[string]bool{
	"":      true,
	"?":     true,
	"NA":    true,
	"NaN":   true,
	"nan":   true,
	"<nil>": true,
}

// IsMissing reports whether a cell value denotes a missing observation.
func IsMissing(v string) bool {
	return missingTokens[clean(v)]
}

// clean strips the whitespace and stray tab characters the UCI file carries.
func clean(v string) string {
	return strings.Trim(v, " \t\r\n")
}

// Table is a string-typed view over a CKD dataframe. Typing is deferred to
// preprocessing so missing-value handling stays in one place.
type Table struct {
	df dataframe.DataFrame
}

// NewTable builds a table from a header and data rows.
func NewTable(header []string, rows [][]string) (*Table, error) {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(header))
		}
		records = append(records, row)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) (*Table, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("dataset has no data rows")
	}
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to build dataframe: %w", df.Err)
	}
	return &Table{df: df}, nil
}

// Load reads a CSV file with a header row, such as the output of the
// preprocess command.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, df.Err)
	}
	if df.Nrow() == 0 {
		return nil, fmt.Errorf("dataset %s has no data rows", path)
	}
	return &Table{df: df}, nil
}

// LoadRaw reads the UCI chronic kidney disease export.
func LoadRaw(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	t, err := ReadRaw(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// headerAliases maps alternative header spellings onto schema names
var headerAliases = map[string]string{
	"classification": models.LabelColumn,
}

// ReadRaw parses the UCI export. A leading metadata line is skipped. When a
// header line is present columns are taken by name: an id or unnamed index
// column is dropped and unknown columns such as class_encoded are kept.
// Without a header the 25 canonical names are assigned by position, dropping
// an extra leading index column.
func ReadRaw(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) > 0 && !looksLikeHeader(records[0]) && !looksLikeData(records[0]) {
		records = records[1:]
	}
	if len(records) > 0 && looksLikeHeader(records[0]) {
		return readNamed(records[0], records[1:])
	}
	return readPositional(records)
}

// readNamed builds a table from rows whose columns are named by header
func readNamed(header []string, records [][]string) (*Table, error) {
	var names []string
	var keep []int
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.ToLower(clean(h))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if name == "" || name == "id" {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q in header", name)
		}
		seen[name] = true
		names = append(names, name)
		keep = append(keep, i)
	}

	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		if isBlank(rec) {
			continue
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("line %d has %d columns, header has %d", i+2, len(rec), len(header))
		}
		row := make([]string, len(keep))
		for j, k := range keep {
			row[j] = normalize(rec[k])
		}
		rows = append(rows, row)
	}
	return NewTable(names, rows)
}

// readPositional assigns the canonical names to headerless rows
func readPositional(records [][]string) (*Table, error) {
	names := models.ColumnNames()
	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		if isBlank(rec) {
			continue
		}
		switch len(rec) {
		case len(names):
		case len(names) + 1:
			rec = rec[1:]
		default:
			return nil, fmt.Errorf("line %d has %d columns, expected %d", i+1, len(rec), len(names))
		}
		row := make([]string, len(rec))
		for j, v := range rec {
			row[j] = normalize(v)
		}
		rows = append(rows, row)
	}
	return NewTable(names, rows)
}

func isBlank(rec []string) bool {
	return len(rec) == 1 && clean(rec[0]) == ""
}

// normalize trims a cell and spells every missing token as NaN
func normalize(v string) string {
	if IsMissing(v) {
		return "NaN"
	}
	return clean(v)
}

// looksLikeHeader reports whether most cells of a row are known column names.
func looksLikeHeader(rec []string) bool {
	known := 0
	for _, v := range rec {
		v = strings.ToLower(clean(v))
		if alias, ok := headerAliases[v]; ok {
			v = alias
		}
		if _, ok := models.LookupColumn(v); ok || v == "id" {
			known++
		}
	}
	return known*2 >= len(rec)
}

// looksLikeData reports whether a row already has the width of a record and
// starts with a number, i.e. there is neither a metadata nor a header line.
func looksLikeData(rec []string) bool {
	n := len(models.Columns)
	if len(rec) != n && len(rec) != n+1 {
		return false
	}
	_, err := strconv.ParseFloat(clean(rec[0]), 64)
	return err == nil
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	return t.df.Names()
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.df.Nrow()
}

// Has reports whether the table contains column name.
func (t *Table) Has(name string) bool {
	for _, n := range t.df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Column returns the cleaned string values of a column.
func (t *Table) Column(name string) ([]string, error) {
	if !t.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	values := t.df.Col(name).Records()
	for i, v := range values {
		values[i] = clean(v)
	}
	return values, nil
}

// Kind returns the schema kind of a column. Columns outside the CKD schema
// are numeric when every present value parses as a float.
func (t *Table) Kind(name string) (models.ColumnKind, error) {
	if c, ok := models.LookupColumn(name); ok {
		return c.Kind, nil
	}
	values, err := t.Column(name)
	if err != nil {
		return "", err
	}
	for _, v := range values {
		if IsMissing(v) {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return models.ColumnCategorical, nil
		}
	}
	return models.ColumnNumeric, nil
}

// Subset returns the rows at the given indices.
func (t *Table) Subset(indices []int) (*Table, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty subset")
	}
	df := t.df.Subset(indices)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to subset dataset: %w", df.Err)
	}
	return &Table{df: df}, nil
}

// WithColumn returns a copy of the table with column name set to values,
// replacing an existing column of the same name.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if len(values) != t.Len() {
		return nil, fmt.Errorf("column %s has %d values, table has %d rows", name, len(values), t.Len())
	}
	df := t.df.Mutate(series.New(values, series.String, name))
	if df.Err != nil {
		return nil, fmt.Errorf("failed to set column %s: %w", name, df.Err)
	}
	return &Table{df: df}, nil
}

// WithFloatColumn is WithColumn for numeric values.
func (t *Table) WithFloatColumn(name string, values []float64) (*Table, error) {
	formatted := make([]string, len(values))
	for i, v := range values {
		formatted[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return t.WithColumn(name, formatted)
}

// Write encodes the table as CSV with a header row.
func (t *Table) Write(w io.Writer) error {
	if err := t.df.WriteCSV(w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteFile writes the table to path, creating parent directories.
func (t *Table) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
