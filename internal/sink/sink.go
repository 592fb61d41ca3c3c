// Package sink persists scrape sessions and loads them back.
package sink

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/pkg/errors"

	"gopkg.in/yaml.v3"
)

// Structured persists nested sessions as JSON, or as YAML for .yaml/.yml paths.
// Every Persist overwrites the previous output.
type Structured struct {
	Path string
}

// NewStructured creates a structured sink writing to path
func NewStructured(path string) *Structured {
	return &Structured{Path: path}
}

func (s *Structured) isYAML() bool {
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Persist serializes v and atomically replaces the destination
func (s *Structured) Persist(v interface{}) error {
	var (
		data []byte
		err  error
	)
	if s.isYAML() {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.NewStorage(s.Path, "failed to encode session", err)
	}

	if err := writeAtomic(s.Path, data); err != nil {
		return err
	}

	logger.ForSink(s.Path).Debug().Int("bytes", len(data)).Msg("Persisted session")
	return nil
}

// Load decodes the destination into v. Decoded parks are normalized.
func (s *Structured) Load(v interface{}) error {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return errors.NewStorage(s.Path, "failed to read session", err)
	}

	if s.isYAML() {
		err = yaml.Unmarshal(data, v)
	} else {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return errors.NewParsing(s.Path, "failed to decode session", err)
	}
	if parks, ok := v.(*session.Parks); ok {
		parks.Normalize()
	}
	return nil
}

// Exists reports whether a previous session was persisted
func (s *Structured) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Tabular persists flat records as CSV with a fixed header
type Tabular struct {
	Path    string
	Columns []string
}

// NewTabular creates a tabular sink writing columns to path
func NewTabular(path string, columns []string) *Tabular {
	return &Tabular{Path: path, Columns: columns}
}

// Persist writes the header and one row per record, replacing the destination.
// Fields a record lacks are written empty.
func (t *Tabular) Persist(records session.Records) error {
	if len(t.Columns) == 0 {
		return errors.NewValidation(t.Path, "tabular sink needs columns")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return errors.NewStorage(t.Path, "failed to write header", err)
	}

	row := make([]string, len(t.Columns))
	for _, r := range records {
		for i, col := range t.Columns {
			row[i] = r[col]
		}
		if err := w.Write(row); err != nil {
			return errors.NewStorage(t.Path, "failed to write row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.NewStorage(t.Path, "failed to flush rows", err)
	}

	if err := writeAtomic(t.Path, buf.Bytes()); err != nil {
		return err
	}

	logger.ForSink(t.Path).Debug().Int("records", len(records)).Msg("Persisted records")
	return nil
}

// Load reads the records back; the header must match Columns
func (t *Tabular) Load() (session.Records, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, errors.NewStorage(t.Path, "failed to open records", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.NewParsing(t.Path, "invalid CSV", err)
	}
	if len(rows) == 0 {
		return nil, errors.NewParsing(t.Path, "missing CSV header", nil)
	}

	header := rows[0]
	if len(t.Columns) > 0 && strings.Join(header, ",") != strings.Join(t.Columns, ",") {
		return nil, errors.NewValidation(t.Path, "CSV header does not match columns")
	}

	records := make(session.Records, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(session.Record, len(header))
		for i, col := range header {
			record[col] = row[i]
		}
		records = append(records, record)
	}
	return records, nil
}

// writeAtomic writes data to a temporary file next to path and renames it over path
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewStorage(path, "failed to create output directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewStorage(path, "failed to create temporary file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.NewStorage(path, "failed to write temporary file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.NewStorage(path, "failed to sync temporary file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewStorage(path, "failed to close temporary file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewStorage(path, "failed to replace output", err)
	}
	return nil
}
