package snapshot

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"ticketstar/internal/common"
	"ticketstar/pkg/errors"
)

// Extension of every artifact.
const Extension = ".csv"

// Path returns the artifact path of a table inside dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+Extension)
}

// Writer publishes tables into a directory. Each table is written to a
// temporary file next to its destination. Destinations are only touched once
// every temporary file has been written; prior artifacts are moved aside and
// restored if any replacement fails, so the directory holds either the
// previous set or the complete new one.
type Writer struct {
	Dir string
}

// NewWriter returns a writer publishing into dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// Publish writes all tables as <dir>/<name>.csv, replacing prior artifacts.
func (w *Writer) Publish(tables []Table) error {
	if err := os.MkdirAll(w.Dir, common.DirPermissionNormal); err != nil {
		return errors.FileError(w.Dir, err)
	}

	targets := make([]target, len(tables))
	for i, t := range tables {
		targets[i] = target{path: Path(w.Dir, t.Name), table: t}
	}
	return publish(targets)
}

// WriteFile atomically writes a single table to path.
func WriteFile(path string, t Table) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, common.DirPermissionNormal); err != nil {
			return errors.FileError(dir, err)
		}
	}
	return publish([]target{{path: path, table: t}})
}

// rename is swapped in tests to fail a replacement midway.
var rename = os.Rename

type target struct {
	path   string
	table  Table
	temp   string
	backup string
	placed bool
}

func publish(targets []target) (err error) {
	defer func() {
		if err == nil {
			return
		}
		rollback(targets)
		for _, t := range targets {
			if t.temp != "" {
				os.Remove(t.temp)
			}
		}
	}()

	for i := range targets {
		if err := checkReplaceable(targets[i].path); err != nil {
			return err
		}
	}

	for i := range targets {
		temp, err := writeTemp(targets[i].path, targets[i].table)
		if err != nil {
			return err
		}
		targets[i].temp = temp
	}

	for i := range targets {
		t := &targets[i]
		if _, err := os.Lstat(t.path); err == nil {
			backup := t.temp + ".prev"
			if err := rename(t.path, backup); err != nil {
				return errors.FileError(t.path, err)
			}
			t.backup = backup
		}
	}

	for i := range targets {
		t := &targets[i]
		if err := rename(t.temp, t.path); err != nil {
			return errors.FileError(t.path, err)
		}
		t.temp = ""
		t.placed = true
	}

	for _, t := range targets {
		if t.backup != "" {
			os.Remove(t.backup)
		}
	}
	return nil
}

// checkReplaceable rejects destinations a file rename cannot replace.
func checkReplaceable(path string) error {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.FileError(path, err)
	}
	if !info.Mode().IsRegular() {
		return errors.FileError(path, fmt.Errorf("destination is not a regular file"))
	}
	return nil
}

// rollback removes replacements already in place and restores the prior
// artifacts in reverse order.
func rollback(targets []target) {
	for i := len(targets) - 1; i >= 0; i-- {
		t := &targets[i]
		if t.placed {
			os.Remove(t.path)
		}
		if t.backup != "" {
			os.Rename(t.backup, t.path)
		}
	}
}

func writeTemp(path string, t Table) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", errors.FileError(path, err)
	}
	name := f.Name()

	fail := func(err error) (string, error) {
		f.Close()
		os.Remove(name)
		return "", errors.FileError(path, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(t.Header()); err != nil {
		return fail(err)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fail(fmt.Errorf("table %s row %d has %d cells, want %d", t.Name, i+1, len(row), len(t.Columns)))
		}
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fail(err)
	}
	if err := f.Chmod(common.FilePermissionNormal); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", errors.FileError(path, err)
	}
	return name, nil
}

// ReadTable reads a published artifact back, checking its header against the
// table's schema.
func ReadTable(dir, name string) (Table, error) {
	columns, err := Schema(name)
	if err != nil {
		return Table{}, err
	}

	path := Path(dir, name)
	f, err := os.Open(path)
	if err != nil {
		return Table{}, errors.FileError(path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Table{}, errors.FileError(path, err)
	}
	if len(records) == 0 {
		return Table{}, errors.StructuralError(name, "artifact has no header row")
	}

	t := Table{Name: name, Columns: columns, Rows: records[1:]}
	if !slices.Equal(records[0], t.Header()) {
		return Table{}, errors.StructuralError(name, fmt.Sprintf("unexpected header %v", records[0]))
	}
	return t, nil
}
