package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"loreforge/internal/services"
)

// Dataset is a read-only view over one resolved dataset directory. Files are
// decoded on first use and cached.
type Dataset struct {
	dir     string
	sources Sources

	mu    sync.Mutex
	files map[string][]Record
}

// Open returns a Dataset rooted at dir.
func Open(dir string, sources Sources) *Dataset {
	return &Dataset{dir: dir, sources: sources, files: make(map[string][]Record)}
}

// Dir returns the dataset directory.
func (d *Dataset) Dir() string { return d.dir }

// Sources returns the file name overrides in effect.
func (d *Dataset) Sources() Sources { return d.sources }

// FilePath returns the absolute path of the file backing source key.
func (d *Dataset) FilePath(key string) string {
	return filepath.Join(d.dir, d.sources.File(key))
}

// Records returns every record of the file backing source key. A missing
// file is an ErrNotFound error.
func (d *Dataset) Records(key string) ([]Record, error) {
	name := d.sources.File(key)
	if name == "" {
		return nil, services.Wrap(services.ErrConfiguration, "reference", "records", fmt.Sprintf("unknown source %q", key), nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if cached, ok := d.files[name]; ok {
		return cached, nil
	}
	records, err := readRecords(filepath.Join(d.dir, name))
	if err != nil {
		return nil, err
	}
	d.files[name] = records
	return records, nil
}

// OptionalRecords is Records but treats a missing file as empty.
func (d *Dataset) OptionalRecords(key string) ([]Record, bool, error) {
	records, err := d.Records(key)
	if errors.Is(err, services.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return records, true, nil
}

// PKs returns the primary keys of every record in key's file, in file order.
func (d *Dataset) PKs(key string) ([]PK, error) {
	records, err := d.Records(key)
	if err != nil {
		return nil, err
	}
	out := make([]PK, 0, len(records))
	for _, rec := range records {
		if rec.PK != "" {
			out = append(out, rec.PK)
		}
	}
	return out, nil
}

// Find returns the record with pk from key's file.
func (d *Dataset) Find(key string, pk PK) (Record, error) {
	records, err := d.Records(key)
	if err != nil {
		return Record{}, err
	}
	for _, rec := range records {
		if rec.PK == pk {
			return rec, nil
		}
	}
	return Record{}, services.Wrap(services.ErrNotFound, "reference", "find",
		fmt.Sprintf("pk %s not found in %s", pk, d.sources.File(key)), nil)
}

// Children returns the records of key's file whose fields.parent equals parent.
func Children(records []Record, parent PK) []Record {
	var out []Record
	for _, rec := range records {
		if rec.Parent() == parent {
			out = append(out, rec)
		}
	}
	return out
}

func readRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "reference", "open", "missing source file "+path, err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "reference", "open", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, services.Wrap(services.ErrValidation, "reference", "decode", filepath.Base(path), err)
	}
	return records, nil
}
