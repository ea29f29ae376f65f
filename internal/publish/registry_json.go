package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"slices"
	"sync"

	"loreforge/internal/fileutil"
	"loreforge/internal/services"
)

// registryFile holds the document as read. Items and any other top-level
// keys stay raw so records written by other tools survive a rewrite
// untouched, unknown fields and wide integers included.
type registryFile struct {
	Items []json.RawMessage
	Extra map[string]json.RawMessage
}

// JSONRegistry keeps records in a single JSON document rewritten atomically
// on every append.
type JSONRegistry struct {
	path string
	mu   sync.Mutex
}

// NewJSONRegistry returns a registry backed by path. The file is created on
// the first append.
func NewJSONRegistry(path string) *JSONRegistry {
	return &JSONRegistry{path: path}
}

// Path returns the registry file.
func (r *JSONRegistry) Path() string { return r.path }

func (r *JSONRegistry) load() (registryFile, error) {
	var doc registryFile
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return doc, services.Wrap(services.ErrTransient, "publish", "load registry", r.path, err)
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return doc, r.corrupt(err)
	}
	if items, ok := top["items"]; ok {
		if err := json.Unmarshal(items, &doc.Items); err != nil {
			return doc, r.corrupt(err)
		}
		delete(top, "items")
	}
	doc.Extra = top
	return doc, nil
}

func (r *JSONRegistry) corrupt(err error) error {
	return services.Wrap(services.ErrValidation, "publish", "load registry", "corrupt registry "+r.path, err)
}

func (r *JSONRegistry) records(doc registryFile) ([]Record, error) {
	out := make([]Record, 0, len(doc.Items))
	for _, raw := range doc.Items {
		var rec Record
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&rec); err != nil {
			return nil, r.corrupt(err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Lookup implements Registry.
func (r *JSONRegistry) Lookup(ctx context.Context, hash, contentID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	recs, err := r.records(doc)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if matches(recs[i], hash, contentID) {
			return &recs[i], nil
		}
	}
	return nil, nil
}

// Append implements Registry. Earlier items are written back byte for byte.
func (r *JSONRegistry) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return err
	}
	raw, err := marshalRecord(rec)
	if err != nil {
		return services.Wrap(services.ErrValidation, "publish", "save registry", "encode record", err)
	}
	doc.Items = append(doc.Items, raw)
	if err := fileutil.WriteFileAtomic(r.path, doc.encode(), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "publish", "save registry", r.path, err)
	}
	return nil
}

// List implements Registry.
func (r *JSONRegistry) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return r.records(doc)
}

// Close implements Registry.
func (r *JSONRegistry) Close() error { return nil }

func marshalRecord(rec Record) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("    ", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// encode lays the document out by hand so raw items are not re-indented.
// Extra keys come first in sorted order, then items.
func (doc registryFile) encode() []byte {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	keys := make([]string, 0, len(doc.Extra))
	for k := range doc.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		name, _ := json.Marshal(k)
		buf.WriteString("  ")
		buf.Write(name)
		buf.WriteString(": ")
		buf.Write(doc.Extra[k])
		buf.WriteString(",\n")
	}
	buf.WriteString("  \"items\": [")
	for i, item := range doc.Items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n    ")
		buf.Write(item)
	}
	if len(doc.Items) > 0 {
		buf.WriteString("\n  ")
	}
	buf.WriteString("]\n}\n")
	return buf.Bytes()
}
