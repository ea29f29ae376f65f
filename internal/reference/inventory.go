package reference

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"loreforge/internal/fileutil"
	"loreforge/internal/services"
)

// InventoryFile describes one dataset file.
type InventoryFile struct {
	Name    string `json:"name"`
	SHA256  string `json:"sha256"`
	Bytes   int64  `json:"bytes"`
	Records int    `json:"records"`
}

// Inventory fingerprints every JSON file of a dataset directory.
type Inventory struct {
	GeneratedUTC string          `json:"generated_utc"`
	Dir          string          `json:"dir"`
	Files        []InventoryFile `json:"files"`
}

// TakeInventory hashes every *.json file in dir and counts its records.
// Files that are not record arrays report zero records.
func TakeInventory(dir string, now time.Time) (Inventory, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Inventory{}, services.Wrap(services.ErrConfiguration, "reference", "inventory", dir, err)
	}
	inv := Inventory{GeneratedUTC: now.UTC().Format(time.RFC3339), Dir: dir}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		digest, size, err := fileutil.SHA256File(path)
		if err != nil {
			return Inventory{}, services.Wrap(services.ErrTransient, "reference", "inventory", entry.Name(), err)
		}
		count := 0
		if records, err := readRecords(path); err == nil {
			count = len(records)
		}
		inv.Files = append(inv.Files, InventoryFile{Name: entry.Name(), SHA256: digest, Bytes: size, Records: count})
	}
	sort.Slice(inv.Files, func(i, j int) bool { return inv.Files[i].Name < inv.Files[j].Name })
	return inv, nil
}
