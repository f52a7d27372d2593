package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ManifestEntry names the call behind one object key.
type ManifestEntry struct {
	Key          string
	ContactID    string
	LastModified time.Time
}

var manifestTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

// LoadManifest reads an xlsx manifest from the first sheet. Columns are found
// by header: the object key ("key", "file", "path", "object"), the contact id
// ("contact id", "contactid", "call id") and an optional modification time
// ("modified", "date"). Rows without a key are skipped.
func LoadManifest(path string) ([]ManifestEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("manifest has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("manifest has no data rows")
	}

	keyIdx, idIdx, modIdx := -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "contact") || strings.Contains(l, "call id") || strings.Contains(l, "callid"):
			if idIdx == -1 {
				idIdx = i
			}
		case strings.Contains(l, "modified") || strings.Contains(l, "date"):
			if modIdx == -1 {
				modIdx = i
			}
		case strings.Contains(l, "key") || strings.Contains(l, "file") || strings.Contains(l, "path") || strings.Contains(l, "object"):
			if keyIdx == -1 {
				keyIdx = i
			}
		}
	}
	if keyIdx == -1 || idIdx == -1 {
		return nil, fmt.Errorf("manifest needs key and contact id columns, got %v", rows[0])
	}

	var out []ManifestEntry
	for i, r := range rows[1:] {
		e := ManifestEntry{Key: cell(r, keyIdx), ContactID: cell(r, idIdx)}
		if e.Key == "" {
			continue
		}
		if s := cell(r, modIdx); s != "" {
			t, err := parseManifestTime(s)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			e.LastModified = t
		}
		out = append(out, e)
	}
	return out, nil
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}

func parseManifestTime(s string) (time.Time, error) {
	for _, layout := range manifestTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
