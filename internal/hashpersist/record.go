package hashpersist

import (
	"encoding/json"

	"github.com/lanshare/storagecore/internal/fsentry"
)

// CurrentVersion is written into every new record. A future reader
// that only understands an older version can still recover the Files
// list; a future writer that adds fields does so through Extra so
// this reader's round trip preserves them untouched.
const CurrentVersion = 1

// FileEntry pairs a File's directory-relative path with its persisted
// chunk-hash state. Path is the value of fsentry.File.Path(), not the
// filename alone, so files of the same name in different directories
// don't collide.
type FileEntry struct {
	Path   string            `json:"path"`
	Record fsentry.FileRecord `json:"record"`
}

// CacheRecord is the per-shared-directory persisted payload. Extra
// holds any top-level JSON field this version of the struct doesn't
// know about, so a round trip through this reader doesn't silently
// drop a newer writer's additions.
type CacheRecord struct {
	Version int         `json:"version"`
	Files   []FileEntry `json:"files"`
	Extra   map[string]json.RawMessage `json:"-"`
}

// MarshalJSON merges the known fields back into Extra's unknown ones.
func (r CacheRecord) MarshalJSON() ([]byte, error) {
	raw := make(map[string]json.RawMessage, len(r.Extra)+2)
	for k, v := range r.Extra {
		raw[k] = v
	}

	versionJSON, err := json.Marshal(r.Version)
	if err != nil {
		return nil, err
	}
	raw["version"] = versionJSON

	filesJSON, err := json.Marshal(r.Files)
	if err != nil {
		return nil, err
	}
	raw["files"] = filesJSON

	return json.Marshal(raw)
}

// UnmarshalJSON decodes the known fields and stashes everything else
// in Extra, so fields added by a newer writer survive a round trip
// through this version of the reader.
func (r *CacheRecord) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &r.Version); err != nil {
			return err
		}
		delete(raw, "version")
	}
	if v, ok := raw["files"]; ok {
		if err := json.Unmarshal(v, &r.Files); err != nil {
			return err
		}
		delete(raw, "files")
	}

	r.Extra = raw
	return nil
}
