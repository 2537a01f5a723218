package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Archive keeps JSON snapshots of records before they are hard-deleted, so a
// deleted loan or user can still be inspected after the row is gone.
type Archive struct {
	Dir string
}

func NewArchive(dir string) *Archive {
	return &Archive{Dir: dir}
}

type snapshot struct {
	Kind       string    `json:"kind"`
	ArchivedAt time.Time `json:"archived_at"`
	ArchivedBy uint      `json:"archived_by"`
	Record     any       `json:"record"`
}

// Save writes record to <Dir>/<kind>-<uuid>.json and returns the file name.
// A nil Archive or an empty Dir disables archiving.
func (a *Archive) Save(kind string, actorID uint, record any) (string, error) {
	if a == nil || a.Dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.json", kind, uuid.New().String())
	data, err := json.MarshalIndent(snapshot{
		Kind:       kind,
		ArchivedAt: time.Now().UTC(),
		ArchivedBy: actorID,
		Record:     record,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s snapshot: %w", kind, err)
	}

	if err := os.WriteFile(filepath.Join(a.Dir, filename), data, 0o640); err != nil {
		return "", fmt.Errorf("failed to write %s snapshot: %w", kind, err)
	}
	return filename, nil
}
