package table

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/robolake/robolake/pkg/types"
)

// MetadataSidecar is the .meta.json file written next to a standalone
// artifact so consumers can discover its schema without opening it.
type MetadataSidecar struct {
	TableName   string            `json:"table_name"`
	SourceFile  string            `json:"source_file"`
	Topic       string            `json:"topic"`
	Schema      types.TableSchema `json:"schema"`
	Fingerprint string            `json:"fingerprint"`
	RowCount    int64             `json:"row_count"`
	SizeBytes   int64             `json:"size_bytes"`
	CreatedAt   int64             `json:"created_at"`
}

// SidecarPath returns the sidecar path for an artifact path.
func SidecarPath(artifactPath string) string {
	return artifactPath + ".meta.json"
}

// WriteSidecar writes the metadata sidecar for an artifact.
func WriteSidecar(artifactPath string, meta *MetadataSidecar) error {
	if info, err := os.Stat(artifactPath); err == nil {
		meta.SizeBytes = info.Size()
	}
	meta.CreatedAt = time.Now().Unix()
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("table: failed to encode metadata sidecar: %w", err)
	}
	if err := os.WriteFile(SidecarPath(artifactPath), data, 0644); err != nil {
		return fmt.Errorf("table: failed to write metadata sidecar: %w", err)
	}
	return nil
}

// ReadSidecar reads the metadata sidecar for an artifact.
func ReadSidecar(artifactPath string) (*MetadataSidecar, error) {
	data, err := os.ReadFile(SidecarPath(artifactPath))
	if err != nil {
		return nil, fmt.Errorf("table: failed to read metadata sidecar: %w", err)
	}
	var meta MetadataSidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("table: failed to decode metadata sidecar: %w", err)
	}
	return &meta, nil
}
