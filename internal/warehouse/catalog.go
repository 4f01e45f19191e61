package warehouse

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DataFile describes a single parquet file published to the warehouse.
type DataFile struct {
	Path        string         `json:"path"`
	Table       string         `json:"table"`
	FileSize    int64          `json:"file_size_in_bytes"`
	RecordCount int64          `json:"record_count"`
	Partition   map[string]any `json:"partition"`
	WrittenAt   time.Time      `json:"-"`
}

// ManifestEntry mirrors the information kept in an Iceberg manifest file.
type ManifestEntry struct {
	Status   int      `json:"status"`
	DataFile DataFile `json:"data_file"`
}

// Snapshot holds minimal information required for time-travel queries.
type Snapshot struct {
	SnapshotID  int64  `json:"snapshot-id"`
	TimestampMs int64  `json:"timestamp-ms"`
	Manifest    string `json:"manifest-list"`
}

// TableMetadata represents the high level warehouse metadata file.
type TableMetadata struct {
	FormatVersion     int        `json:"format-version"`
	TableUUID         string     `json:"table-uuid"`
	Location          string     `json:"location"`
	CurrentSnapshotID int64      `json:"current-snapshot-id"`
	Snapshots         []Snapshot `json:"snapshots"`
}

// Catalog incrementally builds warehouse metadata plus the load catalog the
// downstream bulk loader consumes.
type Catalog struct {
	basePath  string
	schema    string
	tableUUID string
	snapshots []Snapshot
	files     []DataFile
}

// NewCatalog returns a catalog rooted at basePath. Table names in the load
// catalog are qualified with the given SQL schema.
func NewCatalog(basePath, schema string) *Catalog {
	return &Catalog{
		basePath:  basePath,
		schema:    schema,
		tableUUID: uuid.NewString(),
	}
}

// AddFile records a newly written parquet file and updates metadata.
func (c *Catalog) AddFile(df DataFile) error {
	snapID := df.WrittenAt.UnixNano()
	manifestFile := fmt.Sprintf("manifest-%s-%d.json", df.Table, snapID)
	manifestPath := filepath.Join(c.basePath, "metadata", manifestFile)
	if err := os.MkdirAll(filepath.Dir(manifestPath), 0o755); err != nil {
		return err
	}
	entry := ManifestEntry{Status: 1, DataFile: df}
	b, err := json.Marshal([]ManifestEntry{entry})
	if err != nil {
		return err
	}
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return err
	}
	snapshot := Snapshot{
		SnapshotID:  snapID,
		TimestampMs: df.WrittenAt.UnixMilli(),
		Manifest:    manifestFile,
	}
	c.snapshots = append(c.snapshots, snapshot)
	c.files = append(c.files, df)
	return c.writeTableMetadata()
}

func (c *Catalog) writeTableMetadata() error {
	if len(c.snapshots) == 0 {
		return nil
	}
	tm := TableMetadata{
		FormatVersion:     2,
		TableUUID:         c.tableUUID,
		Location:          c.basePath,
		CurrentSnapshotID: c.snapshots[len(c.snapshots)-1].SnapshotID,
		Snapshots:         c.snapshots,
	}
	metaPath := filepath.Join(c.basePath, "metadata", "metadata.json")
	b, err := json.MarshalIndent(tm, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath, b, 0o644)
}

// loadCatalog is the document handed to the bulk loader: one entry per
// parquet file with the schema-qualified table it belongs in.
type loadCatalog struct {
	Schema           string      `json:"schema"`
	GeneratedAt      string      `json:"generated-at"`
	MetadataLocation string      `json:"metadata_location"`
	Files            []loadEntry `json:"files"`
}

type loadEntry struct {
	Table       string `json:"table"`
	Path        string `json:"path"`
	RecordCount int64  `json:"record_count"`
	FileSize    int64  `json:"file_size_in_bytes"`
}

// WriteCatalogEntry writes the load catalog for everything added so far.
func (c *Catalog) WriteCatalogEntry(catalogDir string) error {
	if len(c.files) == 0 {
		return nil
	}
	entries := make([]loadEntry, 0, len(c.files))
	for _, df := range c.files {
		entries = append(entries, loadEntry{
			Table:       fmt.Sprintf("%s.%s", c.schema, df.Table),
			Path:        df.Path,
			RecordCount: df.RecordCount,
			FileSize:    df.FileSize,
		})
	}
	doc := loadCatalog{
		Schema:           c.schema,
		GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
		MetadataLocation: filepath.Join(c.basePath, "metadata", "metadata.json"),
		Files:            entries,
	}
	if err := os.MkdirAll(catalogDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(catalogDir, fmt.Sprintf("%s.json", c.schema))
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
