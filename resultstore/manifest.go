package resultstore

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/exemplar"
)

const (
	// ManifestFileName is the name of the per-rank manifest blob.
	ManifestFileName = "manifest.json"
	// CurrentVersion is the manifest format version written by this package.
	CurrentVersion = 1
)

// Manifest describes what one worker stored for a run.
type Manifest struct {
	Version     int         `json:"version"`
	RunID       string      `json:"run_id"`
	Algorithm   string      `json:"algorithm"`
	Rank        int         `json:"rank"`
	Size        int         `json:"size"`
	Codec       string      `json:"codec"`
	Compression Compression `json:"compression"`
	CreatedAt   time.Time   `json:"created_at"`

	CenterIDs       []exemplar.ItemID   `json:"center_ids,omitempty"`
	CenterIndices   []int               `json:"center_indices"`
	CenterLocations []exemplar.Location `json:"center_locations"`
	CentersPath     string              `json:"centers_path,omitempty"`
	CentersChecksum uint32              `json:"centers_checksum,omitempty"`

	Segments []SegmentInfo `json:"segments"`
	Summary  *Summary      `json:"summary,omitempty"`
}

// SegmentInfo describes a single segment.
type SegmentInfo struct {
	Name   string `json:"name"`
	Length int    `json:"length"`
	Path   string `json:"path"`

	// Checksum is the CRC32C of the stored (compressed) blob.
	Checksum uint32 `json:"checksum"`
}

// Summary mirrors exemplar.Summary for the items of one rank.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Max    float64 `json:"max"`
}

func newSummary(s exemplar.Summary) *Summary {
	if math.IsNaN(s.Mean) || math.IsInf(s.Max, 0) {
		return nil
	}
	return &Summary{Mean: s.Mean, StdDev: s.StdDev, Max: s.Max}
}

func encodeManifest(m *Manifest) ([]byte, error) {
	m.Version = CurrentVersion
	return json.MarshalIndent(m, "", "  ")
}

func decodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d (expected %d)", m.Version, CurrentVersion)
	}
	return &m, nil
}
