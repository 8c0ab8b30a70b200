package zones

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/parkbeam/internal/protocol"
	"github.com/pelletier/go-toml/v2"
)

type zoneFile struct {
	Zones []zoneEntry `toml:"zone"`
}

type zoneEntry struct {
	ID     int     `toml:"id"`
	Points [][]int `toml:"points"`
}

// LoadTOML reads zones written as
//
//	[[zone]]
//	id = 1
//	points = [[0, 0], [100, 0], [100, 50]]
func LoadTOML(r io.Reader) ([]protocol.ZoneConfig, error) {
	var f zoneFile
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&f); err != nil {
		return nil, fmt.Errorf("zones: parse toml: %w", err)
	}
	out := make([]protocol.ZoneConfig, 0, len(f.Zones))
	for i, e := range f.Zones {
		z := protocol.ZoneConfig{ZoneID: e.ID, Points: make([]protocol.Point, 0, len(e.Points))}
		for j, p := range e.Points {
			if len(p) != 2 {
				return nil, fmt.Errorf("%w: zone[%d] point %d has %d coordinates", ErrMalformedLine, i, j, len(p))
			}
			z.Points = append(z.Points, protocol.Point{X: p[0], Y: p[1]})
		}
		out = append(out, z)
	}
	if err := protocol.ValidateZones(out); err != nil {
		return nil, err
	}
	return out, nil
}

func SaveTOML(w io.Writer, zones []protocol.ZoneConfig) error {
	f := zoneFile{Zones: make([]zoneEntry, 0, len(zones))}
	for _, z := range zones {
		e := zoneEntry{ID: z.ZoneID, Points: make([][]int, 0, len(z.Points))}
		for _, p := range z.Points {
			e.Points = append(e.Points, []int{p.X, p.Y})
		}
		f.Zones = append(f.Zones, e)
	}
	enc := toml.NewEncoder(w).SetArraysMultiline(false)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("zones: encode toml: %w", err)
	}
	return nil
}

func LoadTOMLFile(path string) ([]protocol.ZoneConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("zones: open %s: %w", path, err)
	}
	defer f.Close()
	zones, err := LoadTOML(f)
	if err != nil {
		return nil, fmt.Errorf("zones: %s: %w", path, err)
	}
	return zones, nil
}

func SaveTOMLFile(path string, zones []protocol.ZoneConfig) error {
	var buf bytes.Buffer
	if err := SaveTOML(&buf, zones); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadFile picks the format from the extension: .toml or legacy CSV.
func LoadFile(path string) ([]protocol.ZoneConfig, error) {
	if isTOML(path) {
		return LoadTOMLFile(path)
	}
	return LoadCSVFile(path)
}

func SaveFile(path string, zones []protocol.ZoneConfig) error {
	if err := protocol.ValidateZones(zones); err != nil {
		return err
	}
	if isTOML(path) {
		return SaveTOMLFile(path, zones)
	}
	return writeCSVFile(path, zones)
}
