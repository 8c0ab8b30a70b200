package zones

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/danmuck/parkbeam/internal/protocol"
)

var ErrMalformedLine = errors.New("zones: malformed zone line")

// ParseCSVRecord reads one legacy record: x1,y1,...,xn,yn,zoneId.
func ParseCSVRecord(fields []string) (protocol.ZoneConfig, error) {
	if len(fields) < 3 || len(fields)%2 == 0 {
		return protocol.ZoneConfig{}, fmt.Errorf("%w: %d fields", ErrMalformedLine, len(fields))
	}
	nums := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return protocol.ZoneConfig{}, fmt.Errorf("%w: field %d: %v", ErrMalformedLine, i+1, err)
		}
		nums[i] = v
	}
	z := protocol.ZoneConfig{ZoneID: nums[len(nums)-1]}
	for i := 0; i+1 < len(nums)-1; i += 2 {
		z.Points = append(z.Points, protocol.Point{X: nums[i], Y: nums[i+1]})
	}
	return z, nil
}

func FormatCSVRecord(z protocol.ZoneConfig) []string {
	out := make([]string, 0, 2*len(z.Points)+1)
	for _, p := range z.Points {
		out = append(out, strconv.Itoa(p.X), strconv.Itoa(p.Y))
	}
	return append(out, strconv.Itoa(z.ZoneID))
}

// LoadCSV parses a legacy zone file. Blank lines and lines starting with
// '#' are skipped. The result is validated as a whole.
func LoadCSV(r io.Reader) ([]protocol.ZoneConfig, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var out []protocol.ZoneConfig
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("zones: read csv: %w", err)
		}
		z, err := ParseCSVRecord(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, z)
	}
	if err := protocol.ValidateZones(out); err != nil {
		return nil, err
	}
	return out, nil
}

func WriteCSV(w io.Writer, zones []protocol.ZoneConfig) error {
	cw := csv.NewWriter(w)
	for _, z := range zones {
		if err := cw.Write(FormatCSVRecord(z)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func LoadCSVFile(path string) ([]protocol.ZoneConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("zones: open %s: %w", path, err)
	}
	defer f.Close()
	zones, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("zones: %s: %w", path, err)
	}
	return zones, nil
}

func writeCSVFile(path string, zones []protocol.ZoneConfig) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, zones); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

// SaveZone replaces the zone with the same id in the file at path, or
// appends it. A missing file is created.
func SaveZone(path string, z protocol.ZoneConfig) error {
	if err := protocol.ValidateZone(z); err != nil {
		return err
	}
	zones, err := loadOrEmpty(path)
	if err != nil {
		return err
	}
	if i := slices.IndexFunc(zones, func(c protocol.ZoneConfig) bool { return c.ZoneID == z.ZoneID }); i >= 0 {
		zones[i] = z
	} else {
		zones = append(zones, z)
	}
	return SaveFile(path, zones)
}

// RemoveZone deletes the zone with id from the file and reports whether it
// was present.
func RemoveZone(path string, id int) (bool, error) {
	zones, err := LoadFile(path)
	if err != nil {
		return false, err
	}
	i := slices.IndexFunc(zones, func(c protocol.ZoneConfig) bool { return c.ZoneID == id })
	if i < 0 {
		return false, nil
	}
	zones = slices.Delete(zones, i, i+1)
	return true, SaveFile(path, zones)
}

func loadOrEmpty(path string) ([]protocol.ZoneConfig, error) {
	zones, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return zones, err
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("zones: write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("zones: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("zones: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("zones: write %s: %w", path, err)
	}
	return nil
}
