package zones

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/parkbeam/internal/protocol"
	"github.com/danmuck/parkbeam/internal/testutil/testlog"
)

func sameZones(t *testing.T, got, want []protocol.ZoneConfig) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d zones want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("zone %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestLoadCSV(t *testing.T) {
	testlog.Start(t)
	in := strings.Join([]string{
		"# lot A",
		"10,20,110,20,110,80,7",
		"",
		"0, 0, 5, 0, 5, 5, 0, 5, 8",
	}, "\n")
	zones, err := LoadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []protocol.ZoneConfig{
		{ZoneID: 7, Points: []protocol.Point{{X: 10, Y: 20}, {X: 110, Y: 20}, {X: 110, Y: 80}}},
		rect(8, 0, 0, 5, 5),
	}
	sameZones(t, zones, want)
}

func TestLoadCSVRejects(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"even field count": "1,2,3,4",
		"too few points":   "0,0,1,1,3",
		"not a number":     "0,0,1,x,2,2,3",
		"duplicate id":     "0,0,1,0,1,1,3\n5,5,6,5,6,6,3",
	}
	for name, in := range cases {
		if _, err := LoadCSV(strings.NewReader(in)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := LoadCSV(strings.NewReader("1,2,3,4")); !errors.Is(err, ErrMalformedLine) {
		t.Fatalf("expected ErrMalformedLine, got %v", err)
	}
}

func TestCSVWriteRoundTrip(t *testing.T) {
	testlog.Start(t)
	zones := []protocol.ZoneConfig{rect(1, -5, -5, 10, 10), rect(2, 100, 100, 3, 4)}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, zones); err != nil {
		t.Fatalf("write: %v", err)
	}
	if line := strings.SplitN(buf.String(), "\n", 2)[0]; line != "-5,-5,5,-5,5,5,-5,5,1" {
		t.Fatalf("unexpected line %q", line)
	}
	back, err := LoadCSV(&buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sameZones(t, back, zones)
}

func TestTOMLRoundTrip(t *testing.T) {
	testlog.Start(t)
	zones := []protocol.ZoneConfig{rect(1, 0, 0, 10, 10), {ZoneID: 4, Points: []protocol.Point{{X: 1, Y: 1}, {X: 9, Y: 1}, {X: 5, Y: 7}}}}
	var buf bytes.Buffer
	if err := SaveTOML(&buf, zones); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := LoadTOML(&buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sameZones(t, back, zones)
}

func TestLoadTOMLRejects(t *testing.T) {
	testlog.Start(t)
	bad := "[[zone]]\nid = 1\npoints = [[0, 0], [1], [2, 2]]\n"
	if _, err := LoadTOML(strings.NewReader(bad)); !errors.Is(err, ErrMalformedLine) {
		t.Fatalf("expected ErrMalformedLine, got %v", err)
	}
	unknown := "[[zone]]\nid = 1\nname = \"a\"\npoints = [[0, 0], [1, 0], [2, 2]]\n"
	if _, err := LoadTOML(strings.NewReader(unknown)); err == nil {
		t.Fatalf("expected unknown field error")
	}
	short := "[[zone]]\nid = 1\npoints = [[0, 0], [1, 0]]\n"
	if _, err := LoadTOML(strings.NewReader(short)); !errors.Is(err, protocol.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveAndRemoveZone(t *testing.T) {
	testlog.Start(t)
	for _, name := range []string{"zones.csv", "zones.toml"} {
		path := filepath.Join(t.TempDir(), name)

		if err := SaveZone(path, rect(1, 0, 0, 10, 10)); err != nil {
			t.Fatalf("%s: save new file: %v", name, err)
		}
		if err := SaveZone(path, rect(2, 20, 0, 10, 10)); err != nil {
			t.Fatalf("%s: append: %v", name, err)
		}
		if err := SaveZone(path, rect(1, 0, 0, 50, 50)); err != nil {
			t.Fatalf("%s: upsert: %v", name, err)
		}
		got, err := LoadFile(path)
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		sameZones(t, got, []protocol.ZoneConfig{rect(1, 0, 0, 50, 50), rect(2, 20, 0, 10, 10)})

		removed, err := RemoveZone(path, 1)
		if err != nil || !removed {
			t.Fatalf("%s: remove: removed=%v err=%v", name, removed, err)
		}
		removed, err = RemoveZone(path, 1)
		if err != nil || removed {
			t.Fatalf("%s: second remove: removed=%v err=%v", name, removed, err)
		}
		got, err = LoadFile(path)
		if err != nil {
			t.Fatalf("%s: reload: %v", name, err)
		}
		sameZones(t, got, []protocol.ZoneConfig{rect(2, 20, 0, 10, 10)})
	}
}

func TestSaveZoneRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "zones.csv")
	err := SaveZone(path, protocol.ZoneConfig{ZoneID: 1, Points: []protocol.Point{{X: 0, Y: 0}}})
	if !errors.Is(err, protocol.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("invalid zone created a file: %v", err)
	}
	if _, err := RemoveZone(path, 1); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist from remove, got %v", err)
	}
}
