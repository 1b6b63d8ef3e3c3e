package radio

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStationsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadStations(t *testing.T) {
	path := writeStationsFile(t, `
stations:
  - name: "Radio One"
    description: "first"
    source_url: "https://example.com/one/playlist.m3u8"
    content_type: "audio/mpeg"
    codec: "libmp3lame"
    format: "mp3"
    custom_args: "-b:a 192k"
  - name: "Radio Two"
    source_url: "https://example.com/two/playlist.m3u8"
`)

	stations, err := LoadStations(path)
	if err != nil {
		t.Fatalf("LoadStations: %v", err)
	}
	if stations.Count() != 2 {
		t.Fatalf("Count = %d, want 2", stations.Count())
	}

	one, ok := stations.Get(0)
	if !ok {
		t.Fatal("Get(0): ok false")
	}
	if one.Codec != "libmp3lame" || one.Format != "mp3" || one.CustomArgs != "-b:a 192k" {
		t.Errorf("unexpected station 0: %+v", one)
	}
	spec := one.Spec()
	if spec.Codec != "libmp3lame" || spec.Format != "mp3" || spec.CustomArgs != "-b:a 192k" {
		t.Errorf("unexpected spec: %+v", spec)
	}

	// Absent fields get the passthrough-AAC defaults.
	two, ok := stations.Get(1)
	if !ok {
		t.Fatal("Get(1): ok false")
	}
	if two.ContentType != "audio/aac" || two.Codec != "copy" || two.Format != "adts" {
		t.Errorf("defaults not applied: %+v", two)
	}
}

func TestStationList_GetOutOfRange(t *testing.T) {
	stations := NewStationList([]Station{{Name: "only"}})
	if _, ok := stations.Get(-1); ok {
		t.Error("Get(-1) should report ok=false")
	}
	if _, ok := stations.Get(1); ok {
		t.Error("Get(1) should report ok=false")
	}
}

func TestLoadStations_missingFile(t *testing.T) {
	if _, err := LoadStations(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing stations file")
	}
}

func TestLoadStations_emptyList(t *testing.T) {
	path := writeStationsFile(t, "stations: []\n")
	if _, err := LoadStations(path); err == nil {
		t.Error("expected an error for an empty station list")
	}
}
