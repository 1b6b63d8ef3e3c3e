package radio

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Station is one configured radio source and its target encoding.
type Station struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	SourceURL   string `yaml:"source_url"`
	ContentType string `yaml:"content_type"`
	Codec       string `yaml:"codec"`
	Format      string `yaml:"format"`
	CustomArgs  string `yaml:"custom_args"`
}

// Spec returns the transcoder invocation parameters for this station.
func (s Station) Spec() FormatSpec {
	return FormatSpec{Codec: s.Codec, Format: s.Format, CustomArgs: s.CustomArgs}
}

// Stations is the lookup abstraction for configured stations, indexed by
// their position in the configuration file.
type Stations interface {
	Get(id int) (Station, bool)
	List() []Station
	Count() int
}

// StationList is a Stations backed by a fixed in-memory slice.
type StationList struct {
	stations []Station
}

// NewStationList builds a registry from the given stations, applying the
// per-station defaults for absent fields.
func NewStationList(stations []Station) *StationList {
	out := make([]Station, len(stations))
	for i, st := range stations {
		out[i] = withStationDefaults(st)
	}
	return &StationList{stations: out}
}

// Get implements Stations.Get.
func (l *StationList) Get(id int) (Station, bool) {
	if id < 0 || id >= len(l.stations) {
		return Station{}, false
	}
	return l.stations[id], true
}

// List implements Stations.List.
func (l *StationList) List() []Station {
	out := make([]Station, len(l.stations))
	copy(out, l.stations)
	return out
}

// Count implements Stations.Count.
func (l *StationList) Count() int {
	return len(l.stations)
}

// LoadStations reads the YAML stations file. A file listing no stations is
// an error: the server would have nothing to serve.
func LoadStations(path string) (*StationList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations file: %w", err)
	}
	var doc struct {
		Stations []Station `yaml:"stations"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse stations file: %w", err)
	}
	if len(doc.Stations) == 0 {
		return nil, fmt.Errorf("stations file %s lists no stations", path)
	}
	return NewStationList(doc.Stations), nil
}

func withStationDefaults(st Station) Station {
	if st.ContentType == "" {
		st.ContentType = "audio/aac"
	}
	if st.Codec == "" {
		st.Codec = "copy"
	}
	if st.Format == "" {
		st.Format = "adts"
	}
	return st
}
