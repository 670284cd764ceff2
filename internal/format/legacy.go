package format

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"trak/internal/wcerr"
)

// LegacyLayer is one node layer in the format-1 entries file.
type LegacyLayer struct {
	OpDepth    int               `yaml:"opDepth"`
	Kind       string            `yaml:"kind"`
	Presence   string            `yaml:"presence"`
	Revision   int64             `yaml:"revision"`
	Checksum   string            `yaml:"checksum,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
	MovedTo    string            `yaml:"movedTo,omitempty"`
	MovedHere  bool              `yaml:"movedHere,omitempty"`
}

// LegacyEntry is one tracked path in the format-1 entries file, carrying
// its layer stack plus the uncommitted overlay inline.
type LegacyEntry struct {
	RelPath    string            `yaml:"path"`
	Layers     []LegacyLayer     `yaml:"layers"`
	Props      map[string]string `yaml:"props,omitempty"`
	Conflict   string            `yaml:"conflict,omitempty"`
	Changelist string            `yaml:"changelist,omitempty"`
}

// LegacyArea is the whole format-1 store: a version line followed by one
// YAML document.
type LegacyArea struct {
	ReposURL string        `yaml:"reposUrl"`
	Revision int64         `yaml:"revision"`
	Entries  []LegacyEntry `yaml:"entries"`
}

// ParseLegacy parses the entries file: an integer version on the first
// line, a YAML document after it.
func ParseLegacy(data []byte) (*LegacyArea, error) {
	line, rest, _ := bytes.Cut(data, []byte("\n"))
	version, err := strconv.Atoi(string(bytes.TrimSpace(line)))
	if err != nil {
		return nil, wcerr.New(wcerr.StoreCorruption, LegacyEntriesFile,
			"bad version line: %v", err)
	}
	if version != Version1 {
		return nil, wcerr.New(wcerr.StoreCorruption, LegacyEntriesFile,
			"unsupported legacy version %d", version)
	}
	var area LegacyArea
	if err := yaml.Unmarshal(rest, &area); err != nil {
		return nil, wcerr.Wrap(wcerr.StoreCorruption, LegacyEntriesFile, err)
	}
	return &area, nil
}

// WriteLegacy writes a format-1 store into adminDir. Production never
// downgrades; this exists for upgrade test scaffolding.
func WriteLegacy(adminDir string, area *LegacyArea) error {
	if err := os.MkdirAll(adminDir, 0755); err != nil {
		return wcerr.Wrap(wcerr.IOFailure, adminDir, err)
	}
	doc, err := yaml.Marshal(area)
	if err != nil {
		return fmt.Errorf("marshaling entries: %w", err)
	}
	data := append([]byte(strconv.Itoa(Version1)+"\n"), doc...)
	path := filepath.Join(adminDir, LegacyEntriesFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return wcerr.Wrap(wcerr.IOFailure, path, err)
	}
	return nil
}
