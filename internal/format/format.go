// Package format maps on-disk store format versions to their record layout
// and upgrade procedure.
package format

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/glog"

	"trak/internal/notify"
	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

const (
	// MarkerFile holds the format version of the administrative directory.
	MarkerFile = "format"
	// LegacyEntriesFile is the format-1 store file; its first line carries
	// the version for stores that predate the marker.
	LegacyEntriesFile = "entries"

	// Version1 is the flat-file entries layout.
	Version1 = 1
	// Version2 is the SQLite layout.
	Version2 = 2
	// Current is the newest supported version.
	Current = Version2
)

// upgrader re-derives a new-layout area from the prior format's area. The
// chain is one-directional and monotonic.
type upgrader func(r *Registry, adminDir string, fn notify.Func) error

// Registry maps format versions to their upgrade step. It is constructed
// once at startup and passed to the components that open stores.
type Registry struct {
	upgraders map[int]upgrader
}

// NewRegistry returns a registry of all supported formats.
func NewRegistry() *Registry {
	return &Registry{
		upgraders: map[int]upgrader{
			Version1: upgradeV1toV2,
		},
	}
}

// DetectVersion determines the on-disk format of adminDir. The dedicated
// marker file is authoritative; the legacy entries file's first line is
// consulted only when the marker is absent or corrupt.
func (r *Registry) DetectVersion(adminDir string) (int, error) {
	if v, ok := readVersionFile(filepath.Join(adminDir, MarkerFile)); ok {
		return v, nil
	}
	if v, ok := readVersionFile(filepath.Join(adminDir, LegacyEntriesFile)); ok {
		return v, nil
	}
	return 0, wcerr.New(wcerr.StoreCorruption, adminDir,
		"cannot determine working copy format")
}

// readVersionFile parses an integer from the first line of path.
func readVersionFile(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	line, _, _ := bytes.Cut(data, []byte("\n"))
	v, err := strconv.Atoi(string(bytes.TrimSpace(line)))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// WriteMarker records version as the format of adminDir.
func WriteMarker(adminDir string, version int) error {
	path := filepath.Join(adminDir, MarkerFile)
	if err := os.WriteFile(path, []byte(strconv.Itoa(version)+"\n"), 0644); err != nil {
		return wcerr.Wrap(wcerr.IOFailure, path, err)
	}
	return nil
}

// Open brings adminDir to the current format if needed and opens its store.
// Upgrades run before any operation proceeds.
func (r *Registry) Open(adminDir string, fn notify.Func) (*wcdb.DB, error) {
	version, err := r.DetectVersion(adminDir)
	if err != nil {
		return nil, err
	}
	if version > Current {
		return nil, wcerr.New(wcerr.StoreCorruption, adminDir,
			"working copy format %d is newer than supported %d", version, Current)
	}
	for version < Current {
		up, ok := r.upgraders[version]
		if !ok {
			return nil, wcerr.New(wcerr.StoreCorruption, adminDir,
				"no upgrade path from format %d", version)
		}
		glog.V(1).Infof("upgrading %s from format %d", adminDir, version)
		if err := up(r, adminDir, fn); err != nil {
			return nil, fmt.Errorf("upgrading from format %d: %w", version, err)
		}
		version++
	}
	return wcdb.Open(adminDir)
}

// upgradeV1toV2 re-encodes the flat entries file into the SQLite layout.
// Every record is translated or the upgrade fails whole; no partial-format
// store is left behind.
func upgradeV1toV2(r *Registry, adminDir string, fn notify.Func) error {
	data, err := os.ReadFile(filepath.Join(adminDir, LegacyEntriesFile))
	if err != nil {
		return wcerr.Wrap(wcerr.StoreCorruption, adminDir, err)
	}
	area, err := ParseLegacy(data)
	if err != nil {
		return err
	}

	// Build the new store under a scratch name so a failed upgrade leaves
	// the legacy area untouched.
	scratch := filepath.Join(adminDir, "upgrade.tmp")
	if err := os.RemoveAll(scratch); err != nil {
		return wcerr.Wrap(wcerr.IOFailure, scratch, err)
	}
	db, err := wcdb.Create(scratch, area.ReposURL, area.Revision)
	if err != nil {
		return err
	}

	err = populateFromLegacy(db, area)
	db.Close()
	if err != nil {
		os.RemoveAll(scratch)
		return err
	}

	src := filepath.Join(scratch, wcdb.DBFile)
	dst := filepath.Join(adminDir, wcdb.DBFile)
	if err := os.Rename(src, dst); err != nil {
		os.RemoveAll(scratch)
		return wcerr.Wrap(wcerr.IOFailure, dst, err)
	}
	os.RemoveAll(scratch)

	if err := WriteMarker(adminDir, Version2); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(adminDir, LegacyEntriesFile)); err != nil {
		return wcerr.Wrap(wcerr.IOFailure, adminDir, err)
	}
	notify.Path(fn, "", notify.ActionUpgraded)
	return nil
}

func populateFromLegacy(db *wcdb.DB, area *LegacyArea) error {
	tx, err := db.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, entry := range area.Entries {
		for _, layer := range entry.Layers {
			rec, err := translateLayer(entry.RelPath, layer)
			if err != nil {
				return err
			}
			if err := db.WriteLayer(tx, rec); err != nil {
				return err
			}
		}
		if entry.Props != nil || entry.Conflict != "" || entry.Changelist != "" {
			actual := &wcdb.ActualNode{
				RelPath:      entry.RelPath,
				Properties:   entry.Props,
				ConflictData: entry.Conflict,
				Changelist:   entry.Changelist,
			}
			if err := db.SetActual(tx, actual); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// translateLayer validates one legacy layer. A row that cannot be
// faithfully translated fails the whole upgrade.
func translateLayer(relPath string, layer LegacyLayer) (*wcdb.NodeRecord, error) {
	kind := wcdb.Kind(layer.Kind)
	switch kind {
	case wcdb.KindFile, wcdb.KindDir, wcdb.KindSymlink, wcdb.KindUnknown:
	default:
		return nil, wcerr.New(wcerr.StoreCorruption, relPath,
			"untranslatable kind %q at op depth %d", layer.Kind, layer.OpDepth)
	}
	presence := wcdb.Presence(layer.Presence)
	switch presence {
	case wcdb.Normal, wcdb.Added, wcdb.Deleted, wcdb.NotPresent,
		wcdb.Excluded, wcdb.ServerExcluded, wcdb.Incomplete:
	default:
		return nil, wcerr.New(wcerr.StoreCorruption, relPath,
			"untranslatable presence %q at op depth %d", layer.Presence, layer.OpDepth)
	}
	if layer.OpDepth < 0 {
		return nil, wcerr.New(wcerr.StoreCorruption, relPath,
			"negative op depth %d", layer.OpDepth)
	}
	return &wcdb.NodeRecord{
		RelPath:    relPath,
		OpDepth:    layer.OpDepth,
		Kind:       kind,
		Presence:   presence,
		Revision:   layer.Revision,
		Checksum:   layer.Checksum,
		Properties: layer.Properties,
		MovedTo:    layer.MovedTo,
		MovedHere:  layer.MovedHere,
	}, nil
}
