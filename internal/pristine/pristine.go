// Package pristine stores base-revision file content addressed by checksum.
package pristine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"trak/internal/util"
	"trak/internal/wcerr"
)

// Store is a content-addressed object store. Objects are keyed by the
// BLAKE3 hex digest of their uncompressed content and stored zstd-compressed.
type Store struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens or creates a pristine store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, wcerr.Wrap(wcerr.IOFailure, dir, err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &Store{dir: dir, enc: enc, dec: dec}, nil
}

// Close releases the codec resources.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return nil
}

// Write stores content and returns its digest. Writing the same content
// twice is a no-op.
func (s *Store) Write(content []byte) (string, error) {
	digest := util.Blake3HashHex(content)
	objPath := s.objectPath(digest)

	if _, err := os.Stat(objPath); err == nil {
		return digest, nil
	}

	compressed := s.enc.EncodeAll(content, nil)
	tmp := objPath + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return "", wcerr.Wrap(wcerr.IOFailure, objPath, err)
	}
	if err := os.Rename(tmp, objPath); err != nil {
		os.Remove(tmp)
		return "", wcerr.Wrap(wcerr.IOFailure, objPath, err)
	}
	return digest, nil
}

// Read returns the content stored under digest.
func (s *Store) Read(digest string) ([]byte, error) {
	compressed, err := os.ReadFile(s.objectPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wcerr.New(wcerr.NotFound, digest, "no pristine text")
		}
		return nil, wcerr.Wrap(wcerr.IOFailure, digest, err)
	}
	content, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, wcerr.Wrap(wcerr.StoreCorruption, digest, err)
	}
	return content, nil
}

// Has reports whether content for digest is present.
func (s *Store) Has(digest string) bool {
	_, err := os.Stat(s.objectPath(digest))
	return err == nil
}

func (s *Store) objectPath(digest string) string {
	return filepath.Join(s.dir, digest)
}
