package wcdb

import (
	"database/sql"
	"os"

	"github.com/golang/glog"

	"trak/internal/util"
)

// CachedDigest returns the cached content digest for relPath if the cached
// (size, mtime) still matches info, or "" when the entry is absent or stale.
func (db *DB) CachedDigest(relPath string, info os.FileInfo) string {
	var size, mtime int64
	var digest string
	err := db.conn.QueryRow(`
		SELECT size, mtime, digest FROM file_cache WHERE path = ?
	`, relPath).Scan(&size, &mtime, &digest)
	if err == sql.ErrNoRows {
		return ""
	}
	if err != nil {
		glog.Warningf("file cache read for %s: %v", relPath, err)
		return ""
	}
	if size == info.Size() && mtime == info.ModTime().UnixNano() {
		return digest
	}
	return ""
}

// DigestFor returns the digest of content, consulting and refreshing the
// (size, mtime) cache so unchanged files are not rehashed on every walk.
func (db *DB) DigestFor(relPath string, info os.FileInfo, content []byte) string {
	if cached := db.CachedDigest(relPath, info); cached != "" {
		return cached
	}
	digest := util.Blake3HashHex(content)
	_, err := db.conn.Exec(`
		INSERT OR REPLACE INTO file_cache (path, size, mtime, digest)
		VALUES (?, ?, ?, ?)
	`, relPath, info.Size(), info.ModTime().UnixNano(), digest)
	if err != nil {
		// Cache write failure costs a rehash later, nothing more.
		glog.Warningf("file cache write for %s: %v", relPath, err)
	}
	return digest
}

// DropCachedDigest removes the cache entry for relPath.
func (db *DB) DropCachedDigest(relPath string) {
	if _, err := db.conn.Exec(`DELETE FROM file_cache WHERE path = ?`, relPath); err != nil {
		glog.Warningf("file cache delete for %s: %v", relPath, err)
	}
}
