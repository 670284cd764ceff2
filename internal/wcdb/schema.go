package wcdb

// Schema of the current (format 2) store. NODES holds one row per
// (local_relpath, op_depth) layer; op_depth 0 is the base layer, higher
// depths are pending local operations. ACTUAL_NODE is the uncommitted
// overlay: property diffs, conflict blobs, changelist membership.
const schema = `
CREATE TABLE IF NOT EXISTS wcroot (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	wc_id TEXT NOT NULL,
	repos_url TEXT NOT NULL DEFAULT '',
	revision INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS nodes (
	wc_id TEXT NOT NULL,
	local_relpath TEXT NOT NULL,
	op_depth INTEGER NOT NULL,
	parent_relpath TEXT,
	kind TEXT NOT NULL,
	presence TEXT NOT NULL,
	revision INTEGER NOT NULL DEFAULT 0,
	checksum TEXT NOT NULL DEFAULT '',
	properties TEXT NOT NULL DEFAULT '{}',
	moved_to TEXT NOT NULL DEFAULT '',
	moved_here INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (wc_id, local_relpath, op_depth)
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(wc_id, parent_relpath);
CREATE INDEX IF NOT EXISTS idx_nodes_moved_to ON nodes(wc_id, moved_to) WHERE moved_to != '';

CREATE TABLE IF NOT EXISTS actual_node (
	wc_id TEXT NOT NULL,
	local_relpath TEXT NOT NULL,
	properties TEXT,
	conflict_data TEXT,
	changelist TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (wc_id, local_relpath)
);

CREATE TABLE IF NOT EXISTS file_cache (
	path TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	mtime INTEGER NOT NULL,
	digest TEXT NOT NULL
);
`
