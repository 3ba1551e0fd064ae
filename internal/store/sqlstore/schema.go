package sqlstore

// schema is the tracked_elements table backing the relational element
// store: one wide table, string-typed enum columns, nullable XML blobs
// for the three optional snapshots plus the resolution payload.
const schema = `
CREATE TABLE IF NOT EXISTS tracked_elements (
	kind             VARCHAR(16)  NOT NULL,
	id               BIGINT       NOT NULL,
	local_state      VARCHAR(16)  NOT NULL,
	status           VARCHAR(24)  NOT NULL,
	has_original      BOOLEAN     NOT NULL DEFAULT FALSE,
	has_local         BOOLEAN     NOT NULL DEFAULT FALSE,
	has_upstream      BOOLEAN     NOT NULL DEFAULT FALSE,
	original_xml      TEXT,
	local_xml         TEXT,
	upstream_xml      TEXT,
	referred_by_kind  VARCHAR(16),
	referred_by_id    BIGINT,
	resolved_xml      TEXT,
	resolved_from     VARCHAR(16),
	PRIMARY KEY (kind, id)
)`
