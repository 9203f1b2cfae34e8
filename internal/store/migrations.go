package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	provider_hint TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS folders (
	account_id TEXT NOT NULL,
	id         TEXT NOT NULL,
	name       TEXT NOT NULL,
	role       TEXT NOT NULL DEFAULT 'folder',
	unread     INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (account_id, id)
);

CREATE TABLE IF NOT EXISTS headers (
	account_id      TEXT NOT NULL,
	id              TEXT NOT NULL,
	folder_id       TEXT NOT NULL,
	subject         TEXT NOT NULL DEFAULT '',
	from_name       TEXT NOT NULL DEFAULT '',
	from_email      TEXT NOT NULL DEFAULT '',
	date            DATETIME NOT NULL,
	is_unread       INTEGER NOT NULL DEFAULT 0,
	has_attachments INTEGER NOT NULL DEFAULT 0,
	size            INTEGER NOT NULL DEFAULT 0,
	cached_at       DATETIME NOT NULL,
	PRIMARY KEY (account_id, id)
);

CREATE TABLE IF NOT EXISTS bodies (
	account_id  TEXT NOT NULL,
	id          TEXT NOT NULL,
	folder_id   TEXT NOT NULL,
	body_html   TEXT NOT NULL DEFAULT '',
	body_text   TEXT NOT NULL DEFAULT '',
	attachments TEXT NOT NULL DEFAULT '[]',
	cached_at   DATETIME NOT NULL,
	PRIMARY KEY (account_id, id)
);

CREATE TABLE IF NOT EXISTS outbox (
	id             TEXT PRIMARY KEY,
	account_id     TEXT NOT NULL,
	created_at     DATETIME NOT NULL,
	to_addrs       TEXT NOT NULL,
	cc_addrs       TEXT NOT NULL DEFAULT '',
	bcc_addrs      TEXT NOT NULL DEFAULT '',
	subject        TEXT NOT NULL DEFAULT '',
	body_text      TEXT NOT NULL DEFAULT '',
	body_html      TEXT NOT NULL DEFAULT '',
	sent_folder_id TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'queued'
		CHECK(status IN ('queued', 'sending', 'failed')),
	last_error     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL,
	read       INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_folders_account ON folders(account_id);
CREATE INDEX IF NOT EXISTS idx_headers_account ON headers(account_id);
CREATE INDEX IF NOT EXISTS idx_headers_folder ON headers(account_id, folder_id);
CREATE INDEX IF NOT EXISTS idx_headers_date ON headers(date);
CREATE INDEX IF NOT EXISTS idx_bodies_account ON bodies(account_id);
CREATE INDEX IF NOT EXISTS idx_outbox_account ON outbox(account_id);
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status);
CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(read);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
