package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS links (
		id BIGSERIAL PRIMARY KEY,
		address VARCHAR(64) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL DEFAULT '',
		password VARCHAR(64) NOT NULL DEFAULT '',
		host VARCHAR(255) NOT NULL DEFAULT '',
		port INTEGER NOT NULL DEFAULT 0,
		flavour VARCHAR(16) NOT NULL DEFAULT 'normal'
	)`,
	`CREATE TABLE IF NOT EXISTS routes (
		id BIGSERIAL PRIMARY KEY,
		priority INTEGER NOT NULL DEFAULT 0,
		from_addr TEXT NOT NULL DEFAULT '*',
		to_addr TEXT NOT NULL DEFAULT '*',
		from_name TEXT NOT NULL DEFAULT '*',
		to_name TEXT NOT NULL DEFAULT '*',
		subject TEXT NOT NULL DEFAULT '*',
		link_id BIGINT NOT NULL REFERENCES links(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS rewrites (
		id BIGSERIAL PRIMARY KEY,
		"type" VARCHAR(16) NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		"last" BOOLEAN NOT NULL DEFAULT FALSE,
		orig_from_addr TEXT NOT NULL DEFAULT '*',
		orig_to_addr TEXT NOT NULL DEFAULT '*',
		orig_from_name TEXT NOT NULL DEFAULT '*',
		orig_to_name TEXT NOT NULL DEFAULT '*',
		orig_subject TEXT NOT NULL DEFAULT '*',
		new_from_addr TEXT NOT NULL DEFAULT '*',
		new_to_addr TEXT NOT NULL DEFAULT '*',
		new_from_name TEXT NOT NULL DEFAULT '*',
		new_to_name TEXT NOT NULL DEFAULT '*',
		new_subject TEXT NOT NULL DEFAULT '*'
	)`,
	`CREATE TABLE IF NOT EXISTS echoareas (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		link_id BIGINT NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		area_id BIGINT NOT NULL REFERENCES echoareas(id) ON DELETE CASCADE,
		"last" BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (link_id, area_id)
	)`,
	`CREATE TABLE IF NOT EXISTS echomail (
		id BIGSERIAL PRIMARY KEY,
		area_id BIGINT NOT NULL REFERENCES echoareas(id) ON DELETE CASCADE,
		from_addr VARCHAR(64) NOT NULL,
		from_name VARCHAR(64) NOT NULL DEFAULT '',
		to_name VARCHAR(64) NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		"date" TIMESTAMPTZ NOT NULL,
		msgid VARCHAR(255) NOT NULL DEFAULT '',
		"text" TEXT NOT NULL DEFAULT '',
		seenby TEXT NOT NULL DEFAULT '',
		"path" TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_echomail_area_id ON echomail(area_id, id)`,
	`CREATE TABLE IF NOT EXISTS netmail (
		id BIGSERIAL PRIMARY KEY,
		route_via BIGINT NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		from_addr VARCHAR(64) NOT NULL,
		to_addr VARCHAR(64) NOT NULL,
		from_name VARCHAR(64) NOT NULL DEFAULT '',
		to_name VARCHAR(64) NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		"date" TIMESTAMPTZ NOT NULL,
		"text" TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_netmail_route_via ON netmail(route_via)`,
	`CREATE TABLE IF NOT EXISTS dupes (
		area_id BIGINT NOT NULL,
		msgid VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (area_id, msgid)
	)`,
	`CREATE TABLE IF NOT EXISTS readsigns (
		link_id BIGINT NOT NULL,
		echomail_id BIGINT NOT NULL,
		PRIMARY KEY (link_id, echomail_id)
	)`,
}
