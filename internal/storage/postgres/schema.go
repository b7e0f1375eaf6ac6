package postgres

import "github.com/mcoot/turnclock/internal/model"

// Record kinds stored alongside the model's Room and Presence variants
const (
	kindPlayer           model.RecordKind = "player"
	kindRegisteredPlayer model.RecordKind = "registered_player"
	kindUsername         model.RecordKind = "username"
)

const schema = `
CREATE TABLE IF NOT EXISTS tclock_records (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	version    BIGINT      NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS tclock_records_kind_created ON tclock_records (kind, created_at);
`

const (
	upsertRecordSQL = `
INSERT INTO tclock_records (kind, id, data) VALUES ($1, $2, $3)
ON CONFLICT (kind, id) DO UPDATE SET data = EXCLUDED.data, version = tclock_records.version + 1, updated_at = now()`

	insertRecordSQL = `
INSERT INTO tclock_records (kind, id, data) VALUES ($1, $2, $3)
ON CONFLICT (kind, id) DO NOTHING`

	selectRecordSQL = `SELECT data, version FROM tclock_records WHERE kind = $1 AND id = $2`

	selectKindSQL = `SELECT data, version FROM tclock_records WHERE kind = $1 ORDER BY created_at`

	casRecordSQL = `
UPDATE tclock_records SET data = $3, version = version + 1, updated_at = now()
WHERE kind = $1 AND id = $2 AND version = $4`

	deleteRecordSQL = `DELETE FROM tclock_records WHERE kind = $1 AND id = $2`

	notifySQL = `SELECT pg_notify($1, $2)`
)
