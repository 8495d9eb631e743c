package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// sqlitePragmas は接続ごとに適用するPRAGMA。
var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
}

// sqliteSchema はSQLite用のスキーマ。何度適用しても同じ結果になる。
// tasks_ftsはtasksを外部コンテンツとするFTS5テーブルで、トリガーで同期する。
// 時刻はUTCの固定長テキストで保存し、文字列比較で時系列順に並ぶようにする。
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id                       TEXT PRIMARY KEY,
		name                     TEXT NOT NULL,
		email                    TEXT NOT NULL UNIQUE,
		password_hash            TEXT NOT NULL,
		refresh_token            TEXT NOT NULL DEFAULT '',
		refresh_token_expires_at TEXT,
		created_at               TEXT NOT NULL,
		updated_at               TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_refresh_token_expires_at
		ON users (refresh_token_expires_at);

	CREATE TABLE IF NOT EXISTS tasks (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT    NOT NULL UNIQUE,
		owner_id    TEXT    NOT NULL REFERENCES users (id),
		title       TEXT    NOT NULL,
		description TEXT    NOT NULL DEFAULT '',
		priority    TEXT    NOT NULL DEFAULT 'low'
		            CHECK (priority IN ('low', 'medium', 'high')),
		status      TEXT    NOT NULL DEFAULT 'To Do'
		            CHECK (status IN ('To Do', 'In Progress', 'Done')),
		due_date    TEXT,
		created_at  TEXT    NOT NULL,
		updated_at  TEXT    NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_owner_status_priority ON tasks (owner_id, status, priority);
	CREATE INDEX IF NOT EXISTS idx_tasks_owner_created_at ON tasks (owner_id, created_at);

	CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
		title,
		description,
		content='tasks',
		content_rowid='seq',
		tokenize='porter unicode61'
	);

	CREATE TRIGGER IF NOT EXISTS tasks_fts_insert AFTER INSERT ON tasks BEGIN
		INSERT INTO tasks_fts(rowid, title, description)
		VALUES (new.seq, new.title, new.description);
	END;

	CREATE TRIGGER IF NOT EXISTS tasks_fts_delete AFTER DELETE ON tasks BEGIN
		INSERT INTO tasks_fts(tasks_fts, rowid, title, description)
		VALUES ('delete', old.seq, old.title, old.description);
	END;

	CREATE TRIGGER IF NOT EXISTS tasks_fts_update AFTER UPDATE ON tasks BEGIN
		INSERT INTO tasks_fts(tasks_fts, rowid, title, description)
		VALUES ('delete', old.seq, old.title, old.description);
		INSERT INTO tasks_fts(rowid, title, description)
		VALUES (new.seq, new.title, new.description);
	END;
`

// OpenSQLite はSQLiteデータベースを開き、PRAGMAとスキーマを適用する。
// dsnはファイルパスまたは"file:"形式のURIを指定する。
// PRAGMAは接続単位の設定のため、接続数を1に制限する。
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragma %q: %w", p, err)
		}
	}

	if err := ApplySQLiteSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ApplySQLiteSchema はSQLiteスキーマを適用する。
func ApplySQLiteSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return nil
}
