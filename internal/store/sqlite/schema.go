package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS entries (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		id              TEXT NOT NULL UNIQUE,
		category        TEXT NOT NULL,
		name            TEXT NOT NULL,
		name_normalized TEXT NOT NULL,
		base_category   TEXT NOT NULL,
		source          TEXT NOT NULL,
		source_file     TEXT,
		source_hash     TEXT,
		bases           TEXT DEFAULT '[]',
		extensions      TEXT DEFAULT '[]',
		attributes      TEXT DEFAULT '{}',
		body            TEXT DEFAULT '',
		last_ingested   TEXT DEFAULT (datetime('now')),
		CONSTRAINT uq_entry_key UNIQUE (category, name_normalized)
	);

	CREATE TABLE IF NOT EXISTS base_links (
		entry_id        TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
		position        INTEGER NOT NULL,
		base_category   TEXT NOT NULL,
		base_name       TEXT NOT NULL,
		base_normalized TEXT NOT NULL,
		CONSTRAINT uq_base_link UNIQUE (entry_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_source ON entries (source);
	CREATE INDEX IF NOT EXISTS idx_entries_category ON entries (category);
	CREATE INDEX IF NOT EXISTS idx_entries_source_file ON entries (source, source_file);
	CREATE INDEX IF NOT EXISTS idx_base_links_target ON base_links (base_category, base_normalized);

	CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
		name,
		attributes,
		body,
		content=entries,
		content_rowid=seq
	);

	CREATE TRIGGER IF NOT EXISTS entries_ai AFTER INSERT ON entries BEGIN
		INSERT INTO entries_fts(rowid, name, attributes, body)
		VALUES (new.seq, new.name, new.attributes, new.body);
	END;

	CREATE TRIGGER IF NOT EXISTS entries_ad AFTER DELETE ON entries BEGIN
		INSERT INTO entries_fts(entries_fts, rowid, name, attributes, body)
		VALUES ('delete', old.seq, old.name, old.attributes, old.body);
	END;

	CREATE TRIGGER IF NOT EXISTS entries_au AFTER UPDATE ON entries BEGIN
		INSERT INTO entries_fts(entries_fts, rowid, name, attributes, body)
		VALUES ('delete', old.seq, old.name, old.attributes, old.body);
		INSERT INTO entries_fts(rowid, name, attributes, body)
		VALUES (new.seq, new.name, new.attributes, new.body);
	END;
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	statements := splitStatements(ddl)
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

// splitStatements splits a DDL script on statement-ending semicolons.
// Semicolons inside a trigger body do not end the statement.
func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder
	inTrigger := false

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(stripped), "CREATE TRIGGER") {
			inTrigger = true
		}
		current.WriteString(line)
		current.WriteString("\n")

		end := strings.HasSuffix(stripped, ";")
		if inTrigger {
			end = strings.EqualFold(stripped, "END;")
		}
		if end {
			statements = append(statements, current.String())
			current.Reset()
			inTrigger = false
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}

	return statements
}
