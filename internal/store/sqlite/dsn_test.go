package sqlite

import (
	"strings"
	"testing"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{dsn: "sqlite://:memory:", want: ":memory:"},
		{dsn: "sqlite:///var/lib/grimoire.db", want: "/var/lib/grimoire.db"},
		{dsn: "sqlite://./data/grimoire.db", want: "./data/grimoire.db"},
		{dsn: "sqlite://data/grimoire.db", want: "./data/grimoire.db"},
		{dsn: "sqlite://my%20rules.db?_pragma=foo", want: "./my rules.db?_pragma=foo"},
		{dsn: "postgres://localhost/db", wantErr: true},
		{dsn: "sqlite://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			got, err := parseDSN(tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Fatalf("parseDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
			}
		})
	}
}

func TestSplitStatementsKeepsTriggerBodies(t *testing.T) {
	ddl := `
	CREATE TABLE a (x INTEGER);
	-- comment;
	CREATE TRIGGER t AFTER INSERT ON a BEGIN
		INSERT INTO b VALUES (new.x);
		INSERT INTO c VALUES (new.x);
	END;
	CREATE INDEX i ON a (x);
	`
	stmts := splitStatements(ddl)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.Contains(stmts[1], "INSERT INTO c") || !strings.Contains(stmts[1], "END;") {
		t.Fatalf("expected trigger kept whole, got %q", stmts[1])
	}
	if strings.Contains(stmts[0], "comment") {
		t.Fatalf("expected comment dropped, got %q", stmts[0])
	}
}
