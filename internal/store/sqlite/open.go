package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"grimoire/internal/store"

	_ "modernc.org/sqlite"
)

const memoryDSN = ":memory:"

var _ store.Store = (*Client)(nil)

// Client stores entries in one sqlite file, or in memory for scratch runs
// and tests.
type Client struct {
	db *sql.DB
}

// New opens the database a sqlite:// DSN names, creating the directory
// that holds the file when it is missing.
func New(ctx context.Context, dsn string) (*Client, error) {
	driverDSN, err := parseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing sqlite DSN: %w", err)
	}
	memory := driverDSN == memoryDSN
	if !memory {
		path, _, _ := strings.Cut(driverDSN, "?")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", withPragmas(driverDSN, memory))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if memory {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	return &Client{db: db}, nil
}

// withPragmas adds the connection pragmas to the DSN so the driver applies
// them to every pooled connection. base_links relies on foreign keys for
// its cascade.
func withPragmas(driverDSN string, memory bool) string {
	pragmas := []string{"busy_timeout(30000)", "foreign_keys(1)"}
	if !memory {
		pragmas = append(pragmas, "journal_mode(WAL)")
	}
	q := url.Values{"_pragma": pragmas}.Encode()
	if strings.Contains(driverDSN, "?") {
		return driverDSN + "&" + q
	}
	return driverDSN + "?" + q
}

func (c *Client) Close(ctx context.Context) error {
	return c.db.Close()
}

// parseDSN turns a sqlite:// URL into a path the driver accepts. Relative
// paths are anchored at the working directory and a query string is kept.
func parseDSN(dsn string) (string, error) {
	rest, ok := strings.CutPrefix(dsn, "sqlite://")
	if !ok {
		return "", fmt.Errorf("invalid sqlite DSN scheme, expected sqlite://")
	}
	if rest == "" {
		return "", fmt.Errorf("sqlite DSN has no path")
	}
	if rest == memoryDSN {
		return memoryDSN, nil
	}

	path, query, _ := strings.Cut(rest, "?")
	unescaped, err := url.PathUnescape(path)
	if err != nil {
		return "", fmt.Errorf("unescaping path: %w", err)
	}
	path = unescaped

	if !filepath.IsAbs(path) && !strings.HasPrefix(path, "./") {
		path = "./" + path
	}
	if query != "" {
		return path + "?" + query, nil
	}
	return path, nil
}

// Path returns the database file a DSN points at, or "" for in-memory
// databases.
func Path(dsn string) (string, error) {
	p, err := parseDSN(dsn)
	if err != nil || p == memoryDSN {
		return "", err
	}
	p, _, _ = strings.Cut(p, "?")
	return filepath.Clean(p), nil
}
