package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"grimoire/internal/config"
	"grimoire/internal/parser"
	"grimoire/internal/scan"
	"grimoire/internal/store"
)

// Extension is the file suffix of entry text files.
const Extension = ".dma"

type Result struct {
	FilesRead      int
	FilesSkipped   int
	EntriesLoaded  int
	EntriesStored  int
	EntriesRemoved int
	Warnings       []scan.Warning
	Errors         []error
}

type Options struct {
	// Full re-stores every file even when its content hash is unchanged.
	Full bool
}

// Load reads every entry file of the configured sources into c, canonical
// sources first. With a store, entries of changed files are written
// through and entries of vanished files are removed.
func Load(ctx context.Context, c *Catalog, cfg *config.ProjectConfig, p *parser.Parser, st store.Store, opts Options) (*Result, error) {
	if st != nil {
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	sources := append([]config.Source(nil), cfg.Sources...)
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Canonical && !sources[j].Canonical
	})

	result := &Result{}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := loadSource(ctx, c, cfg, src, p, st, opts, result); err != nil {
			return result, err
		}
	}

	c.Finalize()
	return result, nil
}

func loadSource(ctx context.Context, c *Catalog, cfg *config.ProjectConfig, src config.Source, p *parser.Parser, st store.Store, opts Options, result *Result) error {
	var existingHashes map[string]string
	if st != nil && !opts.Full {
		var err error
		existingHashes, err = st.GetSourceHashes(ctx, src.Name)
		if err != nil {
			return fmt.Errorf("get source hashes for %s: %w", src.Name, err)
		}
	}

	files, err := WalkFiles(src.Paths, cfg.Exclude)
	if err != nil {
		return fmt.Errorf("walking files for source %s: %w", src.Name, err)
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("reading %s: %w", path, err))
			continue
		}
		result.FilesRead++
		hash := computeHash(data)

		entries, warnings := p.ParseString(path, string(data))
		result.Warnings = append(result.Warnings, warnings...)
		added := entries[:0]
		for _, e := range entries {
			if e.HasName() && c.Add(e, src.Name) {
				added = append(added, e)
			}
		}
		result.EntriesLoaded += len(added)

		if st == nil {
			continue
		}
		if existing, ok := existingHashes[path]; ok && existing == hash {
			result.FilesSkipped++
			continue
		}

		records := make([]store.Record, 0, len(added))
		for _, e := range added {
			records = append(records, store.NewRecord(p, e, src.Name, path, hash))
		}
		removed, err := st.ReplaceFile(ctx, src.Name, path, records)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("storing %s: %w", path, err))
			continue
		}
		result.EntriesStored += len(records)
		result.EntriesRemoved += int(removed)
	}

	if st != nil {
		deleted, err := st.RemoveStaleEntries(ctx, src.Name, files)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("removing stale entries for %s: %w", src.Name, err))
			return nil
		}
		result.EntriesRemoved += int(deleted)
	}
	return nil
}

// WalkFiles lists the entry files under roots, skipping excluded paths.
// An exclude is either a path prefix or a glob matched against the path
// and the file name.
func WalkFiles(roots []string, excludes []string) ([]string, error) {
	excluded := make([]string, 0, len(excludes))
	for _, path := range excludes {
		if path == "" {
			continue
		}
		excluded = append(excluded, filepath.Clean(path))
	}

	var files []string
	for _, root := range roots {
		if root == "" {
			continue
		}
		root = filepath.Clean(root)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if IsExcluded(path, excluded) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !IsEntryFile(d.Name()) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func IsEntryFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), Extension)
}

// IsExcluded reports whether path falls under one of the excludes.
func IsExcluded(path string, excludes []string) bool {
	clean := filepath.Clean(path)
	for _, exclude := range excludes {
		if exclude == "" {
			continue
		}
		exclude = filepath.Clean(exclude)
		if exclude == clean || strings.HasPrefix(clean, exclude+string(os.PathSeparator)) {
			return true
		}
		if ok, _ := filepath.Match(exclude, clean); ok {
			return true
		}
		if ok, _ := filepath.Match(exclude, filepath.Base(clean)); ok {
			return true
		}
	}
	return false
}

func computeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
