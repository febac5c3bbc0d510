package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/cppmodule/internal/builder"
	"github.com/phobologic/cppmodule/internal/config"
	"github.com/phobologic/cppmodule/internal/cppfront"
	"github.com/phobologic/cppmodule/internal/discover"
	"github.com/phobologic/cppmodule/internal/lang"
	"github.com/phobologic/cppmodule/internal/module"
	"github.com/phobologic/cppmodule/internal/specs"
	"github.com/phobologic/cppmodule/internal/toon"
)

// source is one file to build.
type source struct {
	path string // as reported: relative to the argument it was found under
	abs  string
	lang *lang.Language
}

// collectFiles expands directory arguments and checks file arguments. The
// result keeps argument order and drops repeats.
func collectFiles(paths, languages []string) ([]source, error) {
	seen := make(map[string]struct{})
	var out []source
	add := func(path string, l *lang.Language) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		if _, dup := seen[abs]; dup {
			return nil
		}
		seen[abs] = struct{}{}
		out = append(out, source{path: filepath.ToSlash(path), abs: abs, lang: l})
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("source path: %w", err)
		}
		if !info.IsDir() {
			l := lang.ForFile(filepath.Ext(p))
			if l == nil {
				return nil, fmt.Errorf("%s: not a C or C++ source", p)
			}
			if err := add(p, l); err != nil {
				return nil, err
			}
			continue
		}

		entries, err := discover.Files(p, languages)
		if err != nil {
			return nil, fmt.Errorf("discovering files: %w", err)
		}
		for _, e := range entries {
			if err := add(filepath.Join(p, e.Path), lang.Languages[e.Language]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func filterBySize(files []source, maxSize int64, logger *slog.Logger) []source {
	if maxSize <= 0 {
		return files
	}
	var kept []source
	for _, f := range files {
		fi, err := os.Stat(f.abs)
		if err != nil {
			kept = append(kept, f) // keep if can't stat
			continue
		}
		if fi.Size() > maxSize {
			logger.Warn("skipped, file too large",
				slog.String("path", f.path),
				slog.Int64("size", fi.Size()),
				slog.Int64("limit", maxSize))
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

const cacheKeyPrefix = "# cppmodule config "

// configKey fingerprints the effective config, so a cache written under
// different settings is never reused.
func configKey(cfg config.Config) (string, error) {
	data, err := cfg.Marshal()
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}

// readCache returns the cached output if the cache was written under key
// and is newer than every file.
func readCache(cachePath, key string, files []source) ([]byte, bool) {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return nil, false
	}
	cacheMtime := cacheInfo.ModTime()

	for _, f := range files {
		fi, err := os.Stat(f.abs)
		if err != nil {
			return nil, false
		}
		if !fi.ModTime().Before(cacheMtime) {
			return nil, false
		}
	}

	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, false
	}
	header, output, ok := bytes.Cut(data, []byte("\n"))
	if !ok || string(header) != cacheKeyPrefix+key {
		return nil, false
	}
	return output, true
}

func writeCache(cachePath, key, output string) error {
	return os.WriteFile(cachePath, []byte(cacheKeyPrefix+key+"\n"+output+"\n"), 0o644)
}

// buildConcurrent builds every file on its own goroutine, bounded by
// cfg.Workers. Unreadable files are skipped with a warning; a builder
// invariant violation stops the run. Units come back in file order.
func buildConcurrent(ctx context.Context, files []source, cfg config.Config, logger *slog.Logger) ([]toon.Unit, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	units := make([]toon.Unit, len(files))
	built := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			u, err := buildFile(gctx, f, cfg, logger)
			if errors.Is(err, builder.ErrInvariant) {
				return err
			}
			if err != nil {
				logger.Warn("skipped", slog.String("path", f.path), slog.Any("error", err))
				return nil
			}
			units[i] = u
			built[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []toon.Unit
	for i, ok := range built {
		if ok {
			out = append(out, units[i])
		}
	}
	return out, nil
}

// buildFile parses one file and builds its module. Each call gets its own
// parser, filter and collector.
func buildFile(ctx context.Context, f source, cfg config.Config, logger *slog.Logger) (toon.Unit, error) {
	data, err := os.ReadFile(f.abs)
	if err != nil {
		return toon.Unit{}, err
	}

	res, err := cppfront.NewParser(f.lang).Parse(ctx, data, f.path)
	if err != nil {
		return toon.Unit{}, err
	}
	if res.SyntaxErrors > 0 {
		logger.Warn("syntax errors, building partial module",
			slog.String("path", f.path),
			slog.Int("errors", res.SyntaxErrors))
	}

	flt, err := cfg.Filter()
	if err != nil {
		return toon.Unit{}, err
	}
	m := module.New(f.path)
	rec := &specs.Recorder{}
	opts := builder.Options{
		Templates: cfg.Templates,
		Logger:    logger.With(slog.String("path", f.path)),
	}
	if err := builder.Build(ctx, res.Graph, m, flt, rec, opts); err != nil {
		return toon.Unit{}, fmt.Errorf("%s: %w", f.path, err)
	}

	return toon.Unit{
		Module:       m,
		Specs:        rec.Specs,
		Header:       lang.IsHeader(f.path),
		SyntaxErrors: res.SyntaxErrors,
	}, nil
}
