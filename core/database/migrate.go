package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/shopbot/core/logger"
)

const (
	readyTimeout   = 30 * time.Second
	previewEntries = 6
)

// RunMigrations brings the kv_entries schema up to the newest file in
// cfg.MigrationsDir.
func RunMigrations(ctx context.Context, cfg Config) error {
	fail := func(stage string, err error) error {
		logger.Error(ctx, "db.migrate", "db.migrate",
			slog.String("status", "fail"),
			slog.String("op", stage),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("migrations %s: %w", stage, err)
	}

	if err := WaitForPostgres(ctx, cfg.DSN(), readyTimeout); err != nil {
		return fail("wait", err)
	}
	dir, err := resolveMigrationsDir(cfg.MigrationsDir)
	if err != nil {
		return fail("resolve", err)
	}
	files := listMigrationFiles(dir)
	logger.Debug(ctx, "db.migrate", "db.migrate.resolve",
		append([]slog.Attr{slog.String("path", dir)}, fileSummary(files)...)...)

	m, err := migrate.New("file://"+dir, cfg.URL())
	if err != nil {
		return fail("init", err)
	}
	defer func() { _, _ = m.Close() }()

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fail("apply", upErr)
	}
	to, _, _ := m.Version()

	applied := appliedBetween(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.Debug(ctx, "db.migrate", "db.migrate.apply", fileSummary(applied)...)
	}
	logger.Info(ctx, "db.migrate", "db.migrate",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func fileSummary(files []string) []slog.Attr {
	attrs := []slog.Attr{slog.Int("files_total", len(files))}
	preview, cut := logger.SummarizeStrings(files, previewEntries)
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if cut {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

func resolveMigrationsDir(dir string) (string, error) {
	if dir == "" {
		dir = "migrations"
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	return abs, nil
}

// listMigrationFiles returns the sorted *.up.sql names in dir.
func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

// fileVersion parses the numeric prefix of a migration file name.
func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// appliedBetween returns the files with versions in (from, to].
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
