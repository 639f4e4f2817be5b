// Package main loads a YAML content catalog into the site database.
//
// Usage:
//
//	seed -file catalog.yaml [-reset] [-sections courses,events]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/csdept/csweb/internal/config"
	"github.com/csdept/csweb/internal/logger"
	"github.com/csdept/csweb/internal/sliceutil"
	"github.com/csdept/csweb/internal/storage"
)

const seedTimeout = 5 * time.Minute

var allSections = []string{"courses", "events", "faculty", "calendar", "compexam"}

func main() {
	os.Exit(run())
}

func run() int {
	file := flag.String("file", "catalog.yaml", "path to the YAML catalog")
	reset := flag.Bool("reset", false, "clear content tables before seeding (admins are kept)")
	sections := flag.String("sections", strings.Join(allSections, ","), "comma-separated sections to seed")
	flag.Parse()

	cfg, err := config.LoadForMode(config.ToolMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	log := logger.New(cfg.LogLevel)

	selected, err := parseSections(*sections)
	if err != nil {
		log.WithError(err).Error("Invalid -sections")
		return 2
	}

	f, err := os.Open(*file)
	if err != nil {
		log.WithError(err).WithField("file", *file).Error("Failed to open catalog")
		return 1
	}
	catalog, err := parseCatalog(f)
	_ = f.Close()
	if err != nil {
		log.WithError(err).Error("Failed to read catalog")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	db, err := storage.New(ctx, cfg.DBPath)
	if err != nil {
		log.WithError(err).Error("Failed to open database")
		return 1
	}
	defer func() { _ = db.Close() }()

	log.WithFields(map[string]any{
		"file":     *file,
		"db_path":  cfg.DBPath,
		"sections": selected,
		"reset":    *reset,
	}).Info("Seeding content")

	if *reset {
		if err := resetContent(ctx, db); err != nil {
			log.WithError(err).Error("Reset failed")
			return 1
		}
		log.Info("✓ Content tables cleared")
	}

	start := time.Now()
	s := newSeeder(db, log)
	if err := s.apply(ctx, catalog, selected); err != nil {
		log.WithError(err).Error("Seed failed")
		return 1
	}

	for _, name := range sortedKeys(s.stats.created, s.stats.skipped) {
		log.WithFields(map[string]any{
			"created": s.stats.created[name],
			"skipped": s.stats.skipped[name],
		}).Infof("✓ %s", name)
	}
	log.WithField("duration", time.Since(start).Round(time.Millisecond).String()).Info("✅ Seed complete")
	return 0
}

// parseSections splits a comma-separated section list, rejecting unknown names.
func parseSections(s string) ([]string, error) {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}
	out := sliceutil.Deduplicate(parts, func(name string) string { return name })
	for _, name := range out {
		if !slices.Contains(allSections, name) {
			return nil, fmt.Errorf("unknown section %q (valid: %s)", name, strings.Join(allSections, ", "))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sections selected")
	}
	return out, nil
}

func sortedKeys(maps ...map[string]int) []string {
	var keys []string
	for _, m := range maps {
		for k := range m {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)
	return keys
}
