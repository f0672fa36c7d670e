package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/pkgforge/pkg/events"
	"github.com/cuemby/pkgforge/pkg/storage"
	"github.com/cuemby/pkgforge/pkg/types"
	"github.com/rs/zerolog"
)

const defaultInterval = 60 * time.Second

// VersionEntry is one qualifying version under a PackageEntry (spec §6).
type VersionEntry struct {
	Version           string      `json:"version"`
	Dependencies      [][2]string `json:"dependencies"`
	Incompatibilities [][2]string `json:"incompatibilities"`
	XPlaneSelection   string      `json:"xplaneSelection"`
}

// PackageEntry is one published catalog package, grouping every
// Processed+IsPublic version together with the package's own metadata
// (spec §6).
type PackageEntry struct {
	PackageID   string         `json:"packageId"`
	PackageName string         `json:"packageName"`
	AuthorID    string         `json:"authorId"`
	AuthorName  string         `json:"authorName"`
	Description string         `json:"description"`
	PackageType types.PackageType `json:"packageType"`
	Versions    []VersionEntry `json:"versions"`
}

// Snapshot is the full catalog document written to disk, matching
// spec §6's external contract exactly: {"generated", "packages":[...]}.
type Snapshot struct {
	Generated time.Time      `json:"generated"`
	Packages  []PackageEntry `json:"packages"`
}

// Snapshotter periodically renders the catalog to outputPath.
type Snapshotter struct {
	store      storage.Store
	outputPath string
	interval   time.Duration
	logger     zerolog.Logger

	mu     sync.RWMutex
	latest *Snapshot

	stopCh chan struct{}
	events *events.Broker
}

// WithEvents attaches an event broker; snapshot generation publishes
// events.EventCatalogSnapshot to it. Optional — a Snapshotter with no
// broker attached simply skips publishing.
func (s *Snapshotter) WithEvents(broker *events.Broker) *Snapshotter {
	s.events = broker
	return s
}

// New builds a Snapshotter that writes to outputPath every interval
// (zero selects the 60s default).
func New(store storage.Store, outputPath string, interval time.Duration, logger zerolog.Logger) *Snapshotter {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Snapshotter{
		store:      store,
		outputPath: outputPath,
		interval:   interval,
		logger:     logger.With().Str("component", "catalog").Logger(),
		stopCh:     make(chan struct{}),
	}
}

// Start runs one snapshot immediately, then begins the periodic loop.
func (s *Snapshotter) Start() {
	if err := s.snapshot(); err != nil {
		s.logger.Error().Err(err).Msg("initial catalog snapshot failed")
	}
	go s.run()
}

// Stop ends the periodic loop.
func (s *Snapshotter) Stop() {
	close(s.stopCh)
}

func (s *Snapshotter) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.snapshot(); err != nil {
				s.logger.Error().Err(err).Msg("catalog snapshot cycle failed")
			}
		case <-s.stopCh:
			return
		}
	}
}

// Latest returns the most recently generated snapshot, or nil if
// Start has not yet produced one.
func (s *Snapshotter) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// snapshot projects every Processed+IsPublic version, grouped by
// Package, into the documented catalog shape (spec §4.9, §6).
func (s *Snapshotter) snapshot() error {
	pkgs, err := s.store.ListPackages()
	if err != nil {
		return err
	}

	authorNames := make(map[string]string)

	packages := make([]PackageEntry, 0, len(pkgs))
	totalVersions := 0
	for _, pkg := range pkgs {
		versions := make([]VersionEntry, 0, len(pkg.Versions))
		for _, vr := range pkg.Versions {
			if vr.Status != types.VersionStatusProcessed || !vr.IsPublic {
				continue
			}
			versions = append(versions, VersionEntry{
				Version:           vr.Version.Format(),
				Dependencies:      dependencyPairs(vr.Dependencies),
				Incompatibilities: dependencyPairs(vr.Incompatibles),
				XPlaneSelection:   vr.XPlaneSelector,
			})
		}
		if len(versions) == 0 {
			continue
		}

		authorName, ok := authorNames[pkg.AuthorID]
		if !ok {
			if author, err := s.store.GetAuthor(pkg.AuthorID); err == nil {
				authorName = author.Name
			}
			authorNames[pkg.AuthorID] = authorName
		}

		packages = append(packages, PackageEntry{
			PackageID:   pkg.ID,
			PackageName: pkg.Name,
			AuthorID:    pkg.AuthorID,
			AuthorName:  authorName,
			Description: pkg.Description,
			PackageType: pkg.Type,
			Versions:    versions,
		})
		totalVersions += len(versions)
	}

	snap := &Snapshot{Generated: time.Now().UTC(), Packages: packages}

	if s.outputPath != "" {
		if err := writeAtomic(s.outputPath, snap); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	s.logger.Info().Int("packages", len(packages)).Int("versions", totalVersions).Msg("catalog snapshot generated")
	if s.events != nil {
		s.events.Publish(&events.Event{
			Type:    events.EventCatalogSnapshot,
			Message: "catalog snapshot generated",
			Metadata: map[string]string{
				"packages": strconv.Itoa(len(packages)),
				"versions": strconv.Itoa(totalVersions),
			},
		})
	}
	return nil
}

// dependencyPairs renders deps as [packageId, selectionExpr] pairs,
// the same shape manifest.json uses (spec §6).
func dependencyPairs(deps []types.Dependency) [][2]string {
	out := make([][2]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, [2]string{d.PackageID, d.Constraint})
	}
	return out
}

func writeAtomic(path string, snap *Snapshot) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".catalog-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}
