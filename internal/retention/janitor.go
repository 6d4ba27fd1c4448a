// Package retention expires old inference logs. A janitor goroutine
// periodically archives rows older than the retention window and then
// purges them from the hot store.
//
// Archive failures are fail-safe: rows are NOT deleted if archiving fails.
// Without an archiver the janitor purges directly.
package retention

import (
	"context"
	"sort"
	"time"

	"github.com/agentoven/ragserve/internal/store"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultRetentionDays is the inference log retention window.
const DefaultRetentionDays = 30

// DefaultArchiveBatchSize is the max rows read per archive pass.
const DefaultArchiveBatchSize = 5000

// Archiver writes expired rows of one project to durable storage and
// returns the location written.
type Archiver interface {
	Kind() string
	ArchiveInferenceLogs(ctx context.Context, project string, logs []models.InferenceLog) (string, error)
}

// CycleStats tracks what happened in a single retention cycle.
type CycleStats struct {
	Archived int
	Purged   int
	URIs     []string
	Errors   []error
}

// Janitor periodically archives and purges expired inference logs.
type Janitor struct {
	store     store.InferenceLogStore
	interval  time.Duration
	retention time.Duration
	archiver  Archiver
	now       func() time.Time
}

// NewJanitor creates a janitor that keeps retentionDays of logs and runs
// on the given interval. archiver may be nil.
func NewJanitor(s store.InferenceLogStore, retentionDays int, interval time.Duration, archiver Archiver) *Janitor {
	if interval < time.Minute {
		interval = time.Hour // minimum 1 minute
	}
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Janitor{
		store:     s,
		interval:  interval,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		archiver:  archiver,
		now:       time.Now,
	}
}

// Start runs the janitor. It blocks until ctx is canceled.
func (j *Janitor) Start(ctx context.Context) {
	kind := "none"
	if j.archiver != nil {
		kind = j.archiver.Kind()
	}
	log.Info().
		Dur("interval", j.interval).
		Dur("retention", j.retention).
		Str("archiver", kind).
		Msg("Retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	j.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Retention janitor stopped")
			return
		case <-ticker.C:
			j.RunCycle(ctx)
		}
	}
}

// RunCycle performs one retention sweep.
func (j *Janitor) RunCycle(ctx context.Context) CycleStats {
	start := time.Now()
	cutoff := j.now().Add(-j.retention)
	var stats CycleStats

	if j.archiver != nil && !j.archive(ctx, cutoff, &stats) {
		for _, e := range stats.Errors {
			log.Warn().Err(e).Msg("Retention cycle error")
		}
		log.Warn().Msg("Archive failed, skipping purge")
		return stats
	}

	purged, err := j.store.PurgeInferenceLogs(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to purge expired inference logs")
		stats.Errors = append(stats.Errors, err)
		return stats
	}
	stats.Purged = purged

	if stats.Purged > 0 || stats.Archived > 0 {
		log.Info().
			Int("purged", stats.Purged).
			Int("archived", stats.Archived).
			Dur("elapsed", time.Since(start)).
			Msg("Retention cycle complete")
	}
	return stats
}

// archive writes every row older than cutoff, grouped per project. It
// reports false when any write failed.
func (j *Janitor) archive(ctx context.Context, cutoff time.Time, stats *CycleStats) bool {
	byProject := make(map[string][]models.InferenceLog)
	for offset := 0; ; offset += DefaultArchiveBatchSize {
		batch, err := j.store.ListInferenceLogs(ctx, "", store.ListFilter{
			Limit:  DefaultArchiveBatchSize,
			Offset: offset,
			Until:  &cutoff,
		})
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			return false
		}
		for _, l := range batch {
			byProject[l.Project] = append(byProject[l.Project], l)
		}
		if len(batch) < DefaultArchiveBatchSize {
			break
		}
	}

	projects := make([]string, 0, len(byProject))
	for p := range byProject {
		projects = append(projects, p)
	}
	sort.Strings(projects)

	allOK := true
	for _, p := range projects {
		rows := byProject[p]
		uri, err := j.archiver.ArchiveInferenceLogs(ctx, p, rows)
		if err != nil {
			log.Warn().Err(err).
				Str("project", p).
				Str("backend", j.archiver.Kind()).
				Int("rows", len(rows)).
				Msg("Failed to archive inference logs")
			stats.Errors = append(stats.Errors, err)
			allOK = false
			continue
		}
		stats.Archived += len(rows)
		stats.URIs = append(stats.URIs, uri)
	}
	return allOK
}
