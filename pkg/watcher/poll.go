package watcher

import (
	"context"
	"time"

	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/metrics"
)

// pollLoop is the interval-based detection source, running alongside the
// filesystem notifier for as long as the watcher is started. It exists
// because fsnotify can silently miss events under heavy I/O or on some
// filesystems/mounts — the poll cycle is the backstop that guarantees
// eventual consistency even if every notification was lost.
func (w *Watcher) pollLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll runs one full detection cycle: pick up any unknown drops, then check
// every actively-installed skill's on-disk bytes against its manifest.
func (w *Watcher) poll(ctx context.Context) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WatcherPollDuration)

	w.publish(&events.Event{Kind: events.KindWatcherPollStarted})

	w.scanForNewSkills(ctx)

	results, err := w.deploySvc.CheckAllIntegrity(ctx)
	if err != nil {
		w.publish(&events.Event{Kind: events.KindWatcherError, Error: err.Error()})
		return
	}

	violationCount := 0
	for installationID, check := range results {
		if check.Intact {
			continue
		}
		violationCount++
		inst, err := w.repo.GetInstallationByID(ctx, installationID)
		if err != nil {
			continue
		}
		version, err := w.repo.GetVersionByID(ctx, inst.SkillVersionID)
		if err != nil {
			continue
		}
		skill, err := w.repo.GetByID(ctx, version.SkillID)
		if err != nil {
			continue
		}
		w.handleIntegrityViolation(ctx, skill, version, inst, check)
	}

	w.publish(&events.Event{Kind: events.KindWatcherPollCompleted, Details: map[string]any{"violationCount": violationCount}})
}
