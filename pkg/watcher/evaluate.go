package watcher

import (
	"context"

	"github.com/agenshield/skillcore/pkg/deploy"
	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/metrics"
	"github.com/agenshield/skillcore/pkg/types"
)

// handleFsChange is the per-event evaluation entry point (spec §4.7).
func (w *Watcher) handleFsChange(ctx context.Context, slug string) {
	if w.isSuppressed(slug) {
		return
	}

	skill, err := w.repo.GetBySlug(ctx, slug)
	if err != nil {
		w.scanForNewSkills(ctx)
		return
	}

	if w.skillHasActiveInstallation(ctx, skill) {
		w.checkSlugIntegrity(ctx, skill)
		return
	}

	w.scanForNewSkills(ctx)
}

func (w *Watcher) skillHasActiveInstallation(ctx context.Context, skill *types.Skill) bool {
	versions, err := w.repo.GetVersions(ctx, skill.ID)
	if err != nil {
		return false
	}
	for _, v := range versions {
		installations, err := w.repo.GetInstallations(ctx, v.ID)
		if err != nil {
			continue
		}
		for _, inst := range installations {
			if inst.Status == types.InstallActive {
				return true
			}
		}
	}
	return false
}

// checkSlugIntegrity checks every active installation of every version of
// skill.
func (w *Watcher) checkSlugIntegrity(ctx context.Context, skill *types.Skill) {
	versions, err := w.repo.GetVersions(ctx, skill.ID)
	if err != nil {
		return
	}
	for _, v := range versions {
		installations, err := w.repo.GetInstallations(ctx, v.ID)
		if err != nil {
			continue
		}
		for _, inst := range installations {
			if inst.Status != types.InstallActive {
				continue
			}
			w.checkInstallationIntegrity(ctx, skill, v, inst)
		}
	}
}

func (w *Watcher) checkInstallationIntegrity(ctx context.Context, skill *types.Skill, version *types.SkillVersion, inst *types.SkillInstallation) {
	files, err := w.repo.GetFiles(ctx, version.ID)
	if err != nil {
		return
	}

	check, matched, err := w.deploySvc.CheckIntegrity(ctx, inst, version, files)
	if err != nil || !matched {
		return
	}
	if check.Intact {
		return
	}

	w.handleIntegrityViolation(ctx, skill, version, inst, check)
}

// handleIntegrityViolation implements spec §4.7's violation handling steps.
func (w *Watcher) handleIntegrityViolation(ctx context.Context, skill *types.Skill, version *types.SkillVersion, inst *types.SkillInstallation, check deploy.IntegrityResult) {
	hasModifiedOrUnexpected := len(check.ModifiedFiles) > 0 || len(check.UnexpectedFiles) > 0
	hasMissing := len(check.MissingFiles) > 0
	policy := w.resolvedPolicy(inst.ID)
	action := decideAction(policy, hasModifiedOrUnexpected, hasMissing)

	adapterID := ""
	if a, ok := w.deploySvc.AdapterFor(inst.ProfileID); ok {
		adapterID = a.ID()
	}

	w.publish(&events.Event{
		Kind: events.KindWatcherIntegrityViolation, InstallationID: inst.ID, Slug: skill.Slug, VersionID: version.ID,
		AdapterID: adapterID,
		Details: map[string]any{
			"modifiedFiles":   check.ModifiedFiles,
			"missingFiles":    check.MissingFiles,
			"unexpectedFiles": check.UnexpectedFiles,
			"action":          string(action),
		},
	})

	metrics.WatcherViolationsTotal.WithLabelValues(string(action)).Inc()

	w.SuppressSlug(skill.Slug)
	defer w.UnsuppressSlug(skill.Slug)

	switch action {
	case types.ActionQuarantine:
		w.quarantineInstallation(ctx, skill, inst)
	case types.ActionReinstall:
		w.reinstallInstallation(ctx, skill, version, inst)
	}
}

func (w *Watcher) quarantineInstallation(ctx context.Context, skill *types.Skill, inst *types.SkillInstallation) {
	if err := w.repo.UpdateInstallationStatus(ctx, inst.ID, types.InstallQuarantined); err != nil {
		w.publish(&events.Event{Kind: events.KindWatcherActionError, InstallationID: inst.ID, Error: err.Error(),
			Details: map[string]any{"action": string(types.ActionQuarantine)}})
		return
	}

	deployedPath := deployedDirFor(w.deployRoot, skill.Slug)
	if _, err := moveOrRemove(deployedPath, w.quarantineRoot, skill.Slug); err != nil {
		w.publish(&events.Event{Kind: events.KindWatcherActionError, InstallationID: inst.ID, Error: err.Error(),
			Details: map[string]any{"action": string(types.ActionQuarantine)}})
		return
	}

	w.publish(&events.Event{Kind: events.KindWatcherQuarantined, InstallationID: inst.ID, Slug: skill.Slug})
}

// reinstallInstallation redeploys version over the tampered installation.
// deploySvc.Deploy prefers the Backup Store's immutable bytes over the
// version's source folder whenever a backup is registered, so a tampered
// file is restored from backup rather than re-read from a source location
// that may itself have been the thing that changed.
func (w *Watcher) reinstallInstallation(ctx context.Context, skill *types.Skill, version *types.SkillVersion, inst *types.SkillInstallation) {
	result, err := w.deploySvc.Deploy(ctx, inst, version, skill)
	if err != nil || result == nil {
		msg := "no adapter matched installation profile"
		if err != nil {
			msg = err.Error()
		}
		w.publish(&events.Event{Kind: events.KindWatcherActionError, InstallationID: inst.ID, Error: msg,
			Details: map[string]any{"action": string(types.ActionReinstall)}})
		return
	}

	w.publish(&events.Event{Kind: events.KindWatcherReinstalled, InstallationID: inst.ID, Slug: skill.Slug, VersionID: version.ID})
}
