package manager

import "github.com/agenshield/skillcore/pkg/events"

// bridgedEvent is the external, stable event shape (spec §6): `name` is
// always present, `slug` is the resolved skill slug (never an installation
// UUID), and any additional payload fields ride along in Details.
type bridgedEvent struct {
	Event   string         `json:"event"`
	Name    string         `json:"name"`
	Slug    string         `json:"slug,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// bridgeEvents translates the internal event taxonomy into the documented
// public set and republishes it on the external bus, preserving identity
// (installation id as `name`, resolved slug as `slug`) exactly per spec §6.
func (m *Manager) bridgeEvents(sub events.Subscriber) {
	for e := range sub {
		out, ok := translate(e)
		if !ok {
			continue
		}
		m.externalBus.Publish(&events.Event{
			Kind:           events.Kind(out.Event),
			InstallationID: out.Name,
			Slug:           out.Slug,
			Error:          out.Error,
			Details:        out.Details,
		})
	}
}

func translate(e *events.Event) (bridgedEvent, bool) {
	switch e.Kind {
	case events.KindInstallStarted:
		return bridgedEvent{Event: "skills:install_started", Name: e.Slug, Slug: e.Slug}, true
	case events.KindInstallCompleted:
		return bridgedEvent{Event: "skills:installed", Name: e.InstallationID, Slug: e.Slug}, true
	case events.KindInstallError:
		return bridgedEvent{Event: "skills:install_failed", Name: e.InstallationID, Slug: e.Slug, Error: e.Error}, true
	case events.KindAnalyzeCompleted:
		return bridgedEvent{Event: "skills:analyzed", Name: e.VersionID, Slug: e.Slug, Details: map[string]any{"analysis": e.Details}}, true
	case events.KindAnalyzeError:
		return bridgedEvent{Event: "skills:analysis_failed", Name: e.VersionID, Slug: e.Slug, Error: e.Error}, true
	case events.KindUninstallCompleted:
		return bridgedEvent{Event: "skills:uninstalled", Name: e.InstallationID, Slug: e.Slug}, true
	case events.KindDeployCompleted:
		return bridgedEvent{Event: "skills:deployed", Name: e.InstallationID, Slug: e.Slug, Details: map[string]any{"adapterId": e.AdapterID}}, true
	case events.KindDeployError:
		return bridgedEvent{Event: "skills:deploy_failed", Name: e.InstallationID, Slug: e.Slug, Error: e.Error}, true
	case events.KindWatcherIntegrityViolation:
		details := map[string]any{"action": ""}
		if e.Details != nil {
			details = e.Details
		}
		return bridgedEvent{Event: "skills:integrity_violation", Name: e.InstallationID, Slug: e.Slug, Details: details}, true
	case events.KindWatcherReinstalled:
		return bridgedEvent{Event: "skills:integrity_restored", Name: e.InstallationID, Slug: e.Slug}, true
	case events.KindWatcherSkillDetected:
		return bridgedEvent{Event: "skills:quarantined", Name: e.Slug, Slug: e.Slug, Details: e.Details}, true
	default:
		return bridgedEvent{}, false
	}
}
