package events

// External is one entry on the outward-facing SSE surface (spec §6): the
// control plane's "event" field plus a JSON-able payload. Name is retained
// for backward compatibility as the installation identifier on most
// variants; Slug (when present) is always the resolved skill slug, never
// an installation UUID.
type External struct {
	EventName string // e.g. "skills:installed"
	Name      string
	Slug      string
	Payload   map[string]any
}

// Bridge translates internal Bus events into the external SSE surface
// documented in spec §6, preserving identity (slug / installation id) and
// emission order (it is driven by the same single-subscriber read loop the
// internal Bus already serializes through).
type Bridge struct {
	sink func(External)
}

// NewBridge creates a Bridge that calls sink for every internal event that
// has an external mapping. Events with no mapping are dropped silently —
// they are internal-only (e.g. watcher:fs-change, watcher:started).
func NewBridge(sink func(External)) *Bridge {
	return &Bridge{sink: sink}
}

// Run reads from sub until it is closed, translating and forwarding each
// event. Call this in its own goroutine, typically against a subscription
// the Manager obtained via Bus.Subscribe().
func (b *Bridge) Run(sub Subscriber) {
	for e := range sub {
		if ext, ok := translate(e); ok {
			b.sink(ext)
		}
	}
}

func translate(e *Event) (External, bool) {
	switch e.Kind {
	case KindInstallStarted:
		return External{EventName: "skills:install_started", Name: e.Slug, Slug: e.Slug}, true
	case KindInstallCompleted:
		return External{EventName: "skills:installed", Name: e.InstallationID, Slug: e.Slug}, true
	case KindInstallError:
		return External{
			EventName: "skills:install_failed",
			Name:      e.Slug,
			Slug:      e.Slug,
			Payload:   map[string]any{"error": e.Error},
		}, true
	case KindAnalyzeCompleted:
		return External{
			EventName: "skills:analyzed",
			Name:      e.VersionID,
			Slug:      e.Slug,
			Payload:   map[string]any{"analysis": e.Details["analysis"]},
		}, true
	case KindAnalyzeError:
		return External{
			EventName: "skills:analysis_failed",
			Name:      e.VersionID,
			Slug:      e.Slug,
			Payload:   map[string]any{"error": e.Error},
		}, true
	case KindUninstallCompleted:
		return External{EventName: "skills:uninstalled", Name: e.InstallationID, Slug: e.Slug}, true
	case KindDeployCompleted:
		return External{
			EventName: "skills:deployed",
			Name:      e.InstallationID,
			Slug:      e.Slug,
			Payload:   map[string]any{"adapterId": e.AdapterID},
		}, true
	case KindDeployError:
		return External{
			EventName: "skills:deploy_failed",
			Name:      e.InstallationID,
			Slug:      e.Slug,
			Payload:   map[string]any{"error": e.Error},
		}, true
	case KindWatcherIntegrityViolation:
		return External{
			EventName: "skills:integrity_violation",
			Name:      e.InstallationID,
			Slug:      e.Slug,
			Payload:   e.Details,
		}, true
	case KindWatcherReinstalled:
		return External{EventName: "skills:integrity_restored", Name: e.InstallationID, Slug: e.Slug}, true
	case KindWatcherSkillDetected:
		return External{
			EventName: "skills:quarantined",
			Name:      e.Slug,
			Slug:      e.Slug,
			Payload:   map[string]any{"reason": e.Details["reason"]},
		}, true
	default:
		return External{}, false
	}
}
