// Package events implements the skill lifecycle's internal event bus: a
// typed, totally-ordered, multi-subscriber publisher. Every event carries
// either an OperationID (to correlate a single lifecycle operation's
// started/intermediate/completed sequence) or a terminal identifier
// (InstallationID, Slug).
package events

import (
	"sync"
	"time"
)

// Kind is a family-prefixed event discriminator, e.g. "deploy:started",
// "watcher:integrity-violation". Families mirror spec §4.2.
type Kind string

const (
	KindDownloadStarted   Kind = "download:started"
	KindDownloadCompleted Kind = "download:completed"
	KindDownloadError     Kind = "download:error"

	KindUploadHashing    Kind = "upload:hashing"
	KindUploadRegistering Kind = "upload:registering"
	KindUploadCompleted  Kind = "upload:completed"
	KindUploadError      Kind = "upload:error"

	KindInstallStarted     Kind = "install:started"
	KindInstallDownloading Kind = "install:downloading"
	KindInstallAnalyzing   Kind = "install:analyzing"
	KindInstallRegistering Kind = "install:registering"
	KindInstallCreating    Kind = "install:creating"
	KindInstallCompleted   Kind = "install:completed"
	KindInstallError       Kind = "install:error"

	KindUninstallStarted   Kind = "uninstall:started"
	KindUninstallCompleted Kind = "uninstall:completed"
	KindUninstallError     Kind = "uninstall:error"

	KindAnalyzeStarted   Kind = "analyze:started"
	KindAnalyzeParsing   Kind = "analyze:parsing"
	KindAnalyzeExtracting Kind = "analyze:extracting"
	KindAnalyzeCompleted Kind = "analyze:completed"
	KindAnalyzeError     Kind = "analyze:error"

	KindDeployStarted   Kind = "deploy:started"
	KindDeployCompleted Kind = "deploy:completed"
	KindDeployError     Kind = "deploy:error"

	KindUndeployStarted   Kind = "undeploy:started"
	KindUndeployCompleted Kind = "undeploy:completed"
	KindUndeployError     Kind = "undeploy:error"

	KindUpdateChecking   Kind = "update:checking"
	KindUpdateFound      Kind = "update:found"
	KindUpdateApplying   Kind = "update:applying"
	KindUpdateSkillDone  Kind = "update:skill-done"
	KindUpdateCompleted  Kind = "update:completed"
	KindUpdateError      Kind = "update:error"

	KindSkillCreated    Kind = "skill:created"
	KindSkillDeleted    Kind = "skill:deleted"
	KindVersionCreated  Kind = "version:created"
	KindVersionApproved Kind = "version:approved"

	KindWatcherStarted            Kind = "watcher:started"
	KindWatcherStopped            Kind = "watcher:stopped"
	KindWatcherPollStarted        Kind = "watcher:poll-started"
	KindWatcherPollCompleted      Kind = "watcher:poll-completed"
	KindWatcherIntegrityViolation Kind = "watcher:integrity-violation"
	KindWatcherQuarantined        Kind = "watcher:quarantined"
	KindWatcherReinstalled        Kind = "watcher:reinstalled"
	KindWatcherSkillDetected      Kind = "watcher:skill-detected"
	KindWatcherFsChange           Kind = "watcher:fs-change"
	KindWatcherActionError        Kind = "watcher:action-error"
	KindWatcherError              Kind = "watcher:error"

	KindSyncStarted   Kind = "sync:started"
	KindSyncProgress  Kind = "sync:progress"
	KindSyncCompleted Kind = "sync:completed"
	KindSyncError     Kind = "sync:error"
)

// Event is one entry in the lifecycle's ordered event stream.
type Event struct {
	Kind           Kind
	Timestamp      time.Time
	OperationID    string
	InstallationID string
	Slug           string
	VersionID      string
	AdapterID      string
	Error          string
	Details        map[string]any
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Bus is an in-process, multi-subscriber, order-preserving event publisher.
// A single emitter's events are never reordered; Publish blocks only on an
// internal queue, never on a slow subscriber (a full subscriber buffer
// drops that event for that subscriber rather than stalling the emitter).
type Bus struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBus creates a new event bus. Call Start before publishing.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the bus's single-threaded distribution loop. This is what
// guarantees in-order delivery: one goroutine reads eventCh and broadcasts,
// so two Publish calls from different goroutines are serialized into a
// single emission order at the point they enter eventCh.
func (b *Bus) Start() {
	go b.run()
}

// Stop stops the distribution loop and closes every subscriber channel.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		b.mu.Lock()
		for sub := range b.subscribers {
			delete(b.subscribers, sub)
			close(sub)
		}
		b.mu.Unlock()
	})
}

// Subscribe creates a new subscription.
func (b *Bus) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := make(Subscriber, 128)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish emits an event. If Timestamp is zero it is set to time.Now().
func (b *Bus) Publish(e *Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case b.eventCh <- e:
	case <-b.stopCh:
	}
}

func (b *Bus) run() {
	for {
		select {
		case e := <-b.eventCh:
			b.broadcast(e)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) broadcast(e *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		select {
		case sub <- e:
		default:
			// subscriber buffer full: drop rather than stall the emitter
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
