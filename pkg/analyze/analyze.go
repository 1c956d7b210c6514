// Package analyze implements the Analyze Service: multi-adapter fan-out
// over a skill version's files, merged by worst-wins status and set-union
// of required bins/env/extracted commands (spec §4.5).
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenshield/skillcore/pkg/events"
	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

// Adapter inspects a version's files and reports what it finds. Adapters
// may be synchronous (metadata inspection) or perform network I/O (remote
// analysis); the Service fans out to all adapters concurrently.
type Adapter interface {
	ID() string
	Analyze(ctx context.Context, version *types.SkillVersion, files []types.FileContent) types.AnalysisResult
}

var statusPriority = map[types.AdapterStatus]int{
	types.AdapterSuccess: 0,
	types.AdapterWarning: 1,
	types.AdapterError:   2,
}

// Service fans analysis out to every registered adapter and persists the
// merged result.
type Service struct {
	repo     storage.Repository
	bus      *events.Bus
	adapters []Adapter
}

// NewService creates an analyze Service.
func NewService(repo storage.Repository, bus *events.Bus, adapters []Adapter) *Service {
	return &Service{repo: repo, bus: bus, adapters: adapters}
}

// Analyze runs every adapter against version's files, merges the results,
// persists them, and emits analyze:started/parsing/extracting/completed|error.
func (s *Service) Analyze(ctx context.Context, slug string, version *types.SkillVersion, files []types.FileContent) (types.AnalysisResult, error) {
	operationID := uuid.NewString()
	s.publish(&events.Event{Kind: events.KindAnalyzeStarted, OperationID: operationID, Slug: slug, VersionID: version.ID})
	s.publish(&events.Event{Kind: events.KindAnalyzeParsing, OperationID: operationID, Slug: slug, VersionID: version.ID})

	if len(s.adapters) == 0 {
		merged := types.AnalysisResult{Status: types.AdapterSuccess}
		if err := s.persist(ctx, version.ID, merged); err != nil {
			return merged, err
		}
		s.publish(&events.Event{Kind: events.KindAnalyzeCompleted, OperationID: operationID, Slug: slug, VersionID: version.ID})
		return merged, nil
	}

	results := make([]types.AnalysisResult, len(s.adapters))
	adapterIDs := make([]string, len(s.adapters))
	var wg sync.WaitGroup
	for i, a := range s.adapters {
		wg.Add(1)
		go func(i int, a Adapter) {
			defer wg.Done()
			results[i] = a.Analyze(ctx, version, files)
			adapterIDs[i] = a.ID()
		}(i, a)
	}
	wg.Wait()

	s.publish(&events.Event{Kind: events.KindAnalyzeExtracting, OperationID: operationID, Slug: slug, VersionID: version.ID})

	merged := merge(adapterIDs, results)

	if err := s.persist(ctx, version.ID, merged); err != nil {
		s.publish(&events.Event{Kind: events.KindAnalyzeError, OperationID: operationID, Slug: slug, VersionID: version.ID, Error: err.Error()})
		return merged, err
	}

	if merged.Status == types.AdapterError {
		s.publish(&events.Event{Kind: events.KindAnalyzeError, OperationID: operationID, Slug: slug, VersionID: version.ID, Error: merged.Error})
	} else {
		s.publish(&events.Event{Kind: events.KindAnalyzeCompleted, OperationID: operationID, Slug: slug, VersionID: version.ID})
	}

	return merged, nil
}

// merge combines adapter results: set-union for required bins/env/commands,
// worst-wins for status, and data verbatim for a single adapter or keyed by
// adapterID for multiple (back-compat with single-adapter deployments).
func merge(adapterIDs []string, results []types.AnalysisResult) types.AnalysisResult {
	var merged types.AnalysisResult
	merged.Status = types.AdapterSuccess

	bins := map[string]bool{}
	env := map[string]bool{}
	commands := map[string]bool{}
	dataByAdapter := map[string]any{}
	var errMsgs []string

	worst := 0
	for i, r := range results {
		for _, b := range r.RequiredBins {
			bins[b] = true
		}
		for _, e := range r.RequiredEnv {
			env[e] = true
		}
		for _, c := range r.ExtractedCommands {
			commands[c] = true
		}
		if r.Error != "" {
			errMsgs = append(errMsgs, r.Error)
		}
		if p := statusPriority[r.Status]; p > worst {
			worst = p
		}
		if i < len(adapterIDs) {
			dataByAdapter[adapterIDs[i]] = r.Data
		}
	}

	merged.RequiredBins = setToSortedSlice(bins)
	merged.RequiredEnv = setToSortedSlice(env)
	merged.ExtractedCommands = setToSortedSlice(commands)

	switch worst {
	case 2:
		merged.Status = types.AdapterError
	case 1:
		merged.Status = types.AdapterWarning
	default:
		merged.Status = types.AdapterSuccess
	}
	if len(errMsgs) > 0 {
		merged.Error = errMsgs[0]
	}

	if len(results) == 1 {
		merged.Data = results[0].Data
	} else if len(results) > 1 {
		merged.Data = dataByAdapter
	}

	return merged
}

func setToSortedSlice(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func (s *Service) persist(ctx context.Context, versionID string, merged types.AnalysisResult) error {
	status := types.AnalysisComplete
	if merged.Status == types.AdapterError {
		status = types.AnalysisError
	}

	data := map[string]any{
		"status":            merged.Status,
		"data":              merged.Data,
		"requiredBins":      merged.RequiredBins,
		"requiredEnv":       merged.RequiredEnv,
		"extractedCommands": merged.ExtractedCommands,
		"error":             merged.Error,
	}
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	now := time.Now()
	return s.repo.UpdateAnalysis(ctx, versionID, storage.AnalysisUpdate{
		Status: status, JSON: string(blob), AnalyzedAt: &now,
	})
}

// AnalyzePending analyzes every version currently in analysisStatus=pending.
// loadFiles resolves a version's readable byte content (typically via the
// Backup Store or the source folder).
func (s *Service) AnalyzePending(ctx context.Context, loadFiles func(version *types.SkillVersion) (string, []types.FileContent, error)) error {
	skills, err := s.repo.GetAll(ctx, storage.GetAllFilter{})
	if err != nil {
		return fmt.Errorf("list skills: %w", err)
	}

	for _, skill := range skills {
		versions, err := s.repo.GetVersions(ctx, skill.ID)
		if err != nil {
			continue
		}
		for _, v := range versions {
			if v.AnalysisStatus != types.AnalysisPending {
				continue
			}
			slug, files, err := loadFiles(v)
			if err != nil {
				continue
			}
			if slug == "" {
				slug = skill.Slug
			}
			if _, err := s.Analyze(ctx, slug, v, files); err != nil {
				continue
			}
		}
	}
	return nil
}

// Reanalyze resets versionID's analysis status to pending, then re-runs it.
func (s *Service) Reanalyze(ctx context.Context, slug string, version *types.SkillVersion, files []types.FileContent) (types.AnalysisResult, error) {
	if err := s.repo.UpdateAnalysis(ctx, version.ID, storage.AnalysisUpdate{Status: types.AnalysisPending}); err != nil {
		return types.AnalysisResult{}, fmt.Errorf("reset analysis status: %w", err)
	}
	return s.Analyze(ctx, slug, version, files)
}

func (s *Service) publish(e *events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(e)
}
