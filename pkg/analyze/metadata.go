package analyze

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/agenshield/skillcore/pkg/types"
)

// MetadataAdapter is a synchronous, network-free analyzer that parses files
// whose names end in skill.json or package.json as JSON and unions any
// explicit requiredBins/requiredEnv/extractedCommands fields it finds there
// and in a version's metadataJson. SKILL.md is not parsed.
type MetadataAdapter struct{}

func NewMetadataAdapter() *MetadataAdapter { return &MetadataAdapter{} }

func (a *MetadataAdapter) ID() string { return "metadata" }

type metadataFields struct {
	RequiredBins      []string `json:"requiredBins"`
	RequiredEnv       []string `json:"requiredEnv"`
	ExtractedCommands []string `json:"extractedCommands"`
}

func (a *MetadataAdapter) Analyze(ctx context.Context, version *types.SkillVersion, files []types.FileContent) types.AnalysisResult {
	result := types.AnalysisResult{Status: types.AdapterSuccess}

	var fields metadataFields
	if version.MetadataJSON != "" {
		_ = json.Unmarshal([]byte(version.MetadataJSON), &fields)
	}

	for _, f := range files {
		base := strings.ToLower(f.RelativePath)
		switch {
		case strings.HasSuffix(base, "skill.json"), strings.HasSuffix(base, "package.json"):
			var m metadataFields
			if err := json.Unmarshal(f.Bytes, &m); err == nil {
				fields.RequiredBins = append(fields.RequiredBins, m.RequiredBins...)
				fields.RequiredEnv = append(fields.RequiredEnv, m.RequiredEnv...)
				fields.ExtractedCommands = append(fields.ExtractedCommands, m.ExtractedCommands...)
			}
		}
	}

	result.RequiredBins = dedupe(fields.RequiredBins)
	result.RequiredEnv = dedupe(fields.RequiredEnv)
	result.ExtractedCommands = dedupe(fields.ExtractedCommands)
	result.Data = map[string]any{"filesInspected": len(files)}
	return result
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
