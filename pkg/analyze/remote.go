package analyze

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agenshield/skillcore/pkg/types"
)

const (
	remoteMaxFileBytes = 100 * 1024
	remoteMaxFiles     = 20
)

// RemoteAdapter POSTs a version's readable text files to an external
// analysis endpoint and streams back a newline-delimited JSON response,
// consuming the single {type:"done", data:summary} record.
type RemoteAdapter struct {
	endpoint string
	client   *http.Client
}

// NewRemoteAdapter creates a remote analyzer targeting endpoint.
func NewRemoteAdapter(endpoint string, timeout time.Duration) *RemoteAdapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteAdapter{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (a *RemoteAdapter) ID() string { return "remote" }

type remoteSummary struct {
	VulnerabilityLevel string   `json:"vulnerabilityLevel"`
	RequiredBins       []string `json:"requiredBins"`
	RequiredEnv        []string `json:"requiredEnv"`
	ExtractedCommands  []string `json:"extractedCommands"`
}

type ndjsonRecord struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (a *RemoteAdapter) Analyze(ctx context.Context, version *types.SkillVersion, files []types.FileContent) types.AnalysisResult {
	eligible := make([]types.FileContent, 0, len(files))
	for _, f := range files {
		if len(f.Bytes) > remoteMaxFileBytes || !looksLikeText(f.Bytes) {
			continue
		}
		eligible = append(eligible, f)
		if len(eligible) >= remoteMaxFiles {
			break
		}
	}
	if len(eligible) == 0 {
		return types.AnalysisResult{Status: types.AdapterError, Error: "no eligible readable text files to analyze"}
	}

	body, err := json.Marshal(map[string]any{"files": eligible})
	if err != nil {
		return types.AnalysisResult{Status: types.AdapterError, Error: fmt.Sprintf("encode request: %s", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return types.AnalysisResult{Status: types.AdapterError, Error: fmt.Sprintf("build request: %s", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return types.AnalysisResult{Status: types.AdapterError, Error: fmt.Sprintf("request failed: %s", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return types.AnalysisResult{Status: types.AdapterError, Error: fmt.Sprintf("remote analyzer returned status %d", resp.StatusCode)}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec ndjsonRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.Type != "done" {
			continue
		}
		var summary remoteSummary
		if err := json.Unmarshal(rec.Data, &summary); err != nil {
			return types.AnalysisResult{Status: types.AdapterError, Error: fmt.Sprintf("decode summary: %s", err)}
		}
		return summaryToResult(summary)
	}
	if err := scanner.Err(); err != nil {
		return types.AnalysisResult{Status: types.AdapterError, Error: fmt.Sprintf("read response stream: %s", err)}
	}

	return types.AnalysisResult{Status: types.AdapterError, Error: "remote analyzer stream ended without a done record"}
}

func summaryToResult(summary remoteSummary) types.AnalysisResult {
	status := types.AdapterSuccess
	switch strings.ToLower(summary.VulnerabilityLevel) {
	case "critical", "high":
		status = types.AdapterError
	}
	return types.AnalysisResult{
		Status:            status,
		Data:              summary,
		RequiredBins:      summary.RequiredBins,
		RequiredEnv:       summary.RequiredEnv,
		ExtractedCommands: summary.ExtractedCommands,
	}
}

func looksLikeText(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return true
}
