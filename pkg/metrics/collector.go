package metrics

import (
	"context"
	"time"

	"github.com/agenshield/skillcore/pkg/storage"
	"github.com/agenshield/skillcore/pkg/types"
)

// Collector polls the Repository every 15s for point-in-time gauges.
type Collector struct {
	repo   storage.Repository
	stopCh chan struct{}
}

// NewCollector creates a metrics Collector against repo.
func NewCollector(repo storage.Repository) *Collector {
	return &Collector{repo: repo, stopCh: make(chan struct{})}
}

// Start begins collecting on a 15s interval, collecting once immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx := context.Background()

	active, err := c.repo.GetActiveInstallations(ctx)
	if err == nil {
		InstallationsActive.Set(float64(len(active)))
	}

	quarantined := 0
	all, err := c.repo.GetAllInstallations(ctx)
	if err == nil {
		for _, inst := range all {
			if inst.Status == types.InstallQuarantined {
				quarantined++
			}
		}
	}
	InstallationsQuarantined.Set(float64(quarantined))

	pendingAnalysis := 0
	skills, err := c.repo.GetAll(ctx, storage.GetAllFilter{})
	if err == nil {
		for _, skill := range skills {
			versions, err := c.repo.GetVersions(ctx, skill.ID)
			if err != nil {
				continue
			}
			for _, v := range versions {
				if v.AnalysisStatus == types.AnalysisPending {
					pendingAnalysis++
				}
			}
		}
	}
	SkillsPendingAnalysis.Set(float64(pendingAnalysis))
}
