package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenshield/skillcore/pkg/deploy"
	"github.com/agenshield/skillcore/pkg/manager"
	"github.com/agenshield/skillcore/pkg/sync"
	"github.com/agenshield/skillcore/pkg/watcher"
)

var syncCmd = &cobra.Command{
	Use:   "sync SOURCE",
	Short: "Reconcile one source adapter's desired skill set against a target",
	Long: `sync registers a single filesystem Source Adapter (--source-dir) under
the given source id and reconciles it against --target: installing skills
missing from the target, updating ones whose content changed, and removing
ones no longer present in the source.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("source-dir", "", "Directory of skill folders to sync from (required)")
	syncCmd.Flags().String("target", "default", "Sync target identifier")
	syncCmd.MarkFlagRequired("source-dir")
}

func runSync(cmd *cobra.Command, args []string) error {
	sourceID := args[0]
	sourceDir, _ := cmd.Flags().GetString("source-dir")
	target, _ := cmd.Flags().GetString("target")

	ctx := context.Background()
	source := sync.NewDirectorySource(sourceID, sourceDir)

	mgr, err := manager.New(ctx, manager.Options{
		DatabasePath:   cfg.DatabasePath,
		BackupDir:      cfg.BackupDir,
		DeployAdapters: []deploy.Adapter{deploy.NewFilesystemAdapter(cfg.DeployRoot, "")},
		SyncAdapters:   []sync.Adapter{source},
		WatcherOptions: watcher.Options{DeployRoot: cfg.DeployRoot},
	})
	if err != nil {
		return fmt.Errorf("start manager: %w", err)
	}
	defer mgr.Close()

	result, err := mgr.SyncSource(ctx, sourceID, target)
	if err != nil {
		return fmt.Errorf("sync %s: %w", sourceID, err)
	}

	fmt.Printf("synced %q against target %q\n", sourceID, target)
	fmt.Printf("  installed: %v\n", result.Installed)
	fmt.Printf("  updated:   %v\n", result.Updated)
	fmt.Printf("  removed:   %v\n", result.Removed)
	return nil
}
