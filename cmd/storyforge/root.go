package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/container"
)

var dataDirFlag string

var rootCmd = &cobra.Command{
	Use:   "storyforge",
	Short: "Chapter-by-chapter long-form fiction generation with continuity tracking",
	Long: `storyforge generates serialized fiction one chapter at a time,
tracking character, location, and plot continuity across the run so a
five-hundred-chapter serial stays consistent with chapter one.

Project creation, ownership, and billing live outside this tool;
storyforge operates on projects already present in its data directory.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "project data directory (default: config's paths.data_dir)")
	rootCmd.AddCommand(generateCmd, approveCmd, exportCmd, maintainCmd, warmupCmd)
}

// buildContainer loads config.yaml, overlays --data-dir, and
// constructs the dependency graph for one command invocation.
// storyforge is a CLI, not a long-running server, so each invocation
// builds and tears down its own Container rather than sharing one
// across commands.
func buildContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	dataDir := cfg.Paths.DataDir
	if dataDirFlag != "" {
		dataDir = dataDirFlag
	}

	c, err := container.New(ctx, cfg, dataDir)
	if err != nil {
		return nil, fmt.Errorf("building container: %w", err)
	}
	return c, nil
}
