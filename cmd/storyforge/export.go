package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/storyforge/internal/export"
)

var (
	exportProjectID string
	exportOutDir    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a project's approved chapters as a markdown zip",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := buildContainer(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		chapters, err := c.ProjectRepo.ListApprovedChapters(ctx, exportProjectID)
		if err != nil {
			return fmt.Errorf("listing approved chapters: %w", err)
		}
		if len(chapters) == 0 {
			return fmt.Errorf("project %s has no approved chapters to export", exportProjectID)
		}

		blob, err := export.ExportChaptersZip(exportProjectID, chapters)
		if err != nil {
			return fmt.Errorf("packaging export: %w", err)
		}

		outDir := exportOutDir
		if outDir == "" {
			outDir = "."
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		outPath := filepath.Join(outDir, blob.Filename)
		if err := os.WriteFile(outPath, blob.Data, 0644); err != nil {
			return fmt.Errorf("writing export archive: %w", err)
		}

		fmt.Printf("exported %d chapters to %s\n", len(chapters), outPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportProjectID, "project", "", "project id (required)")
	exportCmd.Flags().StringVar(&exportOutDir, "out", "", "output directory (default: current directory)")
	_ = exportCmd.MarkFlagRequired("project")
}
