package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	approveChapterID string
	approveOwnerID   string
)

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve a drafted chapter",
	Long: `Extracts and merges continuity facts from the chapter, appends
its summary to the project's recent-summary window, marks it approved,
and re-indexes it into RAG.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := buildContainer(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Pipeline.ApproveChapter(ctx, approveChapterID, approveOwnerID); err != nil {
			return fmt.Errorf("approving chapter: %w", err)
		}
		fmt.Printf("chapter %s approved\n", approveChapterID)
		return nil
	},
}

func init() {
	approveCmd.Flags().StringVar(&approveChapterID, "chapter-id", "", "chapter document id (required)")
	approveCmd.Flags().StringVar(&approveOwnerID, "owner", "", "owner id for ownership checks")
	_ = approveCmd.MarkFlagRequired("chapter-id")
}
