package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/storyforge/internal/pipeline"
)

var (
	genProjectID    string
	genOwnerID      string
	genChapterIndex int
	genChapterTitle string
	genInstruction  string
	genUseRAG       bool
	genAutoApprove  bool
	genMaxRevisions int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one chapter for a project",
	Long: `Runs collect_context -> retrieve_context -> plan_chapter once,
then loops write_chapter -> validate_continuity -> critic -> quality
gate until the chapter passes or max-revisions is reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := buildContainer(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		_, chapter, err := c.Pipeline.GenerateChapter(ctx, pipeline.GenerateChapterRequest{
			ProjectID:      genProjectID,
			OwnerID:        genOwnerID,
			ChapterIndex:   genChapterIndex,
			ChapterTitle:   genChapterTitle,
			Instruction:    genInstruction,
			UseRAG:         genUseRAG,
			AutoApprove:    genAutoApprove,
			CreateDocument: true,
			MaxRevisions:   genMaxRevisions,
		})
		if err != nil {
			return fmt.Errorf("generating chapter: %w", err)
		}

		fmt.Printf("chapter %d generated: id=%s words=%d status=%s\n",
			chapter.ChapterIndex, chapter.ID, chapter.WordCount, chapter.Status)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&genProjectID, "project", "", "project id (required)")
	generateCmd.Flags().StringVar(&genOwnerID, "owner", "", "owner id for ownership checks")
	generateCmd.Flags().IntVar(&genChapterIndex, "chapter", 0, "chapter index to generate (required)")
	generateCmd.Flags().StringVar(&genChapterTitle, "title", "", "chapter title")
	generateCmd.Flags().StringVar(&genInstruction, "instruction", "", "free-form authorial instruction for this chapter")
	generateCmd.Flags().BoolVar(&genUseRAG, "rag", true, "retrieve RAG context for this chapter")
	generateCmd.Flags().BoolVar(&genAutoApprove, "auto-approve", false, "approve the chapter immediately after generation")
	generateCmd.Flags().IntVar(&genMaxRevisions, "max-revisions", 0, "override the configured max revision count (0 = use config default)")
	_ = generateCmd.MarkFlagRequired("project")
	_ = generateCmd.MarkFlagRequired("chapter")
}
