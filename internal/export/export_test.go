package export

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/story"
)

func TestChapterFilenameZeroPadsIndexAndSlugifiesTitle(t *testing.T) {
	c := &story.Chapter{ChapterIndex: 7, Title: "The Letter Arrives!"}
	require.Equal(t, "007-the-letter-arrives.md", ChapterFilename(c))
}

func TestChapterFilenameFallsBackForEmptyTitle(t *testing.T) {
	c := &story.Chapter{ChapterIndex: 1, Title: ""}
	require.Equal(t, "001-untitled.md", ChapterFilename(c))
}

func TestChapterMarkdownIncludesTitleAndContent(t *testing.T) {
	c := &story.Chapter{ChapterIndex: 1, Title: "The Hook", Content: "It began on a Tuesday."}
	md := string(ChapterMarkdown(c))
	require.Contains(t, md, "# The Hook")
	require.Contains(t, md, "It began on a Tuesday.")
}

func TestExportChaptersZipContainsOneEntryPerChapter(t *testing.T) {
	chapters := []*story.Chapter{
		{ChapterIndex: 1, OrderIndex: 0, Title: "One", Content: "first"},
		{ChapterIndex: 2, OrderIndex: 1, Title: "Two", Content: "second"},
	}

	blob, err := ExportChaptersZip("My Serial", chapters)
	require.NoError(t, err)
	require.Equal(t, "my-serial.zip", blob.Filename)

	r, err := zip.NewReader(bytes.NewReader(blob.Data), int64(len(blob.Data)))
	require.NoError(t, err)
	require.Len(t, r.File, 2)
	require.Equal(t, "001-one.md", r.File[0].Name)
	require.Equal(t, "002-two.md", r.File[1].Name)
}

func TestExportChaptersZipEmptyProjectNameFallsBackToProject(t *testing.T) {
	blob, err := ExportChaptersZip("***", nil)
	require.NoError(t, err)
	require.Equal(t, "project.zip", blob.Filename)
}
