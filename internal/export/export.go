// Package export packages a project's approved chapters as markdown
// documents and a single zip archive, grounded on
// internal/storage.FileSystem's path-sanitizing discipline (§6's
// Blob/Object interface names "markdown export and zip packaging of
// approved chapters").
package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/vampirenirmal/storyforge/internal/story"
)

// Blob is the external interface of §6: an exported artifact's raw
// bytes and the filename it should be saved or served under.
type Blob struct {
	Filename string
	Data     []byte
}

var unsafeTitleChars = regexp.MustCompile(`[^a-z0-9]+`)

// safeTitle slugifies a chapter title for use in a filename: lowercase,
// non-alphanumeric runs collapsed to a single hyphen, leading/trailing
// hyphens trimmed. Falls back to "untitled" for an empty or
// all-punctuation title so every chapter still gets a distinct file.
func safeTitle(title string) string {
	slug := strings.Trim(unsafeTitleChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// ChapterFilename builds the `{chapter_index:03d}-{safe_title}.md`
// name §6 specifies.
func ChapterFilename(c *story.Chapter) string {
	return fmt.Sprintf("%03d-%s.md", c.ChapterIndex, safeTitle(c.Title))
}

// ChapterMarkdown renders one chapter as a markdown document: an H1
// title, then the chapter content unchanged.
func ChapterMarkdown(c *story.Chapter) []byte {
	var b strings.Builder
	title := c.Title
	if title == "" {
		title = fmt.Sprintf("Chapter %d", c.ChapterIndex)
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString(c.Content)
	if !strings.HasSuffix(c.Content, "\n") {
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// ExportChapter renders a single chapter to a markdown Blob.
func ExportChapter(c *story.Chapter) Blob {
	return Blob{Filename: ChapterFilename(c), Data: ChapterMarkdown(c)}
}

// ExportChaptersZip packages every given chapter's markdown rendering
// into a single zip archive, ordered by OrderIndex (chapters must
// already be sorted; ListApprovedChapters returns them sorted).
// Round-tripping this archive through parse-and-reindex must yield the
// same RAG chunk count as indexing the chapters directly (§8's
// "Export → parse → re-index" idempotence property), so this function
// introduces no content transformation beyond ChapterMarkdown's own.
func ExportChaptersZip(projectName string, chapters []*story.Chapter) (Blob, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, c := range chapters {
		f, err := w.Create(ChapterFilename(c))
		if err != nil {
			return Blob{}, fmt.Errorf("creating zip entry for chapter %d: %w", c.ChapterIndex, err)
		}
		if _, err := f.Write(ChapterMarkdown(c)); err != nil {
			return Blob{}, fmt.Errorf("writing zip entry for chapter %d: %w", c.ChapterIndex, err)
		}
	}

	if err := w.Close(); err != nil {
		return Blob{}, fmt.Errorf("closing zip archive: %w", err)
	}

	name := safeTitle(projectName)
	if name == "untitled" {
		name = "project"
	}
	return Blob{Filename: name + ".zip", Data: buf.Bytes()}, nil
}
