package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_EmptyDocument_YieldsZeroChunks(t *testing.T) {
	assert.Empty(t, Split(""))
	assert.Empty(t, Split("   \n\n  "))
}

func TestChunk_NoHeadings_SingleChunkEmptyHierarchy(t *testing.T) {
	content := "<!-- Source: https://example.com/a -->\n# Title\n\nSome intro text with no sections at all."
	chunks := Split(content)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Metadata.Hierarchy)
	assert.Equal(t, "", chunks[0].Metadata.Section)
	assert.Equal(t, "https://example.com/a", chunks[0].Metadata.SourceURL)
	assert.Equal(t, "Title", chunks[0].Metadata.PageTitle)
	assert.NotContains(t, chunks[0].Content, "<!-- Source:")
}

func TestChunk_Hierarchy_SiblingSectionsDoNotLeak(t *testing.T) {
	content := strings.Join([]string{
		"# Doc",
		"",
		"## Alpha",
		"### Alpha Child",
		"alpha child body",
		"## Beta",
		"beta body with no subsection",
	}, "\n")

	chunks := Split(content)
	// intro ("# Doc"), Alpha, Alpha Child, Beta
	require.Len(t, chunks, 4)
	assert.Equal(t, []string{"Alpha", "Alpha Child"}, chunks[2].Metadata.Hierarchy)
	// Beta must not inherit Alpha's child header.
	assert.Equal(t, []string{"Beta"}, chunks[3].Metadata.Hierarchy)
}

func TestChunk_SectionWithinMax_SingleSplit(t *testing.T) {
	content := "## Overview\n\nShort content."
	chunks := Split(content)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Overview", chunks[0].Metadata.Section)
}

func TestChunk_OversizeSectionNoParagraphBreaks_SingleChunkAllowed(t *testing.T) {
	content := "## Big\n" + strings.Repeat("x", 5000)
	chunks := Split(content)
	require.Len(t, chunks, 1)
	assert.GreaterOrEqual(t, len(chunks[0].Content), 2000)
}

func TestChunk_OversizeSectionSplitsOnParagraphs_PartSuffix(t *testing.T) {
	var paras []string
	for i := 0; i < 20; i++ {
		paras = append(paras, strings.Repeat("word ", 40))
	}
	content := "## Long Section\n\n" + strings.Join(paras, "\n\n")
	chunks := Split(content)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Contains(t, c.Metadata.Section, "Long Section (part")
		assert.LessOrEqual(t, len(c.Content), TargetMaxChars+1000, "chunk %d", i)
	}
}

func TestChunk_CodeBlockNeverSplit(t *testing.T) {
	code := "```go\n" + strings.Repeat("fmt.Println(\"x\")\n", 150) + "```"
	content := "## Code Heavy\n\nIntro paragraph.\n\n" + code + "\n\nTrailing paragraph."
	chunks := Split(content)
	for _, c := range chunks {
		if strings.Contains(c.Content, "```go") {
			assert.True(t, strings.Count(c.Content, "```") >= 2, "fenced block must not be split across chunks")
		}
	}
}

func TestChunk_HasCode(t *testing.T) {
	withCode := Split("## S\n\n```\nfoo()\n```")
	require.Len(t, withCode, 1)
	assert.True(t, withCode[0].Metadata.HasCode)

	withoutCode := Split("## S\n\nplain prose, nothing fancy")
	require.Len(t, withoutCode, 1)
	assert.False(t, withoutCode[0].Metadata.HasCode)
}

func TestChunk_Coverage_EveryParagraphAppearsOnce(t *testing.T) {
	content := "## A\n\nfirst paragraph\n\nsecond paragraph\n\n## B\n\nthird paragraph"
	chunks := Split(content)
	var all strings.Builder
	for _, c := range chunks {
		all.WriteString(c.Content)
		all.WriteString("\n\n")
	}
	joined := all.String()
	for _, p := range []string{"first paragraph", "second paragraph", "third paragraph"} {
		assert.Equal(t, 1, strings.Count(joined, p))
	}
}

func TestID_DeterministicAcrossCalls(t *testing.T) {
	c := Chunk{Content: "hello", Metadata: Metadata{SourceURL: "https://x/y"}}
	id1 := c.ID()
	id2 := c.ID()
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)
}

func TestID_DiffersByContentOrSource(t *testing.T) {
	a := Chunk{Content: "hello", Metadata: Metadata{SourceURL: "https://x/y"}}
	b := Chunk{Content: "hello", Metadata: Metadata{SourceURL: "https://x/z"}}
	c := Chunk{Content: "world", Metadata: Metadata{SourceURL: "https://x/y"}}
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
}

func TestSplitWithLimits_UndersizeTrailingPartMergedIntoPrevious(t *testing.T) {
	var paras []string
	for i := 0; i < 6; i++ {
		paras = append(paras, strings.Repeat("word ", 40)) // ~200 chars each
	}
	content := "## Section\n\n" + strings.Join(paras, "\n\n")

	withoutMin := SplitWithLimits(content, 0, 400)
	withMin := SplitWithLimits(content, 400, 400)

	require.Greater(t, len(withoutMin), 1)
	require.Less(t, len(withMin), len(withoutMin), "a high min_chars should fold a short trailing part back in")
}

func TestMetadata_HierarchyString(t *testing.T) {
	m := Metadata{Hierarchy: []string{"Install", "Prereqs", "Overview"}}
	assert.Equal(t, "Install > Prereqs > Overview", m.HierarchyString())
}
