// Package chunk splits a markdown document into semantically coherent
// chunks with stable metadata: ancestor-stack hierarchy construction
// over H2/H3 sections, and atomic-block-aware paragraph splitting that
// never breaks inside a fenced code block.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

const (
	// CharsPerToken approximates tokens from characters; no tokenizer is
	// invoked anywhere in the chunker.
	CharsPerToken = 4
	// TargetMinChars is the lower end of the target chunk size.
	TargetMinChars = 1600
	// TargetMaxChars is the upper end of the target chunk size; sections
	// at or below this size are emitted as a single chunk.
	TargetMaxChars = 2000
)

var (
	sourceCommentPattern = regexp.MustCompile(`<!--\s*Source:\s*(.+?)\s*-->`)
	h1Pattern            = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	sectionHeaderPattern = regexp.MustCompile(`(?m)^(#{2,3})\s+(.+)$`)
	codeBlockPattern     = regexp.MustCompile("(?s)```.*?```")
	indentedCodePattern  = regexp.MustCompile(`(?m)^(?: {4,}|\t).+(?:\n(?: {4,}|\t).+)*`)
)

// Metadata describes a chunk's provenance and position within its
// source document.
type Metadata struct {
	SourceURL string
	PageTitle string
	// Section is the nearest H2/H3 title the chunk sits under, suffixed
	// " (part i/n)" when a section was split. Empty for the intro section.
	Section string
	// Hierarchy lists ancestor H2/H3 titles from outermost inward, ending
	// at the section itself. Empty for the intro section.
	Hierarchy []string
	HasCode   bool
}

// HierarchyString serializes Hierarchy as the store's " > "-joined form.
func (m Metadata) HierarchyString() string {
	return strings.Join(m.Hierarchy, " > ")
}

// Chunk is one retrievable unit of text with its metadata.
type Chunk struct {
	Content  string
	Metadata Metadata
}

// ID computes the deterministic stored-document identity for this
// chunk: SHA256(source_url + ":" + content) hex.
func (c Chunk) ID() string {
	sum := sha256.Sum256([]byte(c.Metadata.SourceURL + ":" + c.Content))
	return hex.EncodeToString(sum[:])
}

// Split breaks markdown content into an ordered list of chunks using
// the package's default target size range. An empty or whitespace-only
// document yields zero chunks; malformed markdown (no headings, no
// source comment) never produces an error — the chunker always
// proceeds with best-effort defaults.
func Split(content string) []Chunk {
	return SplitWithLimits(content, TargetMinChars, TargetMaxChars)
}

// SplitWithLimits is Split parameterized by the target chunk size
// range: sections at or below maxChars are emitted whole; oversize
// sections are packed into chunks up to maxChars, and a final
// undersize leftover chunk (below minChars) is folded back into its
// predecessor rather than emitted as its own fragment.
func SplitWithLimits(content string, minChars, maxChars int) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	sourceURL := extractSourceURL(content)
	pageTitle := extractPageTitle(content)
	body := strings.TrimSpace(sourceCommentPattern.ReplaceAllString(content, ""))
	if body == "" {
		return nil
	}

	sections := parseSections(body)

	var chunks []Chunk
	for _, sec := range sections {
		chunks = append(chunks, emitSection(sec, sourceURL, pageTitle, minChars, maxChars)...)
	}
	return chunks
}

func extractSourceURL(content string) string {
	if m := sourceCommentPattern.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

func extractPageTitle(content string) string {
	if m := h1Pattern.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// section is one H2/H3-delimited span of the document, or the implicit
// intro section preceding the first such heading.
type section struct {
	level     int // 0 for the intro section
	title     string
	hierarchy []string
	content   string
}

// parseSections splits body into intro + H2/H3 sections, computing each
// section's ancestor hierarchy via a level-indexed stack (reset whenever a
// shallower or equal-level heading is seen), not a flat accumulating list —
// this is correct when sibling sections each have their own subsections,
// where a flat list would leak a prior sibling's children into the
// hierarchy. See DESIGN.md Open Question 1.
func parseSections(body string) []section {
	matches := sectionHeaderPattern.FindAllStringSubmatchIndex(body, -1)

	var sections []section
	if len(matches) == 0 || matches[0][0] > 0 {
		end := len(body)
		if len(matches) > 0 {
			end = matches[0][0]
		}
		intro := strings.TrimSpace(body[:end])
		if intro != "" {
			sections = append(sections, section{content: intro})
		}
	}

	stack := make([]string, 4) // index 0 unused; levels 2 and 3 tracked
	for i, m := range matches {
		level := len(body[m[2]:m[3]])
		title := strings.TrimSpace(body[m[4]:m[5]])

		stack[level] = title
		for l := level + 1; l < len(stack); l++ {
			stack[l] = ""
		}

		var hierarchy []string
		for l := 2; l < level; l++ {
			if stack[l] != "" {
				hierarchy = append(hierarchy, stack[l])
			}
		}
		hierarchy = append(hierarchy, title)

		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := strings.TrimSpace(body[m[0]:end])

		sections = append(sections, section{level: level, title: title, hierarchy: hierarchy, content: content})
	}

	if len(sections) == 0 {
		sections = append(sections, section{content: body})
	}
	return sections
}

func emitSection(sec section, sourceURL, pageTitle string, minChars, maxChars int) []Chunk {
	if len(sec.content) <= maxChars {
		return []Chunk{{
			Content: sec.content,
			Metadata: Metadata{
				SourceURL: sourceURL,
				PageTitle: pageTitle,
				Section:   sec.title,
				Hierarchy: sec.hierarchy,
				HasCode:   hasCode(sec.content),
			},
		}}
	}

	parts := splitOnParagraphs(sec.content, minChars, maxChars)
	chunks := make([]Chunk, 0, len(parts))
	for i, part := range parts {
		section := sec.title
		if len(parts) > 1 {
			if sec.title != "" {
				section = fmt.Sprintf("%s (part %d/%d)", sec.title, i+1, len(parts))
			} else {
				section = fmt.Sprintf("Part %d/%d", i+1, len(parts))
			}
		}
		chunks = append(chunks, Chunk{
			Content: part,
			Metadata: Metadata{
				SourceURL: sourceURL,
				PageTitle: pageTitle,
				Section:   section,
				Hierarchy: sec.hierarchy,
				HasCode:   hasCode(part),
			},
		})
	}
	return chunks
}

func hasCode(text string) bool {
	return codeBlockPattern.MatchString(text) || indentedCodePattern.MatchString(text)
}

// splitOnParagraphs packs paragraphs (separated by \n\n+ runs) greedily
// into chunks not exceeding maxSize, never splitting inside a fenced
// code block. A trailing chunk shorter than minSize is folded into the
// chunk before it instead of being emitted as its own undersize
// fragment.
func splitOnParagraphs(text string, minSize, maxSize int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}

	units := atomicUnits(text)

	var chunks []string
	var current strings.Builder
	for _, unit := range units {
		if current.Len() > 0 && current.Len()+len(unit)+2 > maxSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(unit)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	if len(chunks) > 1 && len(chunks[len(chunks)-1]) < minSize {
		last := chunks[len(chunks)-1]
		chunks = chunks[:len(chunks)-1]
		chunks[len(chunks)-1] += "\n\n" + last
	}

	return chunks
}

// atomicUnits splits text on \n\n+ boundaries, then re-merges any run of
// paragraphs whose combined span contains an unbalanced fenced code
// block back into a single indivisible unit. An oversize code block is
// emitted whole rather than split.
func atomicUnits(text string) []string {
	paragraphs := regexp.MustCompile(`\n\n+`).Split(text, -1)

	var units []string
	var pending []string
	inFence := false

	flush := func() {
		if len(pending) > 0 {
			units = append(units, strings.Join(pending, "\n\n"))
			pending = nil
		}
	}

	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pending = append(pending, p)
		fences := strings.Count(p, "```")
		if fences%2 == 1 {
			inFence = !inFence
		}
		if !inFence {
			flush()
		}
	}
	flush()
	return units
}
