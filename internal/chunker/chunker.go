package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Chunk is a bounded span of a source document prepared for embedding.
// Chunks are immutable once built; re-ingestion of a changed file rebuilds
// them from scratch.
type Chunk struct {
	ID        string // chk:<file>:<sha1(source|file|title|text)>
	SourceID  string
	File      string
	Title     string // heading path, e.g. "API Reference / Errors"
	Text      string
	LineStart int
	LineEnd   int
}

// Options controls chunk sizing.
type Options struct {
	MaxChars int // target chunk size in characters
	Overlap  int // window overlap when a paragraph must be hard-split
}

// DefaultOptions returns the default chunking options.
func DefaultOptions() Options {
	return Options{MaxChars: 1000, Overlap: 120}
}

// Split divides raw document text into chunks. Markdown headings open a new
// section; oversized sections are split at blank-line paragraph boundaries;
// a single paragraph over budget is windowed with overlap so context
// survives the cut. Splitting is deterministic: identical input always
// yields identical chunks, including IDs.
func Split(sourceID, file, raw string, opts Options) []Chunk {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultOptions().MaxChars
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.Overlap >= opts.MaxChars {
		opts.Overlap = opts.MaxChars / 4
	}

	sections := splitSections(raw)
	var out []Chunk
	for _, sec := range sections {
		for _, piece := range splitSection(sec, opts.MaxChars, opts.Overlap) {
			text := strings.TrimSpace(piece.text)
			if text == "" {
				continue
			}
			out = append(out, Chunk{
				ID:        chunkID(sourceID, file, piece.title, text),
				SourceID:  sourceID,
				File:      file,
				Title:     piece.title,
				Text:      text,
				LineStart: piece.lineStart,
				LineEnd:   piece.lineEnd,
			})
		}
	}
	return out
}

// chunkID hashes the source id alongside the file so identical files
// ingested under two sources get distinct chunk rows.
func chunkID(sourceID, file, title, text string) string {
	sum := sha1.Sum([]byte(sourceID + "|" + file + "|" + title + "|" + text))
	return "chk:" + file + ":" + hex.EncodeToString(sum[:])
}

type section struct {
	title     string
	text      string
	lineStart int
	lineEnd   int
}

// splitSections cuts the document at markdown headings, tracking the heading
// stack so each section carries its full title path.
func splitSections(raw string) []section {
	lines := strings.Split(raw, "\n")
	var sections []section

	var current *section
	var currentLines []string
	var headingStack []string
	var headingLevels []int

	flush := func(endLine int) {
		if current == nil {
			return
		}
		current.lineEnd = endLine
		current.text = strings.Join(currentLines, "\n")
		sections = append(sections, *current)
		current = nil
		currentLines = nil
	}

	for i, line := range lines {
		level, title, ok := parseHeading(line)
		if ok {
			flush(i)

			for len(headingLevels) > 0 && headingLevels[len(headingLevels)-1] >= level {
				headingLevels = headingLevels[:len(headingLevels)-1]
				headingStack = headingStack[:len(headingStack)-1]
			}
			headingLevels = append(headingLevels, level)
			headingStack = append(headingStack, title)

			current = &section{
				title:     strings.Join(headingStack, " / "),
				lineStart: i + 1,
			}
			currentLines = []string{line}
			continue
		}

		if current == nil {
			current = &section{lineStart: 1}
		}
		currentLines = append(currentLines, line)
	}
	flush(len(lines))

	return sections
}

func parseHeading(line string) (int, string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(trimmed, "#") {
		return 0, "", false
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, "", false
	}
	if len(trimmed) > level && trimmed[level] != ' ' {
		return 0, "", false
	}
	title := strings.TrimSpace(trimmed[level:])
	return level, title, true
}

type piece struct {
	title     string
	text      string
	lineStart int
	lineEnd   int
}

// splitSection breaks an oversized section at paragraph boundaries, packing
// consecutive paragraphs up to maxChars per piece.
func splitSection(sec section, maxChars, overlap int) []piece {
	if countChars(sec.text) <= maxChars {
		return []piece{{title: sec.title, text: sec.text, lineStart: sec.lineStart, lineEnd: sec.lineEnd}}
	}

	paragraphs := splitParagraphs(sec)

	var out []piece
	var curText []string
	curLen := 0
	curStart := 0
	curEnd := 0

	flush := func() {
		if curLen == 0 {
			return
		}
		out = append(out, piece{
			title:     sec.title,
			text:      strings.Join(curText, "\n"),
			lineStart: curStart,
			lineEnd:   curEnd,
		})
		curText = nil
		curLen = 0
	}

	for _, para := range paragraphs {
		paraLen := countChars(para.text)
		if paraLen > maxChars {
			// A single paragraph over budget: window it with overlap.
			flush()
			for _, win := range windowText(para.text, maxChars, overlap) {
				out = append(out, piece{
					title:     sec.title,
					text:      win,
					lineStart: para.lineStart,
					lineEnd:   para.lineEnd,
				})
			}
			continue
		}
		if curLen+paraLen > maxChars {
			flush()
		}
		if curLen == 0 {
			curStart = para.lineStart
		}
		curText = append(curText, para.text)
		curLen += paraLen + 1
		curEnd = para.lineEnd
	}
	flush()

	return out
}

type paragraph struct {
	text      string
	lineStart int
	lineEnd   int
}

func splitParagraphs(sec section) []paragraph {
	lines := strings.Split(sec.text, "\n")
	var out []paragraph
	var cur []string
	curStart := sec.lineStart

	for i, line := range lines {
		lineNo := sec.lineStart + i
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				out = append(out, paragraph{
					text:      strings.Join(cur, "\n"),
					lineStart: curStart,
					lineEnd:   lineNo - 1,
				})
				cur = nil
			}
			continue
		}
		if len(cur) == 0 {
			curStart = lineNo
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		out = append(out, paragraph{
			text:      strings.Join(cur, "\n"),
			lineStart: curStart,
			lineEnd:   sec.lineStart + len(lines) - 1,
		})
	}
	return out
}

// windowText splits text into fixed-size windows with overlap between
// consecutive windows.
func windowText(text string, maxChars, overlap int) []string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}
	step := maxChars - overlap
	if step <= 0 {
		step = maxChars
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func countChars(text string) int {
	return len([]rune(text))
}
