// Package rag holds the retrieval-augmented generation plumbing shared by
// the RAG strategy and the embeddings API: text splitting, ingestion and
// the retrieve, rerank, cutoff pipeline.
package rag

import (
	"strings"
	"unicode/utf8"
)

// Default splitter settings, in characters.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// separators are tried in order; "" means a hard cut by rune count.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter cuts text into overlapping chunks, preferring paragraph, then
// line, then sentence, then word boundaries.
type Splitter struct {
	Size    int
	Overlap int
}

// NewSplitter applies defaults to zero values and clamps the overlap below
// the chunk size.
func NewSplitter(size, overlap int) Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap == 0 && size == DefaultChunkSize {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return Splitter{Size: size, Overlap: overlap}
}

// Split returns the chunks of text. Blank text yields no chunks.
func (s Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.Size {
		return []string{text}
	}

	sep, parts := pickSeparator(text, s.Size)
	var chunks []string
	var cur string
	for _, part := range parts {
		// A single part may itself be too long for the window.
		if utf8.RuneCountInString(part) > s.Size && sep != "" {
			if cur != "" {
				chunks = append(chunks, cur)
				cur = ""
			}
			chunks = append(chunks, s.Split(part)...)
			continue
		}

		candidate := part
		if cur != "" {
			candidate = cur + sep + part
		}
		if utf8.RuneCountInString(candidate) <= s.Size || cur == "" {
			cur = candidate
			continue
		}

		chunks = append(chunks, cur)
		if tail := lastRunes(cur, s.Overlap); tail != "" && utf8.RuneCountInString(tail+sep+part) <= s.Size {
			cur = tail + sep + part
		} else {
			cur = part
		}
	}
	if strings.TrimSpace(cur) != "" {
		chunks = append(chunks, cur)
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func pickSeparator(text string, size int) (string, []string) {
	for _, sep := range separators {
		if sep == "" {
			return "", cutRunes(text, size)
		}
		if parts := strings.Split(text, sep); len(parts) > 1 {
			return sep, parts
		}
	}
	return "", []string{text}
}

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if n >= len(r) {
		return s
	}
	return string(r[len(r)-n:])
}

func cutRunes(text string, n int) []string {
	r := []rune(text)
	var out []string
	for i := 0; i < len(r); i += n {
		out = append(out, string(r[i:min(i+n, len(r))]))
	}
	return out
}
