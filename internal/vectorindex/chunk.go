package vectorindex

import "strings"

// ChunkParams controls the chunking window (spec.md §4.6).
type ChunkParams struct {
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
}

// sentenceBreakers are checked, in the last 20% of a window, for a
// preferred break point before falling back to the raw window boundary
// (spec.md §4.6 "prefer sentence-boundary breaks").
var sentenceBreakers = []string{". ", ".\n", "! ", "? ", "\n\n"}

// Chunk splits content into overlapping windows. Monotonic advance of at
// least one character is guaranteed so pathological inputs (e.g. overlap
// >= chunk size) can never loop forever. Content shorter than ChunkSize
// becomes a single chunk.
func Chunk(content string, p ChunkParams) []string {
	if p.ChunkSize <= 0 {
		p.ChunkSize = 1000
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		p.ChunkOverlap = p.ChunkSize / 5
	}
	if p.MinChunkSize <= 0 {
		p.MinChunkSize = 100
	}

	runes := []rune(content)
	if len(runes) <= p.ChunkSize {
		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + p.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = preferSentenceBreak(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if len(chunk) >= p.MinChunkSize || end == len(runes) {
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
		}

		next := end - p.ChunkOverlap
		if next <= start {
			next = start + 1
		}
		if end == len(runes) {
			break
		}
		start = next
	}
	return chunks
}

// preferSentenceBreak looks for a sentence-ending delimiter within the
// last 20% of [start, end) and, if found, breaks there instead.
func preferSentenceBreak(runes []rune, start, end int) int {
	windowLen := end - start
	searchFrom := start + int(float64(windowLen)*0.8)
	if searchFrom < start {
		searchFrom = start
	}
	window := string(runes[searchFrom:end])

	bestIdx := -1
	for _, b := range sentenceBreakers {
		if idx := strings.LastIndex(window, b); idx != -1 {
			candidate := searchFrom + idx + len(b)
			if candidate > bestIdx {
				bestIdx = candidate
			}
		}
	}
	if bestIdx > start {
		return bestIdx
	}
	return end
}
