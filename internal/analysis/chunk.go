package analysis

import "strings"

// Defaults used for uploaded documents.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ChunkText splits text into overlapping windows of at most size runes. A
// window is cut back to its last period or newline when that boundary lies
// past the halfway mark.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size/2 {
		overlap = size / 5
	}
	runes := []rune(text)
	if len(runes) <= size {
		if strings.TrimSpace(text) == "" {
			return []string{}
		}
		return []string{strings.TrimSpace(text)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			window := string(runes[start:end])
			cut := strings.LastIndexAny(window, ".\n")
			if cut >= 0 {
				breakAt := len([]rune(window[:cut])) + 1
				if breakAt > size/2 {
					end = start + breakAt
				}
			}
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}
