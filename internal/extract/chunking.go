package extract

import "strings"

// ChunkText splits text into windows of at most chunkSize runes, each starting
// chunkSize-overlap runes after the previous one. Whitespace-only windows are
// dropped.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	step := chunkSize - overlap

	chunks := []string{}
	for i := 0; i < len(runes); i += step {
		end := min(i+chunkSize, len(runes))
		if chunk := strings.TrimSpace(string(runes[i:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
