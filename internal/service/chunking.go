package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ChunkConfig controls chunking for document embeddings. Sizes are
// approximate token counts (whitespace fields), not model tokenizer counts.
type ChunkConfig struct {
	Size    int // max tokens per chunk
	Overlap int // trailing tokens of a chunk repeated at the start of the next
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    400,
		Overlap: 60,
	}
}

// TextChunk is one bounded segment of a document's text.
type TextChunk struct {
	Content    string
	TokenCount int
	// ContentHash is a sha256 of Content, stable across runs so unchanged
	// chunks can be detected without re-embedding.
	ContentHash string
}

// separators in descending priority: paragraph, line, sentence, word.
var chunkSeparators = []string{"\n\n", "\n", ". ", " "}

// SplitText splits text into overlapping, size-bounded chunks. Empty input
// yields zero chunks. A single indivisible token longer than the target
// becomes its own chunk rather than being dropped.
func SplitText(text string, cfg ChunkConfig) []TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if cfg.Size <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = cfg.Size - 1
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}

	pieces := splitRecursive(text, chunkSeparators, cfg.Size)
	base := mergePieces(pieces, cfg.Size)

	chunks := make([]TextChunk, 0, len(base))
	for i, content := range base {
		if i > 0 && cfg.Overlap > 0 {
			content = tailTokens(base[i-1], cfg.Overlap) + content
		}
		chunks = append(chunks, TextChunk{
			Content:     content,
			TokenCount:  countTokens(content),
			ContentHash: HashContent(content),
		})
	}
	return chunks
}

// HashContent returns the stable content hash used for chunk change
// detection.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func countTokens(s string) int {
	return len(strings.Fields(s))
}

// splitRecursive breaks text on the highest-priority separator that
// produces pieces at or under the size budget, recursing into oversized
// pieces with the remaining separators. Separators stay attached to the
// preceding piece so the pieces concatenate back to the input verbatim.
func splitRecursive(text string, seps []string, size int) []string {
	if countTokens(text) <= size || len(seps) == 0 {
		return []string{text}
	}

	parts := splitKeepingSeparator(text, seps[0])
	if len(parts) == 1 {
		return splitRecursive(text, seps[1:], size)
	}

	var out []string
	for _, part := range parts {
		if countTokens(part) > size {
			out = append(out, splitRecursive(part, seps[1:], size)...)
		} else {
			out = append(out, part)
		}
	}
	return out
}

// splitKeepingSeparator splits after each occurrence of sep, keeping sep on
// the preceding piece.
func splitKeepingSeparator(text, sep string) []string {
	raw := strings.Split(text, sep)
	if len(raw) == 1 {
		return raw
	}
	parts := make([]string, 0, len(raw))
	for i, piece := range raw {
		if i < len(raw)-1 {
			piece += sep
		}
		if piece != "" {
			parts = append(parts, piece)
		}
	}
	return parts
}

// mergePieces packs consecutive pieces into chunks of at most size tokens.
// The result is a verbatim partition of the original text.
func mergePieces(pieces []string, size int) []string {
	var (
		chunks    []string
		cur       strings.Builder
		curTokens int
	)
	for _, piece := range pieces {
		n := countTokens(piece)
		if curTokens > 0 && curTokens+n > size {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curTokens = 0
		}
		cur.WriteString(piece)
		curTokens += n
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// tailTokens returns the suffix of s containing its last n tokens,
// including the whitespace between them.
func tailTokens(s string, n int) string {
	if n <= 0 {
		return ""
	}
	seen := 0
	inToken := false
	runes := []rune(s)
	for i := len(runes) - 1; i >= 0; i-- {
		isSpace := runes[i] == ' ' || runes[i] == '\t' || runes[i] == '\n' || runes[i] == '\r'
		if !isSpace && !inToken {
			inToken = true
			seen++
		} else if isSpace && inToken {
			inToken = false
			if seen == n {
				return string(runes[i+1:])
			}
		}
	}
	return s
}
