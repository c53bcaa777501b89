// Package ingest loads and splits plain-text knowledge files. It is a
// pure utility: indexing the resulting chunks is the caller's concern.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Chunk is one split piece of a source document, with a locator that
// points back at the file and rune offset it came from.
type Chunk struct {
	Content string
	Source  string
}

// Load reads a document's text from disk.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("loading %s: %w", path, err)
	}
	return string(data), nil
}

// Split cuts text into rune windows of chunkSize with the given
// overlap between consecutive windows.
func Split(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := chunkSize - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
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

// LoadDir loads every .txt and .md file under dir and splits it,
// producing chunks whose source locator is "path#offset".
func LoadDir(dir string, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	var chunks []Chunk
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}
		text, err := Load(path)
		if err != nil {
			return err
		}
		step := chunkSize - overlap
		for i, piece := range Split(text, chunkSize, overlap) {
			chunks = append(chunks, Chunk{
				Content: piece,
				Source:  fmt.Sprintf("%s#%d", path, i*step),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}
