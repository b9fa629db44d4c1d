// Package profile loads the candidate résumé and serves the parts relevant to a posting.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/tmc/langchaingo/textsplitter"
)

// ErrNoProfile means no usable résumé was found. Callers must not invent match scores without one.
var ErrNoProfile = errors.New("candidate profile is not available")

const (
	DefaultChunkSize    = 750
	DefaultChunkOverlap = 100
	DefaultSummaryRunes = 4000
)

type ChunkConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

type Profile struct {
	Path   string
	Text   string
	Chunks []string
}

// Load reads a résumé and splits it into retrieval chunks. Office and PDF formats go through
// docconv; .txt and .md are read as is.
func Load(path string, cfg ChunkConfig) (*Profile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrNoProfile
	}

	text, err := ReadText(path)
	if err != nil {
		return nil, err
	}

	return New(path, text, cfg)
}

// New builds a profile from already extracted text.
func New(path, text string, cfg ChunkConfig) (*Profile, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoProfile, path)
	}

	chunks, err := Split(text, cfg)
	if err != nil {
		return nil, fmt.Errorf("split profile: %w", err)
	}

	return &Profile{Path: path, Text: text, Chunks: chunks}, nil
}

func ReadText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt", ".md", "":
		content, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s not found", ErrNoProfile, path)
			}
			return "", fmt.Errorf("read profile: %w", err)
		}
		return string(content), nil
	case ".pdf", ".docx", ".doc", ".rtf", ".odt":
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s not found", ErrNoProfile, path)
		}
		res, err := docconv.ConvertPath(path)
		if err != nil {
			return "", fmt.Errorf("parse profile document: %w", err)
		}
		return res.Body, nil
	default:
		return "", fmt.Errorf("unsupported profile file type: %s", ext)
	}
}

func Split(text string, cfg ChunkConfig) ([]string, error) {
	size := cfg.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := cfg.Overlap
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)

	raw, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// Summary is the leading part of the résumé sent with every judge request.
func (p *Profile) Summary(limit int) string {
	if p == nil {
		return ""
	}
	if limit <= 0 {
		limit = DefaultSummaryRunes
	}
	runes := []rune(p.Text)
	if len(runes) <= limit {
		return p.Text
	}
	return string(runes[:limit])
}
