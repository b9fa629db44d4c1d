package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/dates"
	"github.com/spigell/h1b-finder/internal/posting"
)

// File reads postings from a local CSV export with the columns
// id,title,company,location,url,description and an optional posted_at.
type File struct {
	path   string
	dates  *dates.Normalizer
	logger *zap.Logger
}

func NewFile(path string, normalizer *dates.Normalizer, logger *zap.Logger) *File {
	return &File{
		path:   strings.TrimSpace(path),
		dates:  normalizer,
		logger: nopIfNil(logger).With(zap.String("source", string(posting.SourceFile))),
	}
}

func (f *File) Name() posting.Source { return posting.SourceFile }

// Search ignores the query text; the file is the result set.
func (f *File) Search(_ context.Context, _ Query) []*posting.Posting {
	postings, err := f.Load()
	if err != nil {
		f.logger.Warn("reading postings file failed", zap.String("path", f.path), zap.Error(err))
	}
	return postings
}

func (f *File) Load() ([]*posting.Posting, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open postings file: %w", err)
	}
	defer file.Close()

	return f.read(file)
}

func (f *File) read(r io.Reader) ([]*posting.Posting, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	get := func(rec []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[idx])
	}

	var out []*posting.Posting
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep what was read so far.
			return out, fmt.Errorf("read line %d: %w", line, err)
		}

		raw := get(rec, "posted_at")
		p := &posting.Posting{
			ID:          get(rec, "id"),
			Title:       get(rec, "title"),
			Company:     get(rec, "company"),
			Location:    get(rec, "location"),
			URL:         get(rec, "url"),
			Description: get(rec, "description"),
			Source:      posting.SourceFile,
			PostedAt:    f.dates.Normalize(raw),
			PostedAtRaw: raw,
		}
		p.EnsureID()
		out = append(out, p)
	}
	return out, nil
}
