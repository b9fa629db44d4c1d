// Package sponsorship estimates how likely an employer is to sponsor an H1B visa.
package sponsorship

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Registry is the list of known sponsor name fragments. It is read once and never mutated.
type Registry struct {
	names []string
}

func NewRegistry(names []string) *Registry {
	r := &Registry{names: make([]string, 0, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			r.names = append(r.names, n)
		}
	}
	return r
}

// LoadRegistry reads one sponsor per line. A missing file yields an empty registry.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return NewRegistry(nil), nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewRegistry(nil), nil
		}
		return nil, fmt.Errorf("open sponsor registry: %w", err)
	}
	defer file.Close()

	r, err := ReadRegistry(file)
	if err != nil {
		return nil, fmt.Errorf("read sponsor registry %s: %w", path, err)
	}
	return r, nil
}

func ReadRegistry(r io.Reader) (*Registry, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		names = append(names, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewRegistry(names), nil
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Names returns a copy of the entries in file order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Matches returns entries contained in company, case-insensitively. With first set it stops at
// the first hit.
func (r *Registry) Matches(company string, first bool) []string {
	if r == nil {
		return nil
	}
	company = strings.ToLower(company)
	if company == "" {
		return nil
	}

	var out []string
	for _, n := range r.names {
		if strings.Contains(company, strings.ToLower(n)) {
			out = append(out, n)
			if first {
				break
			}
		}
	}
	return out
}
