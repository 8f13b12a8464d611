package source

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/okian/restock/internal/domain/model"
)

// FileSource reads a JSON array of already augmented catalog items.
type FileSource struct {
	path     string
	minItems int
}

// NewFileSource returns a source reading path. Padding is applied when
// minItems is positive.
func NewFileSource(path string, minItems int) *FileSource {
	return &FileSource{path: path, minItems: minItems}
}

// Fetch reads and decodes the file.
func (s *FileSource) Fetch(_ context.Context) ([]model.CatalogItem, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file %s: %w", s.path, err)
	}
	var items []model.CatalogItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, s.path, err)
	}
	return Pad(items, s.minItems), nil
}
