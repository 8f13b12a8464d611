// Package source fetches raw catalog records and turns them into catalog items.
package source

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/okian/restock/internal/domain/model"
)

// Source supplies a complete catalog.
type Source interface {
	Fetch(ctx context.Context) ([]model.CatalogItem, error)
}

// RawID is a product identifier that may arrive as a JSON number or string.
type RawID string

// UnmarshalJSON accepts numbers and strings.
func (id *RawID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RawID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("%w: id %s", ErrDecode, data)
	}
	*id = RawID(data)
	return nil
}

// RawProduct is an upstream record before augmentation.
type RawProduct struct {
	ID    RawID  `json:"id"`
	Title string `json:"title"`
}

type envelope struct {
	Products []RawProduct `json:"products"`
}

// DecodeProducts accepts {"products":[...]} or a bare array.
func DecodeProducts(body []byte) ([]RawProduct, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrDecode)
	}
	if body[0] == '[' {
		var products []RawProduct
		if err := json.Unmarshal(body, &products); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return products, nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if env.Products == nil {
		return nil, fmt.Errorf("%w: missing products", ErrDecode)
	}
	return env.Products, nil
}

// Pad clones items round-robin until there are at least minItems. Clones get the
// id "<id>-dup-<n>" where n is the clone's slot, so ids stay unique as long
// as the input ids were.
func Pad(items []model.CatalogItem, minItems int) []model.CatalogItem {
	if len(items) == 0 || len(items) >= minItems {
		return items
	}
	out := make([]model.CatalogItem, len(items), minItems)
	copy(out, items)
	for n := len(items); n < minItems; n++ {
		clone := items[n%len(items)]
		clone.ID = fmt.Sprintf("%s-dup-%d", clone.ID, n)
		out = append(out, clone)
	}
	return out
}
