// Package serial looks up equipment by serial number, retrying with
// visually confusable spellings when recognition mixed up O and 0.
package serial

import (
	"context"
	"errors"
	"strings"

	"inventory-assistant-be/pkg/inventory"
)

// Variants returns the original followed by the all-O-to-0 and all-0-to-O
// spellings. Duplicates are dropped; variants are never expanded further.
func Variants(serial string) []string {
	if serial == "" {
		return nil
	}
	candidates := []string{
		serial,
		strings.NewReplacer("O", "0", "o", "0").Replace(serial),
		strings.ReplaceAll(serial, "0", "O"),
	}

	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Finder is the part of inventory.Datastore needed for lookups.
type Finder interface {
	FindBySerial(ctx context.Context, db, serial string) (*inventory.Equipment, error)
}

// Match is a successful lookup. Serial is the spelling that hit, so callers
// display the corrected value.
type Match struct {
	Equipment *inventory.Equipment
	Serial    string
	Variant   bool
}

// Lookup tries the exact serial and then each variant in order, stopping at
// the first hit. A miss on every spelling returns inventory.ErrNotFound.
func Lookup(ctx context.Context, finder Finder, db, serial string) (*Match, error) {
	for i, candidate := range Variants(serial) {
		eq, err := finder.FindBySerial(ctx, db, candidate)
		if err == nil && eq != nil {
			return &Match{Equipment: eq, Serial: candidate, Variant: i > 0}, nil
		}
		if err != nil && !errors.Is(err, inventory.ErrNotFound) {
			return nil, err
		}
	}
	return nil, inventory.ErrNotFound
}
