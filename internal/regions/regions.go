// Package regions maps 19F chemical shifts to named chemical environments.
// The canonical table is loaded once at startup and shared read-only across
// concurrent analyses.
package regions

import (
	"fmt"
	"sort"
)

// Region represents a named chemical shift range. The range is half-open,
// (min, max], so adjacent regions can share a boundary without ambiguity:
// a shift exactly on the boundary belongs to the region above it.
type Region struct {
	MinPPM float64 `json:"min_ppm" yaml:"minPPM"`
	MaxPPM float64 `json:"max_ppm" yaml:"maxPPM"`
	Label  string  `json:"label" yaml:"label"`
}

func (r Region) contains(ppm float64) bool {
	return ppm > r.MinPPM && ppm <= r.MaxPPM
}

func (r Region) width() float64 {
	return r.MaxPPM - r.MinPPM
}

// Classifier resolves chemical shifts to region labels.
type Classifier struct {
	regions []Region
}

// NewClassifier validates the region table and returns a classifier.
// Regions must be well-formed (min < max); overlapping regions are allowed
// in source data but classification deterministically prefers the narrowest
// matching range.
func NewClassifier(table []Region) (*Classifier, error) {
	for i, r := range table {
		if r.MinPPM >= r.MaxPPM {
			return nil, fmt.Errorf("region %q: min %.2f ppm is not below max %.2f ppm", r.Label, r.MinPPM, r.MaxPPM)
		}
		if r.Label == "" {
			return nil, fmt.Errorf("region %d: missing label", i)
		}
	}

	// Narrowest-first so the first match wins on overlap.
	sorted := make([]Region, len(table))
	copy(sorted, table)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].width() < sorted[j].width()
	})

	return &Classifier{regions: sorted}, nil
}

// Classify returns the label of the region containing ppm, or ok=false when
// no region matches.
func (c *Classifier) Classify(ppm float64) (label string, ok bool) {
	for _, r := range c.regions {
		if r.contains(ppm) {
			return r.Label, true
		}
	}
	return "", false
}

// Regions returns the region table in its canonical (source) order.
func (c *Classifier) Regions() []Region {
	out := make([]Region, len(c.regions))
	copy(out, c.regions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinPPM < out[j].MinPPM
	})
	return out
}

// Overlaps reports whether any two regions in the table overlap. The
// canonical table is expected to be overlap-free; this is verified at
// startup and logged if violated.
func Overlaps(table []Region) bool {
	sorted := make([]Region, len(table))
	copy(sorted, table)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPPM < sorted[j].MinPPM
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].MinPPM < sorted[i-1].MaxPPM {
			return true
		}
	}
	return false
}

// Default returns the canonical 19F region table for PFAS work.
func Default() []Region {
	return []Region{
		{MinPPM: -60, MaxPPM: -40, Label: "CF3 ether"},
		{MinPPM: -85, MaxPPM: -60, Label: "CF3 terminal"},
		{MinPPM: -120, MaxPPM: -85, Label: "CF2 chain"},
		{MinPPM: -130, MaxPPM: -120, Label: "CF2 alpha"},
		{MinPPM: -140, MaxPPM: -130, Label: "CF backbone"},
		{MinPPM: -230, MaxPPM: -180, Label: "CHF aliphatic"},
	}
}
