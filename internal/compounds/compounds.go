// Package compounds identifies likely PFAS species from detected peak
// patterns. The reference table is read-only after startup and safe for
// unsynchronized concurrent use.
package compounds

import (
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Signal is one characteristic 19F resonance of a compound.
type Signal struct {
	PPM    float64 `yaml:"ppm"`
	Weight float64 `yaml:"weight"` // Relative importance, defaults to 1
}

// Compound is a reference record for a known PFAS species. Asset names are
// resolved against the matcher's asset directory at match time.
type Compound struct {
	Name      string   `yaml:"name"`
	Formula   string   `yaml:"formula"`
	CAS       string   `yaml:"cas"`
	Image2D   string   `yaml:"image2D"`     // e.g. "pfoa.png"
	Structure string   `yaml:"structure3D"` // e.g. "pfoa.mol"
	Signature []Signal `yaml:"signature"`
}

// Match is a scored compound identification.
type Match struct {
	Name        string    `json:"name"`
	Formula     string    `json:"formula"`
	CAS         string    `json:"cas"`
	Confidence  float64   `json:"confidence"` // 0-100
	MatchedPPM  []float64 `json:"matched_ppm,omitempty"`
	Image2D     string    `json:"image_2d,omitempty"`
	Structure3D string    `json:"structure_3d,omitempty"`
}

const (
	defaultTolerance     = 1.5  // ppm
	defaultMinConfidence = 50.0 // percent
)

// WithTolerance sets the maximum distance in ppm between a detected peak
// and a signature resonance for the two to be considered the same signal.
func WithTolerance(ppm float64) func(*Matcher) {
	return func(m *Matcher) {
		m.tolerance = ppm
	}
}

// WithMinConfidence sets the confidence below which candidates are dropped.
func WithMinConfidence(pct float64) func(*Matcher) {
	return func(m *Matcher) {
		m.minConfidence = pct
	}
}

// WithAssetDir sets the directory holding 2D images and 3D structure files.
// Assets that do not exist on disk are omitted from matches; the match
// itself is still returned.
func WithAssetDir(dir string) func(*Matcher) {
	return func(m *Matcher) {
		m.assetDir = dir
	}
}

// Matcher scores detected peak positions against the reference table.
type Matcher struct {
	table         []Compound
	tolerance     float64
	minConfidence float64
	assetDir      string
}

// NewMatcher creates a matcher over the given reference table.
func NewMatcher(table []Compound, options ...func(*Matcher)) *Matcher {
	m := Matcher{
		table:         table,
		tolerance:     defaultTolerance,
		minConfidence: defaultMinConfidence,
	}
	for _, option := range options {
		option(&m)
	}
	return &m
}

// Count returns the number of compounds in the reference table.
func (m *Matcher) Count() int {
	return len(m.table)
}

// Match scores every reference compound against the detected peak positions
// and returns candidates at or above the minimum confidence, ordered by
// descending confidence. Peaks that match nothing are simply not reported.
func (m *Matcher) Match(peakPPMs []float64) []Match {
	var matches []Match

	for _, c := range m.table {
		confidence, matched := m.score(c, peakPPMs)
		if confidence < m.minConfidence {
			continue
		}

		match := Match{
			Name:       c.Name,
			Formula:    c.Formula,
			CAS:        c.CAS,
			Confidence: confidence,
			MatchedPPM: matched,
		}
		if path := m.assetPath(c.Image2D); path != "" {
			match.Image2D = path
		}
		if path := m.assetPath(c.Structure); path != "" {
			match.Structure3D = path
		}
		matches = append(matches, match)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches
}

// score returns the weighted fraction of signature signals covered by
// detected peaks, as a percentage, plus the peak positions that matched.
func (m *Matcher) score(c Compound, peakPPMs []float64) (confidence float64, matched []float64) {
	var total, hit float64

	for _, sig := range c.Signature {
		weight := sig.Weight
		if weight <= 0 {
			weight = 1
		}
		total += weight

		best := math.Inf(1)
		var bestPPM float64
		for _, ppm := range peakPPMs {
			if d := math.Abs(ppm - sig.PPM); d < best {
				best = d
				bestPPM = ppm
			}
		}
		if best <= m.tolerance {
			hit += weight
			matched = append(matched, bestPPM)
		}
	}

	if total == 0 {
		return 0, nil
	}
	return hit / total * 100, matched
}

// assetPath resolves an asset name against the asset directory, returning
// the empty string when the name is unset or the file does not exist.
func (m *Matcher) assetPath(name string) string {
	if name == "" || m.assetDir == "" {
		return ""
	}
	path := filepath.Join(m.assetDir, name)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Default returns the built-in PFAS reference table. Signature shifts are
// literature 19F values referenced to CFCl3.
func Default() []Compound {
	return []Compound{
		{
			Name:      "Perfluorooctanoic acid (PFOA)",
			Formula:   "C8HF15O2",
			CAS:       "335-67-1",
			Image2D:   "pfoa.png",
			Structure: "pfoa.mol",
			Signature: []Signal{
				{PPM: -81.0, Weight: 2},
				{PPM: -118.5},
				{PPM: -122.0},
				{PPM: -123.0},
				{PPM: -126.5},
			},
		},
		{
			Name:      "Perfluorooctanesulfonic acid (PFOS)",
			Formula:   "C8HF17O3S",
			CAS:       "1763-23-1",
			Image2D:   "pfos.png",
			Structure: "pfos.mol",
			Signature: []Signal{
				{PPM: -81.0, Weight: 2},
				{PPM: -114.5},
				{PPM: -121.5},
				{PPM: -122.5},
				{PPM: -126.0},
			},
		},
		{
			Name:      "Perfluorobutanesulfonic acid (PFBS)",
			Formula:   "C4HF9O3S",
			CAS:       "375-73-5",
			Image2D:   "pfbs.png",
			Structure: "pfbs.mol",
			Signature: []Signal{
				{PPM: -81.2, Weight: 2},
				{PPM: -115.0},
				{PPM: -121.8},
				{PPM: -126.1},
			},
		},
		{
			Name:      "Perfluorohexanoic acid (PFHxA)",
			Formula:   "C6HF11O2",
			CAS:       "307-24-4",
			Image2D:   "pfhxa.png",
			Structure: "pfhxa.mol",
			Signature: []Signal{
				{PPM: -81.1, Weight: 2},
				{PPM: -119.0},
				{PPM: -123.5},
				{PPM: -126.3},
			},
		},
		{
			Name:      "Trifluoroacetic acid (TFA)",
			Formula:   "C2HF3O2",
			CAS:       "76-05-1",
			Image2D:   "tfa.png",
			Structure: "tfa.mol",
			Signature: []Signal{
				{PPM: -76.5, Weight: 2},
			},
		},
	}
}
