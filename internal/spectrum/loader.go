package spectrum

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// MinPoints is the minimum number of samples required for a spectrum to be
// statistically meaningful for baseline estimation and peak detection.
const MinPoints = 10

// MalformedInputError reports an input line that could not be parsed as a
// two-column numeric record.
type MalformedInputError struct {
	Line int    // 1-based line number of the offending record
	Text string // Raw content of the offending line
	Err  error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input at line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// InsufficientDataError reports an input with too few data points for
// analysis.
type InsufficientDataError struct {
	Points int
	Min    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d points, at least %d required", e.Points, e.Min)
}

// Parse reads a two-column (ppm, intensity) comma-delimited table and
// returns an ordered Spectrum. A single non-numeric header line is skipped
// automatically. Points are sorted by ppm ascending regardless of input
// order.
func Parse(r io.Reader) (*Spectrum, error) {
	var points []Point

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		ppm, intensity, err := parseRecord(text)
		if err != nil {
			// The first line may be a column header; skip it when both
			// columns fail to parse as numbers.
			if line == 1 {
				continue
			}
			return nil, &MalformedInputError{Line: line, Text: text, Err: err}
		}

		points = append(points, Point{PPM: ppm, Intensity: intensity})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	if len(points) < MinPoints {
		return nil, &InsufficientDataError{Points: len(points), Min: MinPoints}
	}

	slices.SortStableFunc(points, func(a, b Point) int {
		switch {
		case a.PPM < b.PPM:
			return -1
		case a.PPM > b.PPM:
			return 1
		}
		return 0
	})

	return &Spectrum{Points: points}, nil
}

// ParseFile reads a spectrum from a file on disk.
func ParseFile(path string) (*Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening spectrum file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

func parseRecord(text string) (ppm, intensity float64, err error) {
	fields := strings.Split(text, ",")
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected 2 columns, got %d", len(fields))
	}

	if ppm, err = strconv.ParseFloat(strings.TrimSpace(fields[0]), 64); err != nil {
		return 0, 0, fmt.Errorf("parsing ppm column: %w", err)
	}
	if intensity, err = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("parsing intensity column: %w", err)
	}
	return ppm, intensity, nil
}
