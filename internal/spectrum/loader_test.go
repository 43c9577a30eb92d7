package spectrum

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func buildInput(header string, n int) string {
	var sb strings.Builder
	if header != "" {
		sb.WriteString(header)
		sb.WriteString("\n")
	}
	for i := 0; i < n; i++ {
		// Descending ppm, as spectrometers commonly export.
		fmt.Fprintf(&sb, "%.2f,%.2f\n", -60.0-float64(i), float64(i))
	}
	return sb.String()
}

func TestParse_OrderedOutput(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		points int
	}{
		{"no header", buildInput("", 12), 12},
		{"with header", buildInput("ppm,intensity", 12), 12},
		{"blank lines", buildInput("", 10) + "\n\n", 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec, err := Parse(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if spec.Len() != tc.points {
				t.Fatalf("expected %d points, got %d", tc.points, spec.Len())
			}
			for i := 1; i < spec.Len(); i++ {
				if spec.Points[i].PPM < spec.Points[i-1].PPM {
					t.Fatalf("points not sorted ascending at index %d", i)
				}
			}
		})
	}
}

func TestParse_MalformedLine(t *testing.T) {
	input := "-60.0,1.0\n-61.0,2.0\n-62.0,oops\n-63.0,4.0\n"

	_, err := Parse(strings.NewReader(input))
	var malformed *MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
	if malformed.Line != 3 {
		t.Errorf("expected error on line 3, got line %d", malformed.Line)
	}
}

func TestParse_WrongColumnCount(t *testing.T) {
	input := buildInput("", 10) + "-75.0,1.0,2.0\n"

	_, err := Parse(strings.NewReader(input))
	var malformed *MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
}

func TestParse_InsufficientData(t *testing.T) {
	_, err := Parse(strings.NewReader(buildInput("", 9)))
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.Points != 9 {
		t.Errorf("expected 9 points reported, got %d", insufficient.Points)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestSpectrum_Bounds(t *testing.T) {
	spec, err := Parse(strings.NewReader(buildInput("", 10)))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := spec.MinPPM(); got != -69.0 {
		t.Errorf("expected MinPPM -69.0, got %f", got)
	}
	if got := spec.MaxPPM(); got != -60.0 {
		t.Errorf("expected MaxPPM -60.0, got %f", got)
	}
}
