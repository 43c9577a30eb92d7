package spectrum

// Point represents a single intensity sample on the chemical shift axis.
type Point struct {
	PPM       float64 `json:"ppm"`       // Chemical shift in parts-per-million
	Intensity float64 `json:"intensity"` // Signal intensity in arbitrary units
}

// Spectrum represents a complete 19F-NMR trace as an ordered sequence of
// intensity samples. Points are sorted by ppm in ascending order and the
// series is immutable after loading; all downstream computations rely on
// that ordering.
type Spectrum struct {
	Points []Point `json:"points"`
}

// Len returns the number of samples in the spectrum.
func (s *Spectrum) Len() int {
	return len(s.Points)
}

// MinPPM returns the lowest chemical shift in the spectrum.
func (s *Spectrum) MinPPM() float64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[0].PPM
}

// MaxPPM returns the highest chemical shift in the spectrum.
func (s *Spectrum) MaxPPM() float64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].PPM
}

// Intensities returns the intensity values in ppm order. The returned slice
// is a copy and safe to mutate.
func (s *Spectrum) Intensities() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Intensity
	}
	return out
}
