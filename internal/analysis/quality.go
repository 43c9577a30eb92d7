package analysis

// Quality score weighting. SNR dominates: a clean spectrum with few peaks
// still scores well, while a noisy trace cannot be rescued by peak count.
const (
	snrWeight      = 0.5
	peakWeight     = 0.3
	baselineWeight = 0.2

	// snrHalfPoint is the mean SNR at which the SNR term reaches half of
	// its maximum. Chosen so routine bench spectra (SNR 100-300) land in
	// the 7-9 band displayed as good by consumers.
	snrHalfPoint = 50.0

	// expectedPeaks is the detection count at which the peak term
	// saturates.
	expectedPeaks = 3
)

// QualityScore combines mean peak SNR, detected peak count and baseline
// roughness into a single score in [0, 10]. The score is strictly
// increasing in mean SNR with the other inputs held fixed.
func QualityScore(meanSNR float64, peakCount int, baselineRoughness float64) float64 {
	if meanSNR < 0 {
		meanSNR = 0
	}
	if baselineRoughness < 0 {
		baselineRoughness = 0
	}

	snrTerm := meanSNR / (meanSNR + snrHalfPoint)

	peakTerm := float64(peakCount) / expectedPeaks
	if peakTerm > 1 {
		peakTerm = 1
	}

	baselineTerm := 1 / (1 + baselineRoughness)

	score := 10 * (snrWeight*snrTerm + peakWeight*peakTerm + baselineWeight*baselineTerm)
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
