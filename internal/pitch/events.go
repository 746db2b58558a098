package pitch

// EstimateBounceIndex guesses the bounce position from raw pixel-Y motion.
// Image Y grows downward, so a bounce shows up as a short upward movement
// (Y decreasing) after a period of downward movement. This is a heuristic the
// user can override, not a certified detection.
func EstimateBounceIndex(yPx []float64) EventEstimate {
	n := len(yPx)
	if n < 5 {
		return EventEstimate{Index: maxInt(0, n-1), Confidence: 0.1}
	}

	dy := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		dy = append(dy, yPx[i]-yPx[i-1])
	}

	// First sign change from positive (down) to negative (up).
	for i := 2; i < len(dy)-1; i++ {
		if dy[i-1] > 0 && dy[i] < 0 {
			return EventEstimate{Index: i, Confidence: 0.6}
		}
	}

	// Fallback: a plausible early point.
	return EventEstimate{Index: maxInt(1, n/3), Confidence: 0.2}
}

// EstimateImpactIndex defaults the pad impact to the last tracked point.
func EstimateImpactIndex(n int) EventEstimate {
	if n <= 0 {
		return EventEstimate{Index: 0, Confidence: 0}
	}
	return EventEstimate{Index: n - 1, Confidence: 0.5}
}

// ClampEventIndex keeps a user-supplied override inside the track.
func ClampEventIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	return clampInt(i, 0, n-1)
}
