package assembler

// XfadeOffsets returns the xfade offset for each consecutive pair of clips.
// After joining clips 0..i the chain is sum(d[0..i]) - i*t long, and the next
// transition must begin t seconds before that end.
func XfadeOffsets(durations []float64, transition float64) []float64 {
	if len(durations) < 2 {
		return nil
	}
	offsets := make([]float64, 0, len(durations)-1)
	sum := 0.0
	for i := range len(durations) - 1 {
		sum += durations[i]
		offsets = append(offsets, sum-float64(i+1)*transition)
	}
	return offsets
}

// JoinedDuration is the length of clips joined with overlapping transitions.
func JoinedDuration(durations []float64, transition float64) float64 {
	total := 0.0
	for _, d := range durations {
		total += d
	}
	if len(durations) > 1 {
		total -= float64(len(durations)-1) * transition
	}
	return total
}

// ClipDurations pads each narration by the transition length so the overlap
// eats silence instead of speech.
func ClipDurations(narration []float64, transition float64) []float64 {
	out := make([]float64, len(narration))
	for i, d := range narration {
		out[i] = d + transition
	}
	return out
}
