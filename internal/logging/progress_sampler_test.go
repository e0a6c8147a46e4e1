package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		want       float64
	}{
		{"zero", 0, 0.1},
		{"negative", -1, 0.1},
		{"above one", 5, 0.1},
		{"custom", 0.25, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.want {
				t.Fatalf("bucketSize = %v, want %v", s.bucketSize, tt.want)
			}
		})
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(0.25)
	steps := []struct {
		fraction float64
		stage    string
		want     bool
	}{
		{0, "capturing", true},
		{0.1, "capturing", false},
		{0.25, "capturing", true},
		{0.3, "capturing", false},
		{0.75, "capturing", true},
		{1.5, "capturing", true},
		{1, "capturing", false},
		{0, "voicing", true},
		{-1, "voicing", false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.fraction, step.stage); got != step.want {
			t.Fatalf("step %d (%v, %s): got %v want %v", i, step.fraction, step.stage, got, step.want)
		}
	}
}

func TestProgressSamplerNilAndReset(t *testing.T) {
	var nilSampler *ProgressSampler
	if !nilSampler.ShouldLog(0.5, "x") {
		t.Fatal("nil sampler should always log")
	}
	nilSampler.Reset()

	s := NewProgressSampler(0.5)
	s.ShouldLog(0.6, "scripting")
	s.Reset()
	if !s.ShouldLog(0.6, "scripting") {
		t.Fatal("expected emit after reset")
	}
}
