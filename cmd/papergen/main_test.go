package main

import (
	"testing"

	"github.com/pthm-cable/graphite/paper"
)

func TestOverrideSynth(t *testing.T) {
	base := paper.DefaultSynthParams()

	if got := overrideSynth(base, 0, 0, 0, 0); got != base {
		t.Errorf("zero flags changed params: %+v", got)
	}

	got := overrideSynth(base, 7, 12, 2, 1.5)
	want := base
	want.Seed, want.Scale, want.Octaves, want.Contrast = 7, 12, 2, 1.5
	if got != want {
		t.Errorf("overrideSynth = %+v, want %+v", got, want)
	}
}
