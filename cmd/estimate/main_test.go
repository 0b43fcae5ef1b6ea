package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/graphite/estimate"
	"github.com/pthm-cable/graphite/falloff"
	"github.com/pthm-cable/graphite/imageio"
	"github.com/pthm-cable/graphite/stamp"
)

func TestToReferenceScale(t *testing.T) {
	dot, err := stamp.Render(stamp.Request{
		CanvasSize: 61,
		Diameter:   40,
		Pressure:   0.8,
		Stamps:     1,
		Profile:    falloff.Flat(),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := imageio.AlphaImage(dot.Alpha, dot.Size, dot.Size)

	tests := []struct {
		name     string
		path     string
		diameter float64
		s0       float64
		side     int
	}{
		{"name metadata", "dot-S40-P0.8-N1.png", 0, 40, 41},
		{"flag overrides", "dot.png", 40, 80, 81},
		{"image width", "dot.png", 0, 60, 61},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scaled, err := toReferenceScale(img, tt.path, tt.diameter, tt.s0)
			if err != nil {
				t.Fatalf("toReferenceScale: %v", err)
			}
			if b := scaled.Bounds(); b.Dx() != tt.side || b.Dy() != tt.side {
				t.Errorf("size = %v, want %dx%d", b, tt.side, tt.side)
			}
		})
	}

	if _, err := toReferenceScale(img, "dot.png", 0, 0); err == nil {
		t.Error("expected error for zero reference diameter")
	}
}

func TestEstimateCroppedCapture(t *testing.T) {
	dot, err := stamp.Render(stamp.Request{
		CanvasSize: 61,
		Diameter:   40,
		Pressure:   0.8,
		Stamps:     1,
		Profile:    falloff.Flat(),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := imageio.AlphaImage(dot.Alpha, dot.Size, dot.Size)

	scaled, err := toReferenceScale(img, "dot-S40-P0.8-N1.png", 0, 40)
	if err != nil {
		t.Fatalf("toReferenceScale: %v", err)
	}
	res, err := estimate.EstimateImage(scaled, falloff.Flat(), estimate.Options{S0: 40})
	if err != nil {
		t.Fatalf("EstimateImage: %v", err)
	}
	// 8-bit capture of a flat 0.8 dot.
	if math.Abs(res.Median-0.8) > 1.0/255 {
		t.Errorf("Median = %v, want 0.8", res.Median)
	}
}
