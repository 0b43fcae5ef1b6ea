package falloff

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/graphite/table"
)

// ErrInvalidGeometry is returned for non-positive canvas sizes or diameters.
var ErrInvalidGeometry = errors.New("falloff: invalid stamp geometry")

// Map is a per-pixel attenuation grid for one stamp centered on a square
// canvas. Pixels outside the stamp radius hold 0.
type Map struct {
	Size   int
	Values []float64
}

// Center returns the center coordinate of a square canvas, in pixel-index
// units along either axis.
func Center(size int) float64 {
	return float64(size-1) / 2
}

// CreateFlat returns attenuation 1 for every pixel of the canvas. The stamp
// footprint is applied by the compositor.
func CreateFlat(canvasSize int) (*Map, error) {
	if canvasSize <= 0 {
		return nil, fmt.Errorf("%w: canvas size %d", ErrInvalidGeometry, canvasSize)
	}
	m := &Map{Size: canvasSize, Values: make([]float64, canvasSize*canvasSize)}
	for i := range m.Values {
		m.Values[i] = 1
	}
	return m, nil
}

// CreateIdealCircle returns the linear ramp clamp(1 - distance/radius, 0, 1).
func CreateIdealCircle(canvasSize int, diameter float64) (*Map, error) {
	return rasterize(canvasSize, diameter, func(r01 float64) float64 {
		return clamp01(1 - r01)
	})
}

// CreateFromTable interpolates rows whose radii are a 0-100 percentage of
// the stamp radius.
func CreateFromTable(canvasSize int, diameter float64, rows []table.Row) (*Map, error) {
	p, err := FromRows(rows, PercentScale)
	if err != nil {
		return nil, err
	}
	return p.Rasterize(canvasSize, diameter)
}

// Rasterize evaluates the profile for every pixel inside the stamp.
func (p *Profile) Rasterize(canvasSize int, diameter float64) (*Map, error) {
	return rasterize(canvasSize, diameter, p.At)
}

// At returns the attenuation at pixel (x, y).
func (m *Map) At(x, y int) float64 {
	return m.Values[y*m.Size+x]
}

func rasterize(canvasSize int, diameter float64, f func(r01 float64) float64) (*Map, error) {
	if canvasSize <= 0 {
		return nil, fmt.Errorf("%w: canvas size %d", ErrInvalidGeometry, canvasSize)
	}
	if diameter <= 0 || math.IsNaN(diameter) {
		return nil, fmt.Errorf("%w: diameter %v", ErrInvalidGeometry, diameter)
	}

	m := &Map{Size: canvasSize, Values: make([]float64, canvasSize*canvasSize)}
	c := Center(canvasSize)
	radius := diameter / 2
	for y := 0; y < canvasSize; y++ {
		dy := float64(y) - c
		for x := 0; x < canvasSize; x++ {
			dx := float64(x) - c
			d := math.Hypot(dx, dy)
			if d > radius {
				continue
			}
			m.Values[y*canvasSize+x] = f(d / radius)
		}
	}
	return m, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
