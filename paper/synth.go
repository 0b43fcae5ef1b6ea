package paper

import (
	"fmt"
	"math"

	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/floats"
)

// SynthParams controls the synthetic paper grain generator.
type SynthParams struct {
	Seed       int64
	Scale      float64 // base frequency, in noise cycles across the tile
	Octaves    int
	Lacunarity float64 // frequency multiplier per octave
	Gain       float64 // amplitude multiplier per octave
	Contrast   float64 // exponent applied before rescaling (1 = none)
}

// DefaultSynthParams returns a fine, fairly even grain.
func DefaultSynthParams() SynthParams {
	return SynthParams{
		Seed:       1,
		Scale:      24,
		Octaves:    4,
		Lacunarity: 2.0,
		Gain:       0.5,
		Contrast:   1.0,
	}
}

// GenerateValues synthesizes a size x size tileable grain rescaled to [0,1].
//
// Each pixel is mapped onto a torus in 4D noise space (one circle per axis),
// which makes the texture wrap seamlessly in both directions.
func GenerateValues(size int, p SynthParams) ([]float64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("paper: invalid synth size %d", size)
	}
	if p.Octaves < 1 {
		p.Octaves = 1
	}
	if p.Contrast <= 0 {
		p.Contrast = 1
	}

	noise := opensimplex.NewNormalized(p.Seed)
	values := make([]float64, size*size)
	for y := 0; y < size; y++ {
		v := 2 * math.Pi * float64(y) / float64(size)
		for x := 0; x < size; x++ {
			u := 2 * math.Pi * float64(x) / float64(size)
			values[y*size+x] = math.Pow(fbm(noise, u, v, p), p.Contrast)
		}
	}

	lo, hi := floats.Min(values), floats.Max(values)
	if span := hi - lo; span > 0 {
		for i, v := range values {
			values[i] = (v - lo) / span
		}
	}
	return values, nil
}

// Generate synthesizes a tileable grain and wraps it in a Field.
func Generate(size int, p SynthParams, opts Options) (*Field, error) {
	values, err := GenerateValues(size, p)
	if err != nil {
		return nil, err
	}
	return newField(size, size, values, nil, opts)
}

func fbm(noise opensimplex.Noise, u, v float64, p SynthParams) float64 {
	var sum, norm float64
	amp := 1.0
	freq := p.Scale / (2 * math.Pi) // circle circumference equals Scale
	for o := 0; o < p.Octaves; o++ {
		sum += amp * noise.Eval4(
			freq*math.Cos(u), freq*math.Sin(u),
			freq*math.Cos(v), freq*math.Sin(v),
		)
		norm += amp
		amp *= p.Gain
		freq *= p.Lacunarity
	}
	return sum / norm
}
