// Package radial bins an alpha grid by distance from its center.
package radial

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"

	"github.com/pthm-cable/graphite/imageio"
	"github.com/pthm-cable/graphite/table"
)

// DefaultBinWidth groups pixels into one-pixel rings.
const DefaultBinWidth = 1.0

// ErrEmpty is returned when no pixel was binned.
var ErrEmpty = errors.New("radial: no pixels binned")

// Bin accumulates the pixels of one ring.
type Bin struct {
	Index int
	Count int
	Sum   float64
	SumSq float64
}

// Mean returns sum/count, or 0 for an empty bin.
func (b Bin) Mean() float64 {
	if b.Count == 0 {
		return 0
	}
	return b.Sum / float64(b.Count)
}

// Stddev returns the population standard deviation of the bin.
func (b Bin) Stddev() float64 {
	if b.Count == 0 {
		return 0
	}
	m := b.Mean()
	return math.Sqrt(math.Max(0, b.SumSq/float64(b.Count)-m*m))
}

// Table holds one bin per ring index, including empty rings. Empty bins
// are never exported.
type Table struct {
	BinWidth float64
	Bins     []Bin
}

// Analyze bins a row-major alpha grid around ((w-1)/2, (h-1)/2).
func Analyze(alpha []float64, width, height int, binWidth float64) (*Table, error) {
	return AnalyzeMasked(alpha, nil, width, height, binWidth)
}

// AnalyzeMasked is Analyze restricted to pixels where mask is true. A nil
// mask includes every pixel.
func AnalyzeMasked(alpha []float64, mask []bool, width, height int, binWidth float64) (*Table, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("radial: invalid grid %dx%d", width, height)
	}
	if len(alpha) != width*height {
		return nil, fmt.Errorf("radial: %d samples for a %dx%d grid", len(alpha), width, height)
	}
	if mask != nil && len(mask) != len(alpha) {
		return nil, fmt.Errorf("radial: mask has %d entries, want %d", len(mask), len(alpha))
	}
	if !(binWidth > 0) {
		return nil, fmt.Errorf("radial: bin width must be positive, got %v", binWidth)
	}

	cx := float64(width-1) / 2
	cy := float64(height-1) / 2
	maxR := math.Hypot(cx, cy)
	t := &Table{
		BinWidth: binWidth,
		Bins:     make([]Bin, int(math.Floor(maxR/binWidth))+1),
	}
	for i := range t.Bins {
		t.Bins[i].Index = i
	}

	for y := 0; y < height; y++ {
		dy := float64(y) - cy
		for x := 0; x < width; x++ {
			i := y*width + x
			if mask != nil && !mask[i] {
				continue
			}
			k := int(math.Floor(math.Hypot(float64(x)-cx, dy) / binWidth))
			if k >= len(t.Bins) {
				k = len(t.Bins) - 1
			}
			v := alpha[i]
			b := &t.Bins[k]
			b.Count++
			b.Sum += v
			b.SumSq += v * v
		}
	}
	return t, nil
}

// AnalyzeImage bins the alpha channel of img.
func AnalyzeImage(img image.Image, binWidth float64) (*Table, error) {
	alpha, w, h := imageio.Alpha(img)
	return Analyze(alpha, w, h, binWidth)
}

// Radius returns the physical radius a bin is keyed by.
func (t *Table) Radius(index int) float64 {
	return float64(index) * t.BinWidth
}

// Rows returns the non-empty bins as table rows keyed by radius.
func (t *Table) Rows() []table.Row {
	rows := make([]table.Row, 0, len(t.Bins))
	for _, b := range t.Bins {
		if b.Count == 0 {
			continue
		}
		rows = append(rows, table.Row{
			R:      t.Radius(b.Index),
			Mean:   b.Mean(),
			Stddev: b.Stddev(),
			Count:  b.Count,
		})
	}
	return rows
}

// MaxRadius returns the radius of the outermost non-empty bin, or -1 when
// the table is empty.
func (t *Table) MaxRadius() float64 {
	for i := len(t.Bins) - 1; i >= 0; i-- {
		if t.Bins[i].Count > 0 {
			return t.Radius(i)
		}
	}
	return -1
}

// Sample linearly interpolates the mean profile at physical radius r,
// skipping empty bins. It reports false beyond the outermost non-empty bin
// or when the table is empty.
func (t *Table) Sample(r float64) (float64, bool) {
	if r < 0 {
		r = 0
	}
	prev := -1
	for i, b := range t.Bins {
		if b.Count == 0 {
			continue
		}
		ri := t.Radius(i)
		if r <= ri {
			if prev < 0 || r == ri {
				return b.Mean(), true
			}
			p := t.Bins[prev]
			rp := t.Radius(prev)
			f := (r - rp) / (ri - rp)
			return p.Mean() + (b.Mean()-p.Mean())*f, true
		}
		prev = i
	}
	return 0, false
}

// WriteCSV writes "r,mean_alpha[,stddev_alpha]" for every non-empty bin.
func (t *Table) WriteCSV(w io.Writer, withStddev bool) error {
	return table.WriteRadial(w, t.Rows(), withStddev)
}

// FromRows rebuilds a table from exported rows. Rows without a count are
// weighted as one pixel.
func FromRows(rows []table.Row, binWidth float64) (*Table, error) {
	if !(binWidth > 0) {
		return nil, fmt.Errorf("radial: bin width must be positive, got %v", binWidth)
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	maxIdx := 0
	for _, r := range rows {
		if k := int(math.Round(r.R / binWidth)); k > maxIdx {
			maxIdx = k
		}
	}
	t := &Table{BinWidth: binWidth, Bins: make([]Bin, maxIdx+1)}
	for i := range t.Bins {
		t.Bins[i].Index = i
	}
	for _, r := range rows {
		k := int(math.Round(r.R / binWidth))
		if k < 0 {
			continue
		}
		n := r.Count
		if n <= 0 {
			n = 1
		}
		b := &t.Bins[k]
		b.Count += n
		b.Sum += r.Mean * float64(n)
		b.SumSq += (r.Stddev*r.Stddev + r.Mean*r.Mean) * float64(n)
	}
	return t, nil
}

// LogValue implements slog.LogValuer.
func (t *Table) LogValue() slog.Value {
	var bins, pixels int
	for _, b := range t.Bins {
		if b.Count > 0 {
			bins++
			pixels += b.Count
		}
	}
	return slog.GroupValue(
		slog.Float64("bin_width", t.BinWidth),
		slog.Int("bins", bins),
		slog.Int("pixels", pixels),
		slog.Float64("max_radius", t.MaxRadius()),
	)
}
