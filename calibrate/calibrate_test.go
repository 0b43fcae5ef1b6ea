package calibrate

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/graphite/falloff"
	"github.com/pthm-cable/graphite/imageio"
	"github.com/pthm-cable/graphite/radial"
	"github.com/pthm-cable/graphite/stamp"
	"github.com/pthm-cable/graphite/table"
)

func TestParseCaptureName(t *testing.T) {
	tests := []struct {
		name string
		want Capture
		err  bool
	}{
		{"pencil-S120-P0.5-N3.png", Capture{120, 0.5, 3}, false},
		{"dir/dot-s50-p1-n2.csv", Capture{50, 1, 2}, false},
		{"Sketch-S80-P0.25-N1", Capture{80, 0.25, 1}, false},
		{"a-S10-S20-P0.1-N1.png", Capture{10, 0.1, 1}, false},
		{"dot-S100-P0.5.png", Capture{}, true},
		{"dot-S100-P0.5-N1.5.png", Capture{}, true},
		{"dot-S100-P2-N1.png", Capture{}, true},
		{"notes.csv", Capture{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCaptureName(tt.name)
			if tt.err {
				if !errors.Is(err, ErrMissingMetadata) {
					t.Errorf("err = %v, want ErrMissingMetadata", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCaptureName: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSelectMajority(t *testing.T) {
	s := func(name string, p float64, n int) Sample {
		return Sample{Name: name, Capture: Capture{Diameter: 10, Pressure: p, Stamps: n}}
	}

	key, kept := SelectMajority([]Sample{
		s("c", 0.5, 2), s("a", 1, 1), s("b", 0.5, 2), s("d", 0.5, 2),
	})
	if key != (Key{0.5, 2}) || len(kept) != 3 {
		t.Errorf("majority = %+v with %d samples", key, len(kept))
	}
	if kept[0].Name != "b" {
		t.Errorf("kept not in name order: %v", kept[0].Name)
	}

	// A tie goes to the pair seen first in name order.
	key, _ = SelectMajority([]Sample{
		s("b", 0.5, 2), s("d", 1, 1), s("a", 1, 1), s("c", 0.5, 2),
	})
	if key != (Key{1, 1}) {
		t.Errorf("tie resolved to %+v, want {1 1}", key)
	}
}

func renderSample(t *testing.T, name string, diameter, pressure float64, stamps int) Sample {
	t.Helper()
	size := int(diameter) + 1
	res, err := stamp.Render(stamp.Request{
		CanvasSize: size,
		Diameter:   diameter,
		Pressure:   1,
		Stamps:     1,
		Profile:    falloff.Linear(),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	tbl, err := radial.AnalyzeMasked(res.Alpha, res.Footprint, size, size, 1)
	if err != nil {
		t.Fatalf("AnalyzeMasked: %v", err)
	}
	return Sample{
		Name:    name,
		Capture: Capture{Diameter: diameter, Pressure: pressure, Stamps: stamps},
		Table:   tbl,
	}
}

func TestNormalizeCollapsesDiameters(t *testing.T) {
	samples := []Sample{
		renderSample(t, "dot-S50", 50, 1, 1),
		renderSample(t, "dot-S100", 100, 1, 1),
		renderSample(t, "dot-S200", 200, 1, 1),
		renderSample(t, "odd-S120", 120, 0.2, 4),
	}
	res, err := Normalize(samples, Options{S0: 200})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Samples != 3 || res.Discarded != 1 {
		t.Errorf("samples/discarded = %d/%d, want 3/1", res.Samples, res.Discarded)
	}
	if len(res.Rows) != 101 {
		t.Fatalf("rows = %d, want 101", len(res.Rows))
	}
	for _, row := range res.Rows {
		if row.Count != 3 {
			t.Errorf("r_norm=%v count = %d, want 3", row.R, row.Count)
		}
		want := 1 - row.R/100
		if math.Abs(row.Mean-want) > 0.03 {
			t.Errorf("r_norm=%v mean = %v, want ~%v", row.R, row.Mean, want)
		}
		if row.Stddev < 0 || row.Stddev > 0.03 {
			t.Errorf("r_norm=%v stddev = %v", row.R, row.Stddev)
		}
	}
	if res.Rows[0].Mean != 1 || res.Rows[0].Stddev != 0 {
		t.Errorf("center = %+v, want mean 1 stddev 0", res.Rows[0])
	}
}

func TestNormalizeNoSamples(t *testing.T) {
	if _, err := Normalize(nil, Options{}); !errors.Is(err, ErrNoSamples) {
		t.Errorf("err = %v, want ErrNoSamples", err)
	}
	empty := Sample{Name: "x", Capture: Capture{10, 1, 1}, Table: &radial.Table{BinWidth: 1, Bins: make([]radial.Bin, 3)}}
	if _, err := Normalize([]Sample{empty}, Options{}); !errors.Is(err, ErrNoSamples) {
		t.Errorf("err = %v, want ErrNoSamples", err)
	}
}

func TestResultWriteCSV(t *testing.T) {
	res, err := Normalize([]Sample{renderSample(t, "a", 100, 0.75, 2)}, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	var buf bytes.Buffer
	if err := res.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	parsed, err := table.Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Kind != table.KindNormalized {
		t.Errorf("Kind = %v, want normalized", parsed.Kind)
	}
	for key, want := range map[string]float64{"S0": 200, "P": 0.75, "N": 2, "samples": 1} {
		if got, ok := parsed.Meta.Float(key); !ok || got != want {
			t.Errorf("meta %s = %v,%v, want %v", key, got, ok, want)
		}
	}
	if len(parsed.Rows) != len(res.Rows) {
		t.Fatalf("rows = %d, want %d", len(parsed.Rows), len(res.Rows))
	}

	p, err := res.Profile()
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if got := p.At(0.5); math.Abs(got-0.5) > 0.02 {
		t.Errorf("profile At(0.5) = %v, want ~0.5", got)
	}
}

func TestHarvest(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("dot-S100-P0.5-N1.csv", "r,mean_alpha\n0,1\n1,0.9\n2,0.8\n")
	write("bad-S10-P0.5-N1.csv", "hello\n")
	write("notes.csv", "r,mean_alpha\n0,1\n")
	write("readme.txt", "ignored")

	dot := renderSample(t, "", 50, 0.5, 1)
	res, err := stamp.Render(stamp.Request{CanvasSize: 51, Diameter: 50, Pressure: 1, Stamps: 1, Profile: falloff.Linear()})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := imageio.AlphaImage(res.Alpha, 51, 51)
	for _, name := range []string{"dot-S100-P0.5-N1.png", "dot-S50-P0.5-N1.png"} {
		if err := imageio.EncodePNG(filepath.Join(dir, name), img); err != nil {
			t.Fatalf("EncodePNG: %v", err)
		}
	}

	rep, err := Harvest(dir, 1, nil)
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if rep.Files != 5 || len(rep.Samples) != 2 || rep.Skipped != 2 || rep.Duplicates != 1 {
		t.Errorf("report = files %d samples %d skipped %d duplicates %d, want 5/2/2/1",
			rep.Files, len(rep.Samples), rep.Skipped, rep.Duplicates)
	}

	for _, s := range rep.Samples {
		switch s.Name {
		case "dot-S100-P0.5-N1.csv":
			if v, ok := s.Table.Sample(1); !ok || v != 0.9 {
				t.Errorf("csv sample at r=1 = %v,%v", v, ok)
			}
		case "dot-S50-P0.5-N1.png":
			if s.Diameter != 50 {
				t.Errorf("diameter = %v, want 50", s.Diameter)
			}
			// Quantized through PNG, so compare loosely with the float render.
			want, _ := dot.Table.Sample(10)
			if got, ok := s.Table.Sample(10); !ok || math.Abs(got-want) > 0.01 {
				t.Errorf("png sample at r=10 = %v, want ~%v", got, want)
			}
		default:
			t.Errorf("unexpected sample %s", s.Name)
		}
	}
}
