package stamp

import (
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/graphite/falloff"
	"github.com/pthm-cable/graphite/paper"
	"github.com/pthm-cable/graphite/table"
)

func mustRender(t *testing.T, req Request) *Result {
	t.Helper()
	res, err := Render(req)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return res
}

func TestRenderBelowFloorIsEmpty(t *testing.T) {
	floor := DefaultFloor().At(40)
	field := testField(t)
	atten, err := falloff.CreateFromTable(48, 40, []table.Row{{R: 0, Mean: 1}, {R: 100, Mean: 0.2}})
	if err != nil {
		t.Fatalf("CreateFromTable: %v", err)
	}

	tests := []struct {
		name string
		req  Request
	}{
		{"flat", Request{Profile: falloff.Flat(), Stamps: 5}},
		{"attenuation map", Request{Attenuation: atten, Stamps: 3}},
		{"noise alpha", Request{
			Profile: falloff.Flat(),
			Stamps:  1,
			Noise:   &Noise{Field: field, Strength: 0.3, Gain: 1, Scale: 1, Mode: ApplyAlpha},
		}},
		{"noise count on map", Request{
			Attenuation: atten,
			Stamps:      4,
			Noise:       &Noise{Field: field, Strength: 0.5, Gain: 2, Scale: 1, LowFreqScale: 8, LowFreqMix: 0.5, Mode: ApplyCount},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, p := range []float64{0, floor / 2, floor} {
				req := tt.req
				req.CanvasSize = 48
				req.Diameter = 40
				req.Pressure = p
				res := mustRender(t, req)
				if !res.BelowFloor {
					t.Errorf("pressure %v: BelowFloor = false, want true", p)
				}
				if res.KMeanNorm != 1 {
					t.Errorf("pressure %v: KMeanNorm = %v, want 1", p, res.KMeanNorm)
				}
				for i, a := range res.Alpha {
					if a != 0 {
						t.Fatalf("pressure %v: alpha[%d] = %v, want 0", p, i, a)
					}
				}
			}
		})
	}
}

func TestFloorTableLookup(t *testing.T) {
	ft := DefaultFloor()
	tests := []struct {
		d    float64
		want float64
	}{
		{0, 1.0},
		{1.9, 0.400},
		{34, 0.023},
		{35, 0.0196},
		{500, 0.0196},
		{-3, 1.0},
	}
	for _, tt := range tests {
		if got := ft.At(tt.d); got != tt.want {
			t.Errorf("At(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}

	// Callers get their own copy.
	ft.Small[0] = 0
	if DefaultFloor().Small[0] != 1.0 {
		t.Error("DefaultFloor shares its backing array")
	}
}

func TestRenderSingleStampIsExact(t *testing.T) {
	res := mustRender(t, Request{
		CanvasSize: 101,
		Diameter:   100,
		Pressure:   0.7,
		Stamps:     1,
		Profile:    falloff.Flat(),
	})
	for i, a := range res.Alpha {
		if res.Footprint[i] && a != 0.7 {
			t.Fatalf("alpha[%d] = %v, want exactly 0.7", i, a)
		}
	}
}

func TestCompositeMatchesSequentialOver(t *testing.T) {
	for _, a := range []float64{0, 0.05, 0.3, 0.5, 0.99, 1} {
		dst := 0.0
		for n := 1; n <= 8; n++ {
			dst = Over(dst, a)
			if got := Composite(a, float64(n)); math.Abs(got-dst) > 1e-12 {
				t.Errorf("Composite(%v,%d) = %v, sequential = %v", a, n, got, dst)
			}
		}
	}
	if got := Composite(1.4, 1); got != 1 {
		t.Errorf("Composite clamps a: got %v", got)
	}
	if got := Composite(0.5, 2.5); math.Abs(got-(1-math.Pow(0.5, 2.5))) > 1e-15 {
		t.Errorf("fractional count: got %v", got)
	}
}

func TestRenderFlatFullPressure(t *testing.T) {
	const size = 512
	res := mustRender(t, Request{
		CanvasSize: size,
		Diameter:   200,
		Pressure:   1,
		Stamps:     1,
		Profile:    falloff.Flat(),
	})
	c := falloff.Center(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := y*size + x
			inside := math.Hypot(float64(x)-c, float64(y)-c) <= 100
			want := 0.0
			if inside {
				want = 1
			}
			if res.Alpha[i] != want || res.Footprint[i] != inside {
				t.Fatalf("(%d,%d): alpha %v footprint %v, want %v %v", x, y, res.Alpha[i], res.Footprint[i], want, inside)
			}
		}
	}
	if res.Pixels == 0 || res.Mean() != 1 {
		t.Errorf("Pixels = %d, Mean = %v", res.Pixels, res.Mean())
	}
}

func TestRenderIdealCircle(t *testing.T) {
	const size = 101
	atten, err := falloff.CreateIdealCircle(size, 100)
	if err != nil {
		t.Fatalf("CreateIdealCircle: %v", err)
	}

	tests := []struct {
		name string
		req  Request
	}{
		{"profile", Request{CanvasSize: size, Diameter: 100, Pressure: 0.5, Stamps: 1, Profile: falloff.Linear()}},
		{"map", Request{CanvasSize: size, Diameter: 100, Pressure: 0.5, Stamps: 1, Attenuation: atten}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustRender(t, tt.req)
			if got := res.Alpha[50*size+50]; got != 0.5 {
				t.Errorf("center = %v, want 0.5", got)
			}
			if got := res.Alpha[50*size+75]; math.Abs(got-0.25) > 1e-12 {
				t.Errorf("half radius = %v, want 0.25", got)
			}
			if got := res.Alpha[0]; got != 0 {
				t.Errorf("corner = %v, want 0", got)
			}
		})
	}
}

func TestRenderRepeatedStamps(t *testing.T) {
	res := mustRender(t, Request{
		CanvasSize: 64,
		Diameter:   40,
		Pressure:   0.5,
		Stamps:     3,
		Profile:    falloff.Flat(),
	})
	for i, a := range res.Alpha {
		if res.Footprint[i] && math.Abs(a-0.875) > 1e-12 {
			t.Fatalf("alpha[%d] = %v, want 0.875", i, a)
		}
	}
}

func testField(t *testing.T) *paper.Field {
	t.Helper()
	f, err := paper.Generate(64, paper.DefaultSynthParams(), paper.Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return f
}

func TestRenderNoiseAlphaMode(t *testing.T) {
	field := testField(t)
	res := mustRender(t, Request{
		CanvasSize: 120,
		Diameter:   100,
		Pressure:   0.5,
		Stamps:     1,
		Profile:    falloff.Flat(),
		Noise: &Noise{
			Field:    field,
			Strength: 0.3,
			Gain:     1,
			Scale:    1,
			Mode:     ApplyAlpha,
		},
	})
	// Renormalization keeps the footprint mean at the noiseless level.
	if got := res.Mean(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Mean = %v, want 0.5", got)
	}
	lo, hi := 1.0, 0.0
	for i, a := range res.Alpha {
		if !res.Footprint[i] {
			continue
		}
		lo = math.Min(lo, a)
		hi = math.Max(hi, a)
	}
	if hi-lo < 0.05 {
		t.Errorf("alpha range [%v,%v], expected visible grain", lo, hi)
	}
	if res.KMeanNorm <= 0 {
		t.Errorf("KMeanNorm = %v", res.KMeanNorm)
	}
}

func TestRenderNoiseCountMode(t *testing.T) {
	field := testField(t)
	base := Request{
		CanvasSize: 120,
		Diameter:   100,
		Pressure:   0.5,
		Stamps:     2,
		Profile:    falloff.Flat(),
	}
	plain := mustRender(t, base)

	withNoise := base
	withNoise.Noise = &Noise{Field: field, Strength: 0.3, Gain: 1, Scale: 1, Mode: ApplyCount}
	res := mustRender(t, withNoise)

	var differ int
	for i, a := range res.Alpha {
		if !res.Footprint[i] {
			continue
		}
		if a < 0 || a > 1 {
			t.Fatalf("alpha[%d] = %v out of range", i, a)
		}
		if a != plain.Alpha[i] {
			differ++
		}
	}
	if differ == 0 {
		t.Error("count mode left every pixel unchanged")
	}

	zero := base
	zero.Noise = &Noise{Field: field, Strength: 0, Gain: 1, Scale: 1, Mode: ApplyCount}
	flat := mustRender(t, zero)
	for i := range flat.Alpha {
		if math.Abs(flat.Alpha[i]-plain.Alpha[i]) > 1e-12 {
			t.Fatalf("zero strength changed alpha[%d]: %v vs %v", i, flat.Alpha[i], plain.Alpha[i])
		}
	}
}

func TestRenderValidation(t *testing.T) {
	field := testField(t)
	good := Request{CanvasSize: 32, Diameter: 20, Pressure: 0.5, Stamps: 1, Profile: falloff.Flat()}

	tests := []struct {
		name  string
		mod   func(r *Request)
		param string
	}{
		{"canvas", func(r *Request) { r.CanvasSize = 0 }, "canvas size"},
		{"diameter", func(r *Request) { r.Diameter = -1 }, "diameter"},
		{"diameter nan", func(r *Request) { r.Diameter = math.NaN() }, "diameter"},
		{"stamps", func(r *Request) { r.Stamps = 0 }, "stamp count"},
		{"pressure high", func(r *Request) { r.Pressure = 1.5 }, "pressure"},
		{"pressure low", func(r *Request) { r.Pressure = -0.1 }, "pressure"},
		{"no falloff", func(r *Request) { r.Profile = nil }, "falloff"},
		{"short map", func(r *Request) { r.Attenuation = &falloff.Map{Size: 32, Values: make([]float64, 10)} }, "attenuation"},
		{"no field", func(r *Request) { r.Noise = &Noise{Scale: 1} }, "noise field"},
		{"noise scale", func(r *Request) { r.Noise = &Noise{Field: field} }, "noise scale"},
		{"noise strength", func(r *Request) { r.Noise = &Noise{Field: field, Scale: 1, Strength: 2} }, "noise strength"},
		{"apply mode", func(r *Request) { r.Noise = &Noise{Field: field, Scale: 1, Mode: ApplyMode(9)} }, "apply mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := good
			tt.mod(&req)
			_, err := Render(req)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("err = %v, want ErrInvalidArgument", err)
			}
			var ae *ArgumentError
			if !errors.As(err, &ae) || ae.Param != tt.param {
				t.Errorf("param = %v, want %q", ae, tt.param)
			}
		})
	}
}

func TestResultQuantized(t *testing.T) {
	res := &Result{Alpha: []float64{0, 0.5, 1, 1.2, 0.001}}
	q := res.Quantized()
	b := res.Bytes()
	wantB := []uint8{0, 128, 255, 255, 0}
	for i := range wantB {
		if b[i] != wantB[i] {
			t.Errorf("Bytes[%d] = %d, want %d", i, b[i], wantB[i])
		}
		if q[i] != float64(wantB[i])/255 {
			t.Errorf("Quantized[%d] = %v, want %v", i, q[i], float64(wantB[i])/255)
		}
	}
}

func TestParseApplyMode(t *testing.T) {
	for s, want := range map[string]ApplyMode{"alpha": ApplyAlpha, "COUNT": ApplyCount, "": ApplyAlpha} {
		got, err := ParseApplyMode(s)
		if err != nil || got != want {
			t.Errorf("ParseApplyMode(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseApplyMode("both"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
