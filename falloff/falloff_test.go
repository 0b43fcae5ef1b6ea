package falloff

import (
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/graphite/table"
)

func TestProfileAt(t *testing.T) {
	p, err := NewProfile([]Sample{{0.5, 0.4}, {0, 1}, {1, 0}})
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}

	tests := []struct {
		name string
		r    float64
		want float64
	}{
		{"below domain", -0.5, 1},
		{"first sample", 0, 1},
		{"between first pair", 0.25, 0.7},
		{"middle sample", 0.5, 0.4},
		{"between second pair", 0.75, 0.2},
		{"last sample", 1, 0},
		{"beyond domain", 1.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.At(tt.r)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("At(%v) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestNewProfileTooFewRows(t *testing.T) {
	if _, err := NewProfile([]Sample{{0, 1}}); !errors.Is(err, ErrTooFewRows) {
		t.Errorf("err = %v, want ErrTooFewRows", err)
	}
	if _, err := CreateFromTable(64, 32, []table.Row{{R: 0, Mean: 1}}); !errors.Is(err, ErrTooFewRows) {
		t.Errorf("CreateFromTable err = %v, want ErrTooFewRows", err)
	}
}

func TestCreateIdealCircle(t *testing.T) {
	m, err := CreateIdealCircle(101, 100)
	if err != nil {
		t.Fatalf("CreateIdealCircle: %v", err)
	}

	if got := m.At(50, 50); got != 1 {
		t.Errorf("center = %v, want 1", got)
	}
	if got := m.At(75, 50); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("half radius = %v, want 0.5", got)
	}
	if got := m.At(0, 0); got != 0 {
		t.Errorf("corner outside stamp = %v, want 0", got)
	}
}

func TestCreateFromTablePercentRadii(t *testing.T) {
	rows := []table.Row{{R: 0, Mean: 1}, {R: 50, Mean: 0.8}, {R: 100, Mean: 0}}
	m, err := CreateFromTable(101, 100, rows)
	if err != nil {
		t.Fatalf("CreateFromTable: %v", err)
	}

	// 25 px from center of a 50 px radius stamp is the 50% row.
	if got := m.At(75, 50); math.Abs(got-0.8) > 1e-12 {
		t.Errorf("At(75,50) = %v, want 0.8", got)
	}
	// 12.5 px is not on the pixel grid; 10 px is 20% -> 1 + (0.8-1)*0.4.
	if got := m.At(60, 50); math.Abs(got-0.92) > 1e-12 {
		t.Errorf("At(60,50) = %v, want 0.92", got)
	}
}

func TestCreateFlat(t *testing.T) {
	m, err := CreateFlat(16)
	if err != nil {
		t.Fatalf("CreateFlat: %v", err)
	}
	for i, v := range m.Values {
		if v != 1 {
			t.Fatalf("Values[%d] = %v, want 1", i, v)
		}
	}
	if _, err := CreateFlat(0); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("CreateFlat(0) err = %v, want ErrInvalidGeometry", err)
	}
}

func TestReferenceMonotonic(t *testing.T) {
	p := Reference()
	prev := math.Inf(1)
	for r := 0.0; r <= 1.0; r += 0.01 {
		v := p.At(r)
		if v > prev+1e-12 {
			t.Fatalf("reference profile increases at r=%v: %v > %v", r, v, prev)
		}
		prev = v
	}
	if p.At(0) != 1 || p.At(1) != 0 {
		t.Errorf("reference endpoints = %v, %v, want 1, 0", p.At(0), p.At(1))
	}
}
