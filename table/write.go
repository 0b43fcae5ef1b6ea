package table

import (
	"fmt"
	"io"
	"math"

	"github.com/gocarina/gocsv"
)

// RadialRecord is a radial table row without the stddev column.
type RadialRecord struct {
	R    int     `csv:"r"`
	Mean float64 `csv:"mean_alpha"`
}

// RadialStddevRecord is a radial table row with the stddev column.
type RadialStddevRecord struct {
	R      int     `csv:"r"`
	Mean   float64 `csv:"mean_alpha"`
	Stddev float64 `csv:"stddev_alpha"`
}

// NormalizedRecord is a normalized falloff table row.
type NormalizedRecord struct {
	RNorm  int     `csv:"r_norm"`
	Mean   float64 `csv:"mean_alpha"`
	Stddev float64 `csv:"stddev_alpha"`
	Count  int     `csv:"count"`
}

// WriteRadial writes rows as "r,mean_alpha[,stddev_alpha]". Radii are
// rounded to the nearest integer.
func WriteRadial(w io.Writer, rows []Row, withStddev bool) error {
	var err error
	if withStddev {
		records := make([]RadialStddevRecord, len(rows))
		for i, r := range rows {
			records[i] = RadialStddevRecord{R: roundRadius(r.R), Mean: r.Mean, Stddev: r.Stddev}
		}
		err = gocsv.Marshal(records, w)
	} else {
		records := make([]RadialRecord, len(rows))
		for i, r := range rows {
			records[i] = RadialRecord{R: roundRadius(r.R), Mean: r.Mean}
		}
		err = gocsv.Marshal(records, w)
	}
	if err != nil {
		return fmt.Errorf("writing radial table: %w", err)
	}
	return nil
}

// WriteNormalized writes an optional metadata comment line followed by
// "r_norm,mean_alpha,stddev_alpha,count".
func WriteNormalized(w io.Writer, meta Meta, rows []Row) error {
	if len(meta) > 0 {
		if _, err := io.WriteString(w, meta.String()+"\n"); err != nil {
			return fmt.Errorf("writing table metadata: %w", err)
		}
	}
	records := make([]NormalizedRecord, len(rows))
	for i, r := range rows {
		records[i] = NormalizedRecord{RNorm: roundRadius(r.R), Mean: r.Mean, Stddev: r.Stddev, Count: r.Count}
	}
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("writing normalized table: %w", err)
	}
	return nil
}

func roundRadius(r float64) int {
	return int(math.Round(r))
}
