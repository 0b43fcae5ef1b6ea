package calibrate

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/graphite/imageio"
	"github.com/pthm-cable/graphite/radial"
	"github.com/pthm-cable/graphite/table"
)

// HarvestReport lists the samples found in a capture directory.
type HarvestReport struct {
	Samples    []Sample
	Files      int // candidate files seen
	Skipped    int // unreadable or without metadata
	Duplicates int // image captures shadowed by a radial table of the same name
}

// LogValue implements slog.LogValuer.
func (h *HarvestReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("files", h.Files),
		slog.Int("samples", len(h.Samples)),
		slog.Int("skipped", h.Skipped),
		slog.Int("duplicates", h.Duplicates),
	)
}

// Harvest collects samples from dir. Radial tables (.csv) are read
// directly; image captures are binned with binWidth. A capture present as
// both table and image is taken from the table. Files that cannot be used
// are counted and skipped.
func Harvest(dir string, binWidth float64, logger *slog.Logger) (*HarvestReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rep := &HarvestReport{}
	seen := make(map[string]bool)

	// WalkDir visits entries in lexical order, so "x.csv" precedes "x.png".
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !captureExts[ext] {
			return nil
		}
		rep.Files++

		name := filepath.Base(path)
		c, err := ParseCaptureName(name)
		if err != nil {
			logger.Debug("skipping capture", "file", name, "error", err)
			rep.Skipped++
			return nil
		}
		stem := strings.TrimSuffix(path, filepath.Ext(path))
		if seen[stem] {
			rep.Duplicates++
			return nil
		}

		var tbl *radial.Table
		if ext == ".csv" {
			tbl, err = loadTable(path, binWidth)
		} else {
			tbl, err = loadImage(path, binWidth)
		}
		if err != nil {
			logger.Warn("skipping capture", "file", name, "error", err)
			rep.Skipped++
			return nil
		}
		seen[stem] = true
		rep.Samples = append(rep.Samples, Sample{Name: name, Capture: c, Table: tbl})
		return nil
	})
	if err != nil {
		return rep, fmt.Errorf("walking capture directory: %w", err)
	}
	return rep, nil
}

func loadTable(path string, binWidth float64) (*radial.Table, error) {
	t, err := table.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if t.Kind == table.KindNormalized {
		return nil, fmt.Errorf("%s is a normalized table", filepath.Base(path))
	}
	return radial.FromRows(t.Rows, binWidth)
}

func loadImage(path string, binWidth float64) (*radial.Table, error) {
	img, err := imageio.Decode(path)
	if err != nil {
		return nil, err
	}
	return radial.AnalyzeImage(img, binWidth)
}
