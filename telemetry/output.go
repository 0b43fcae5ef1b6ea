package telemetry

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/graphite/config"
	"github.com/pthm-cable/graphite/imageio"
	"github.com/pthm-cable/graphite/table"
)

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir      string
	runsFile *os.File
	perfFile *os.File

	// Track if headers have been written
	runsHeaderWritten bool
	perfHeaderWritten bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "runs.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating runs.csv: %w", err)
	}
	om.runsFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.runsFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteRun appends a run record to runs.csv.
func (om *OutputManager) WriteRun(stats RunStats) error {
	if om == nil {
		return nil
	}
	if err := appendCSV(om.runsFile, []RunStats{stats}, &om.runsHeaderWritten); err != nil {
		return fmt.Errorf("writing run: %w", err)
	}
	return nil
}

// WritePerf appends a performance record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, run int) error {
	if om == nil {
		return nil
	}
	if err := appendCSV(om.perfFile, []PerfStatsCSV{stats.ToCSV(run)}, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteRadial writes a radial table as name in the output directory.
func (om *OutputManager) WriteRadial(name string, rows []table.Row, withStddev bool) error {
	if om == nil {
		return nil
	}
	f, err := os.Create(filepath.Join(om.dir, name))
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if err := table.WriteRadial(f, rows, withStddev); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteImage writes img as a PNG named name in the output directory.
func (om *OutputManager) WriteImage(name string, img image.Image) error {
	if om == nil {
		return nil
	}
	return imageio.EncodePNG(filepath.Join(om.dir, name), img)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.runsFile, om.perfFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// appendCSV writes records, including the header only on the first call.
func appendCSV(f *os.File, records any, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}
