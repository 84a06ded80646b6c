// Package pdal builds PDAL pipeline documents and drives the pdal CLI.
package pdal

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/renameio"
)

// Stage is a single element of a PDAL pipeline document.
type Stage map[string]any

// Pipeline assembles a PDAL pipeline: readers first, then an implicit merge
// when several inputs are present, filters in application order, and the
// writer last.
type Pipeline struct {
	readers []Stage
	filters []Stage
	writer  Stage
}

// New returns an empty Pipeline.
func New() *Pipeline { return &Pipeline{} }

// Reader appends a LAS reader for path. Paths are made absolute so the
// pipeline stays valid wherever pdal runs from.
func (p *Pipeline) Reader(path string) *Pipeline {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p.readers = append(p.readers, Stage{
		"type":     "readers.las",
		"filename": path,
	})
	return p
}

// Filter appends a filter stage.
func (p *Pipeline) Filter(s Stage) *Pipeline {
	p.filters = append(p.filters, s)
	return p
}

// Writer sets the terminal writer stage.
func (p *Pipeline) Writer(s Stage) *Pipeline {
	p.writer = s
	return p
}

// Stages returns the ordered stage list of the document.
func (p *Pipeline) Stages() []Stage {
	stages := make([]Stage, 0, len(p.readers)+len(p.filters)+2)
	stages = append(stages, p.readers...)
	if len(p.readers) > 1 {
		stages = append(stages, MergeFilter())
	}
	stages = append(stages, p.filters...)
	if p.writer != nil {
		stages = append(stages, p.writer)
	}
	return stages
}

// MarshalJSON emits the {"pipeline": [...]} document.
func (p *Pipeline) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]Stage{"pipeline": p.Stages()})
}

// JSON returns the indented pipeline document.
func (p *Pipeline) JSON() ([]byte, error) {
	return json.MarshalIndent(map[string][]Stage{"pipeline": p.Stages()}, "", "    ")
}

// WriteFile atomically persists the pipeline document to path.
func (p *Pipeline) WriteFile(path string) error {
	data, err := p.JSON()
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

// MergeFilter combines the points of all preceding readers.
func MergeFilter() Stage {
	return Stage{"type": "filters.merge"}
}

// DecimationFilter keeps every step-th point.
func DecimationFilter(step int) Stage {
	return Stage{
		"type": "filters.decimation",
		"step": step,
	}
}

// RangeFilter keeps points whose dimensions fall inside limits.
func RangeFilter(limits string) Stage {
	return Stage{
		"type":   "filters.range",
		"limits": limits,
	}
}

// ClassificationFilter keeps points with exactly the given classification.
func ClassificationFilter(class int) Stage {
	return RangeFilter(fmt.Sprintf("Classification[%d:%d]", class, class))
}

// MaxClassificationFilter keeps points classified at or below class.
func MaxClassificationFilter(class int) Stage {
	return RangeFilter(fmt.Sprintf("Classification[:%d]", class))
}

// OutlierFilter removes statistical outliers.
func OutlierFilter(meanK int, multiplier float64) Stage {
	return Stage{
		"type":       "filters.outlier",
		"method":     "statistical",
		"mean_k":     meanK,
		"multiplier": multiplier,
	}
}

// MaxZFilter drops points above maxZ.
func MaxZFilter(maxZ float64) Stage {
	return RangeFilter(fmt.Sprintf("Z[:%v]", maxZ))
}

// ScanAngleFilter keeps points within +-maxAbsAngle degrees off nadir.
func ScanAngleFilter(maxAbsAngle float64) Stage {
	return RangeFilter(fmt.Sprintf("ScanAngleRank[%v:%v]", -maxAbsAngle, maxAbsAngle))
}

// ScanEdgeFilter keeps points with the given EdgeOfFlightLine value.
func ScanEdgeFilter(value int) Stage {
	return RangeFilter(fmt.Sprintf("EdgeOfFlightLine[%d:%d]", value, value))
}

// ReturnNumFilter keeps points with the given return number.
func ReturnNumFilter(value int) Stage {
	return RangeFilter(fmt.Sprintf("ReturnNum[%d:%d]", value, value))
}

// CropFilter clips points to a WKT polygon.
func CropFilter(wkt string) Stage {
	return Stage{
		"type":    "filters.crop",
		"polygon": wkt,
	}
}

// LASWriter writes the point stream to a LAS file.
func LASWriter(path string) Stage {
	return Stage{
		"type":     "writers.las",
		"filename": path,
	}
}

// GDALWriter rasterizes the point stream into <base>.<product>.tif, where
// product is one of the writers.gdal output types (min, max, idw, den, ...).
func GDALWriter(base, product string, radius, resolution float64) Stage {
	return Stage{
		"type":        "writers.gdal",
		"resolution":  resolution,
		"radius":      radius,
		"filename":    fmt.Sprintf("%s.%s.tif", base, product),
		"output_type": product,
	}
}
