// Package dem implements the LiDAR classification and DEM generation
// workflows on top of the pdal package.
package dem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/appliedgeo/l2d/internal/pdal"
)

// Type selects which surface a DEM run produces.
type Type string

const (
	// DSM is the digital surface model (canopy and structures included).
	DSM Type = "dsm"
	// DTM is the digital terrain model (ground returns only).
	DTM Type = "dtm"
	// Density is a point-density raster only.
	Density Type = "density"
)

// ParseType validates a user-supplied DEM type.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(s)); t {
	case DSM, DTM, Density:
		return t, nil
	default:
		return "", fmt.Errorf("unknown dem type %q (want dsm, dtm or density)", s)
	}
}

// Products returns the raster products generated for a DEM type.
func Products(t Type) []string {
	switch t {
	case DSM:
		return []string{"max", "idw", "den"}
	case DTM:
		return []string{"min", "idw", "den"}
	default:
		return []string{"den"}
	}
}

// MergeOptions control Merge.
type MergeOptions struct {
	// Output is the merged LAS path; empty picks a UUID-named file next
	// to the first input.
	Output     string
	Decimation int    // zero disables decimation
	SiteWKT    string // crop polygon, empty disables cropping
}

// Merge combines LAS files into a single file and returns its path.
func Merge(ctx context.Context, r *pdal.Runner, files []string, opts MergeOptions) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("merge: no input files")
	}
	start := time.Now()

	out := opts.Output
	if out == "" {
		dir, err := filepath.Abs(filepath.Dir(files[0]))
		if err != nil {
			return "", err
		}
		out = filepath.Join(dir, uuid.NewString()+".las")
	}

	p := pdal.New()
	if opts.Decimation > 0 {
		p.Filter(pdal.DecimationFilter(opts.Decimation))
	}
	if opts.SiteWKT != "" {
		p.Filter(pdal.CropFilter(opts.SiteWKT))
	}
	for _, f := range files {
		p.Reader(f)
	}
	p.Writer(pdal.LASWriter(out))

	if err := r.Pipeline(ctx, p); err != nil {
		return "", fmt.Errorf("merge %d files: %w", len(files), err)
	}
	log.Info().Str("file", out).Dur("elapsed", time.Since(start)).Msg("created merged file")
	return out, nil
}

// ClassifyOptions control Classify.
type ClassifyOptions struct {
	Slope         float64
	CellSize      float64
	MaxWindowSize float64
	MaxDistance   float64
	Approximate   bool
	Decimation    int
	SiteWKT       string
}

// Classify merges the inputs, runs the ground classifier on the result and
// writes the classified point cloud to output. The intermediate merged file
// is always removed.
func Classify(ctx context.Context, r *pdal.Runner, files []string, output string, opts ClassifyOptions) error {
	start := time.Now()
	log.Info().Int("files", len(files)).Str("output", output).Msg("classifying")

	tmp, err := Merge(ctx, r, files, MergeOptions{
		Decimation: opts.Decimation,
		SiteWKT:    opts.SiteWKT,
	})
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	ground := pdal.GroundOptions{
		Slope:         opts.Slope,
		CellSize:      opts.CellSize,
		MaxWindowSize: opts.MaxWindowSize,
		MaxDistance:   opts.MaxDistance,
		Approximate:   opts.Approximate,
	}
	if err := r.Ground(ctx, tmp, output, ground); err != nil {
		return fmt.Errorf("classify into %s: %w", output, err)
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("classify into %s: output missing: %w", output, err)
	}
	log.Info().Str("file", output).Dur("elapsed", time.Since(start)).Msg("created classified file")
	return nil
}

// Options control CreateDEM and CreateDEMs.
type Options struct {
	Type       Type
	Radius     float64   // CreateDEM
	Radii      []float64 // CreateDEMs; empty means {0.56}
	SiteName   string    // optional basename prefix
	OutDir     string
	Suffix     string
	Resolution float64 // zero means 0.1
	Overwrite  bool
	Decimation int
	MaxSD      float64 // statistical outlier multiplier, zero disables
	MaxZ       float64 // zero disables
	MaxAngle   float64 // zero disables
	ReturnNum  int     // zero disables
	Products   []string
	GapFill    bool
	Jobs       int  // concurrent radius runs, zero means all at once
	Progress   bool // draw a progress bar across radius runs
}

func (o Options) products() []string {
	if len(o.Products) > 0 {
		return o.Products
	}
	return Products(o.Type)
}

func (o Options) resolution() float64 {
	if o.Resolution > 0 {
		return o.Resolution
	}
	return 0.1
}

// basePath derives the per-radius output basename:
// <outdir>/[site_]<type>_r<radius><suffix>
func (o Options) basePath(radius float64) (string, error) {
	dir, err := filepath.Abs(o.OutDir)
	if err != nil {
		return "", err
	}
	name := ""
	if o.SiteName != "" {
		name = o.SiteName + "_"
	}
	return filepath.Join(dir, fmt.Sprintf("%s%s_r%v%s", name, o.Type, radius, o.Suffix)), nil
}

// productFiles maps each product to its output raster for base.
func productFiles(base string, products []string) map[string]string {
	fouts := make(map[string]string, len(products))
	for _, product := range products {
		fouts[product] = fmt.Sprintf("%s.%s.tif", base, product)
	}
	return fouts
}

// exists reports whether any rendition of path (any extension, e.g. a .vrt
// in place of a .tif) is present.
func exists(path string) bool {
	matches, err := filepath.Glob(strings.TrimSuffix(path, filepath.Ext(path)) + ".*")
	return err == nil && len(matches) > 0
}

// CreateDEM generates the rasters of one radius run and returns the product
// to filename mapping. Runs whose products all exist are skipped unless
// Overwrite is set.
func CreateDEM(ctx context.Context, r *pdal.Runner, files []string, opts Options) (map[string]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("dem: no input files")
	}
	start := time.Now()

	products := opts.products()
	base, err := opts.basePath(opts.Radius)
	if err != nil {
		return nil, err
	}
	fouts := productFiles(base, products)

	run := opts.Overwrite
	for _, f := range fouts {
		if !exists(f) {
			run = true
		}
	}
	if !run {
		log.Debug().Str("base", base).Msg("all products exist, skipping")
		return fouts, nil
	}

	log.Info().
		Str("base", base).
		Strs("products", products).
		Int("files", len(files)).
		Msg("creating dem")

	for _, product := range products {
		p := pdal.New()
		if opts.Decimation > 0 {
			p.Filter(pdal.DecimationFilter(opts.Decimation))
		}
		if opts.MaxSD > 0 {
			p.Filter(pdal.OutlierFilter(20, opts.MaxSD))
		}
		if opts.MaxZ > 0 {
			p.Filter(pdal.MaxZFilter(opts.MaxZ))
		}
		if opts.MaxAngle > 0 {
			p.Filter(pdal.ScanAngleFilter(opts.MaxAngle))
		}
		if opts.ReturnNum > 0 {
			p.Filter(pdal.ReturnNumFilter(opts.ReturnNum))
		}
		switch opts.Type {
		case DSM:
			p.Filter(pdal.MaxClassificationFilter(2))
		case DTM:
			p.Filter(pdal.ClassificationFilter(2))
		}
		for _, f := range files {
			p.Reader(f)
		}
		p.Writer(pdal.GDALWriter(base, product, opts.Radius, opts.resolution()))

		if err := r.Pipeline(ctx, p); err != nil {
			return nil, fmt.Errorf("dem %s (radius %v): %w", product, opts.Radius, err)
		}
	}

	for product, f := range fouts {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("dem %s: output %s missing", product, f)
		}
	}
	log.Info().Str("base", base).Dur("elapsed", time.Since(start)).Msg("completed dem")
	return fouts, nil
}
