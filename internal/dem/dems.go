package dem

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/appliedgeo/l2d/internal/pdal"
)

// DefaultRadius is the writers.gdal search radius used when none is given.
const DefaultRadius = 0.56

// CreateDEMs runs CreateDEM for every configured radius concurrently and
// returns one file per product: the gap-filled composite when GapFill is
// set, otherwise the first radius' raster.
func CreateDEMs(ctx context.Context, r *pdal.Runner, files []string, opts Options) (map[string]string, error) {
	radii := opts.Radii
	if len(radii) == 0 {
		radii = []float64{DefaultRadius}
	}

	var bar *progressbar.ProgressBar
	if opts.Progress && len(radii) > 1 {
		bar = progressbar.Default(int64(len(radii)), "radius runs")
	}

	results := make([]map[string]string, len(radii))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Jobs > 0 {
		g.SetLimit(opts.Jobs)
	}
	for i, radius := range radii {
		i, radius := i, radius
		g.Go(func() error {
			o := opts
			o.Radius = radius
			fouts, err := CreateDEM(gctx, r, files, o)
			if err != nil {
				return err
			}
			results[i] = fouts
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Collate per-radius outputs by product, keeping radius order.
	products := opts.products()
	byProduct := make(map[string][]string, len(products))
	for _, product := range products {
		for _, fouts := range results {
			byProduct[product] = append(byProduct[product], fouts[product])
		}
	}

	final := make(map[string]string, len(products))
	if !opts.GapFill {
		for product, outs := range byProduct {
			final[product] = outs[0]
		}
		return final, nil
	}

	outDir, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, err
	}
	name := ""
	if opts.SiteName != "" {
		name = opts.SiteName + "_"
	}
	for product, inputs := range byProduct {
		// Density is a statistic of the raw runs and is never gap-filled.
		if product == "den" {
			final[product] = inputs[0]
			continue
		}
		out := filepath.Join(outDir, fmt.Sprintf("%s%s%s.%s.tif", name, opts.Type, opts.Suffix, product))
		if exists(out) && !opts.Overwrite {
			log.Debug().Str("file", out).Msg("gap-filled product exists, skipping")
		} else if err := GapFill(ctx, inputs, out); err != nil {
			return nil, fmt.Errorf("gap-fill %s: %w", product, err)
		}
		final[product] = out
	}
	return final, nil
}
