package internal

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/appliedgeo/l2d/internal/dem"
)

var demOpts dem.Options

var demCmd = &cobra.Command{
	Use:   "dem <dsm|dtm|density> <file.las>...",
	Short: "Create DEM rasters from classified LAS files",
	Long: `Dem rasterizes the input point clouds with the PDAL GDAL writer,
one run per search radius, and optionally composites the runs into a
gap-filled product using the GDAL utilities. Runs whose products already
exist are skipped unless --overwrite is given.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDemCmd,
}

func init() {
	demCmd.Flags().Float64SliceVar(&demOpts.Radii, "radius", []float64{dem.DefaultRadius}, "GDAL writer search radii")
	demCmd.Flags().StringVar(&demOpts.SiteName, "site-name", "", "Basename prefix for output rasters")
	demCmd.Flags().StringVar(&demOpts.OutDir, "outdir", "", "Output directory")
	demCmd.Flags().StringVar(&demOpts.Suffix, "suffix", "", "Suffix appended to output basenames")
	demCmd.Flags().Float64Var(&demOpts.Resolution, "resolution", 0.1, "Raster resolution")
	demCmd.Flags().BoolVar(&demOpts.Overwrite, "overwrite", false, "Recreate products that already exist")
	demCmd.Flags().IntVar(&demOpts.Decimation, "decimation", 0, "Keep every n-th point")
	demCmd.Flags().Float64Var(&demOpts.MaxSD, "maxsd", 0, "Statistical outlier multiplier (0 to disable)")
	demCmd.Flags().Float64Var(&demOpts.MaxZ, "maxz", 0, "Drop points above this elevation (0 to disable)")
	demCmd.Flags().Float64Var(&demOpts.MaxAngle, "maxangle", 0, "Maximum absolute scan angle (0 to disable)")
	demCmd.Flags().IntVar(&demOpts.ReturnNum, "returnnum", 0, "Keep only this return number (0 to disable)")
	demCmd.Flags().BoolVar(&demOpts.GapFill, "gapfill", false, "Gap-fill products across radii")
	demCmd.Flags().IntVar(&demOpts.Jobs, "jobs", 0, "Concurrent radius runs (0 = unbounded)")
	rootCmd.AddCommand(demCmd)
}

func runDemCmd(cmd *cobra.Command, args []string) error {
	typ, err := dem.ParseType(args[0])
	if err != nil {
		return err
	}
	demOpts.Type = typ
	demOpts.Progress = !verbose

	runner := newRunner()
	if err := runner.CheckVersion(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("pdal version check")
	}

	final, err := dem.CreateDEMs(cmd.Context(), runner, args[1:], demOpts)
	if err != nil {
		return err
	}

	products := make([]string, 0, len(final))
	for product := range final {
		products = append(products, product)
	}
	sort.Strings(products)
	for _, product := range products {
		fmt.Printf("%s: %s\n", product, final[product])
	}
	return nil
}
