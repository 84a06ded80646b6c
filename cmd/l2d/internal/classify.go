package internal

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/appliedgeo/l2d/internal/dem"
)

var (
	classifyOpts   dem.ClassifyOptions
	classifyOutput string
	classifySite   string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file.las>...",
	Short: "Classify ground returns into a single LAS file",
	Long: `Classify merges the inputs and runs the PDAL progressive
morphological ground filter, writing the classified point cloud to the
--output file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassifyCmd,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "o", "classified.las", "Classified LAS output path")
	classifyCmd.Flags().Float64Var(&classifyOpts.Slope, "slope", 1, "Ground filter slope")
	classifyCmd.Flags().Float64Var(&classifyOpts.CellSize, "cellsize", 3, "Ground filter cell size")
	classifyCmd.Flags().Float64Var(&classifyOpts.MaxWindowSize, "maxwindow", 10, "Maximum window size (0 to omit)")
	classifyCmd.Flags().Float64Var(&classifyOpts.MaxDistance, "maxdistance", 1, "Maximum distance (0 to omit)")
	classifyCmd.Flags().BoolVar(&classifyOpts.Approximate, "approximate", false, "Use the approximate ground algorithm")
	classifyCmd.Flags().IntVar(&classifyOpts.Decimation, "decimation", 0, "Keep every n-th point")
	classifyCmd.Flags().StringVar(&classifySite, "site", "", "Crop polygon: WKT literal or path to a file containing WKT")
	rootCmd.AddCommand(classifyCmd)
}

func runClassifyCmd(cmd *cobra.Command, args []string) error {
	wkt, err := loadSiteWKT(classifySite)
	if err != nil {
		return err
	}
	classifyOpts.SiteWKT = wkt

	runner := newRunner()
	if err := runner.CheckVersion(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("pdal version check")
	}
	return dem.Classify(cmd.Context(), runner, args, classifyOutput, classifyOpts)
}
