package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appliedgeo/l2d/internal/dem"
)

var mergeOpts dem.MergeOptions
var mergeSite string

var mergeCmd = &cobra.Command{
	Use:   "merge <file.las>...",
	Short: "Merge LAS files into a single file",
	Long: `Merge combines the input LAS files into one, optionally decimating
the point stream and cropping it to a site polygon. Without --output the
merged file gets a unique name next to the first input.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMergeCmd,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOpts.Output, "output", "o", "", "Merged LAS output path")
	mergeCmd.Flags().IntVar(&mergeOpts.Decimation, "decimation", 0, "Keep every n-th point")
	mergeCmd.Flags().StringVar(&mergeSite, "site", "", "Crop polygon: WKT literal or path to a file containing WKT")
	rootCmd.AddCommand(mergeCmd)
}

func runMergeCmd(cmd *cobra.Command, args []string) error {
	wkt, err := loadSiteWKT(mergeSite)
	if err != nil {
		return err
	}
	mergeOpts.SiteWKT = wkt

	out, err := dem.Merge(cmd.Context(), newRunner(), args, mergeOpts)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
