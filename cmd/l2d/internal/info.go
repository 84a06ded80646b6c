package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <file.las>",
	Short: "Summarize a point cloud file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfoCmd,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfoCmd(cmd *cobra.Command, args []string) error {
	runner := newRunner()

	version, err := runner.Version(cmd.Context())
	if err != nil {
		return err
	}

	info, err := runner.Info(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("pdal:   %s\n", version)
	fmt.Printf("points: %d\n", info.Points)
	fmt.Printf("bounds: (%g %g %g) - (%g %g %g)\n",
		info.Bounds.MinX, info.Bounds.MinY, info.Bounds.MinZ,
		info.Bounds.MaxX, info.Bounds.MaxY, info.Bounds.MaxZ)
	if len(info.Dimensions) > 0 {
		fmt.Printf("dims:   %s\n", strings.Join(info.Dimensions, ", "))
	}
	if info.SpatialRef != "" {
		fmt.Printf("srs:    %s\n", info.SpatialRef)
	}
	return nil
}
